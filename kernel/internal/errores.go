package internal

import "errors"

var (
	ErrTablaLlena          = errors.New("tabla de procesos llena")
	ErrProcesoNoEncontrado = errors.New("proceso no encontrado")
	ErrPermisoDenegado     = errors.New("permiso denegado")
	ErrEstadoInvalido      = errors.New("transición de estado inválida")
	ErrSinHijos            = errors.New("el proceso no tiene hijos")
	ErrProgramaDesconocido = errors.New("programa desconocido")
	ErrCPUInvalida         = errors.New("cpu inexistente")
	ErrCPUOcupada          = errors.New("cpu ocupada")
	ErrCPULibre            = errors.New("cpu sin proceso")
)

// Códigos que devuelven las syscalls. 0 es éxito.
const (
	CodigoOK                  = 0
	CodigoProcesoNoEncontrado = -1
	CodigoPermisoDenegado     = -2
	CodigoTablaLlena          = -3
	CodigoEstadoInvalido      = -4
	CodigoSinHijos            = -5
	CodigoProgramaDesconocido = -6
	CodigoError               = -7
)

// CodigoDeError traduce un error del kernel al código negativo de la syscall.
func CodigoDeError(err error) int {
	switch {
	case err == nil:
		return CodigoOK
	case errors.Is(err, ErrProcesoNoEncontrado):
		return CodigoProcesoNoEncontrado
	case errors.Is(err, ErrPermisoDenegado):
		return CodigoPermisoDenegado
	case errors.Is(err, ErrTablaLlena):
		return CodigoTablaLlena
	case errors.Is(err, ErrEstadoInvalido):
		return CodigoEstadoInvalido
	case errors.Is(err, ErrSinHijos):
		return CodigoSinHijos
	case errors.Is(err, ErrProgramaDesconocido):
		return CodigoProgramaDesconocido
	default:
		return CodigoError
	}
}
