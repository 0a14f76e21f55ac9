package planificadores

import (
	"context"
	"fmt"

	"github.com/sisoputnfrba/tp-golang/kernel/internal"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

// ConsultarEstadisticas devuelve la foto de contabilidad de pid. Solo la puede pedir el padre o el
// propio proceso. La copia se toma bajo el lock del slot, así que nunca mezcla valores de antes y
// después de un tick o de la terminación. No modifica nada.
func (p *Service) ConsultarEstadisticas(llamador, pid int) (internal.Pstat, error) {
	registro, err := p.Tabla.Buscar(pid)
	if err != nil {
		return internal.Pstat{}, err
	}

	if llamador != registro.Padre && llamador != registro.PID {
		return internal.Pstat{}, fmt.Errorf("%w: el pid %d no es padre del pid %d",
			internal.ErrPermisoDenegado, llamador, pid)
	}

	return registro.Pstat(), nil
}

// ProcStat es la syscall procstat: copia la foto en out y devuelve 0, o un código negativo dejando
// out sin tocar.
func (p *Service) ProcStat(llamador, pid int, out *internal.Pstat) int {
	if out == nil {
		return internal.CodigoError
	}

	pstat, err := p.ConsultarEstadisticas(llamador, pid)
	if err != nil {
		p.Log.Debug("procstat falló",
			log.IntAttr("llamador", llamador),
			log.IntAttr("pid", pid),
			log.ErrAttr(err),
		)
		return internal.CodigoDeError(err)
	}

	*out = pstat
	return internal.CodigoOK
}

// Esperar bloquea hasta que algún hijo de padre esté ZOMBIE, lo reclama y devuelve su pid y su foto
// final. Falla con ErrSinHijos si padre no tiene hijos, o con el error del contexto.
func (p *Service) Esperar(ctx context.Context, padre int) (int, internal.Pstat, error) {
	if padre != PIDInit {
		if _, err := p.Tabla.Buscar(padre); err != nil {
			return 0, internal.Pstat{}, err
		}
	}

	for {
		// El canal se toma antes de recorrer la tabla para no perder una terminación intermedia.
		salida := p.canalDeSalida()

		hijos := 0
		zombie := 0
		for _, r := range p.Tabla.Listar() {
			if r.Padre != padre || r.PID == padre {
				continue
			}
			hijos++
			if r.Estado == internal.EstadoZombie && zombie == 0 {
				zombie = r.PID
			}
		}

		if zombie != 0 {
			final, err := p.Tabla.Reclamar(zombie)
			if err != nil {
				// Otro wait lo reclamó primero.
				continue
			}
			p.registrarContabilidad(ctx, final)

			p.Log.Info(fmt.Sprintf("## (%d) Proceso reclamado por su padre (%d)", final.PID, padre))
			return final.PID, final.Pstat(), nil
		}

		if hijos == 0 {
			return 0, internal.Pstat{}, fmt.Errorf("%w: pid %d", internal.ErrSinHijos, padre)
		}

		select {
		case <-ctx.Done():
			return 0, internal.Pstat{}, ctx.Err()
		case <-salida:
		}
	}
}

func (p *Service) registrarContabilidad(ctx context.Context, registro internal.Registro) {
	if p.Contabilidad == nil {
		return
	}

	if err := p.Contabilidad.Registrar(context.WithoutCancel(ctx), registro); err != nil {
		p.Log.Error("No se pudo registrar la contabilidad del proceso",
			log.IntAttr("pid", registro.PID),
			log.ErrAttr(err),
		)
	}
}
