package internal

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sisoputnfrba/tp-golang/utils/log"
)

const CapacidadPorDefecto = 64

// slot es una entrada de la tabla. generacion cambia en cada reclamo para que un PID viejo
// no resuelva al proceso que ocupe el slot después.
type slot struct {
	mu         sync.Mutex
	generacion int
	registro   Registro
}

// TablaProcesos es la arena de capacidad fija con los registros de todos los procesos.
// Cada slot tiene su propio mutex; nunca se toman dos a la vez.
type TablaProcesos struct {
	slots []*slot
	reloj *Reloj
	Log   *slog.Logger
}

func NewTablaProcesos(capacidad int, reloj *Reloj, logger *slog.Logger) *TablaProcesos {
	if capacidad <= 0 {
		capacidad = CapacidadPorDefecto
	}

	slots := make([]*slot, capacidad)
	for i := range slots {
		slots[i] = &slot{registro: registroLibre()}
	}

	return &TablaProcesos{
		slots: slots,
		reloj: reloj,
		Log:   logger,
	}
}

func registroLibre() Registro {
	return Registro{Estado: EstadoUnused, CPU: SinCPU}
}

func (t *TablaProcesos) Capacidad() int {
	return len(t.slots)
}

// El PID codifica índice y generación: generacion*capacidad + indice + 1. El PID 0 no existe.
func (t *TablaProcesos) pidPara(indice, generacion int) int {
	return generacion*len(t.slots) + indice + 1
}

func (t *TablaProcesos) decodificar(pid int) (indice, generacion int, ok bool) {
	if pid <= 0 {
		return 0, 0, false
	}
	n := pid - 1
	return n % len(t.slots), n / len(t.slots), true
}

// Asignar toma un slot libre, lo pasa a EMBRYO y le sella el tick de creación.
func (t *TablaProcesos) Asignar(padre int, nombre string) (int, error) {
	for i, s := range t.slots {
		s.mu.Lock()
		if s.registro.Estado != EstadoUnused {
			s.mu.Unlock()
			continue
		}

		pid := t.pidPara(i, s.generacion)
		s.registro = Registro{
			PID:          pid,
			Padre:        padre,
			Nombre:       nombre,
			Estado:       EstadoEmbryo,
			CPU:          SinCPU,
			CreacionTick: t.reloj.Actual(),
		}
		creacion := s.registro.CreacionTick
		s.mu.Unlock()

		t.Log.Debug("Slot asignado",
			log.IntAttr("pid", pid),
			log.IntAttr("slot", i),
			log.Uint64Attr("creacion_tick", creacion),
		)
		return pid, nil
	}

	return 0, fmt.Errorf("%w: %d slots ocupados", ErrTablaLlena, len(t.slots))
}

// conSlot valida el PID y ejecuta fn con el lock del slot tomado.
func (t *TablaProcesos) conSlot(pid int, fn func(s *slot) error) error {
	indice, generacion, ok := t.decodificar(pid)
	if !ok {
		return fmt.Errorf("%w: pid %d inválido", ErrProcesoNoEncontrado, pid)
	}

	s := t.slots[indice]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generacion != generacion || s.registro.Estado == EstadoUnused {
		return fmt.Errorf("%w: pid %d", ErrProcesoNoEncontrado, pid)
	}

	return fn(s)
}

// Buscar devuelve una copia del registro del proceso.
func (t *TablaProcesos) Buscar(pid int) (Registro, error) {
	var copia Registro
	err := t.conSlot(pid, func(s *slot) error {
		copia = s.registro
		return nil
	})
	return copia, err
}

// Actualizar es el único camino de escritura sobre un registro vivo. fn corre con el lock del slot.
func (t *TablaProcesos) Actualizar(pid int, fn func(r *Registro) error) error {
	return t.conSlot(pid, func(s *slot) error {
		return fn(&s.registro)
	})
}

// Reclamar libera un ZOMBIE y devuelve su registro final.
func (t *TablaProcesos) Reclamar(pid int) (Registro, error) {
	var final Registro
	err := t.conSlot(pid, func(s *slot) error {
		if s.registro.Estado != EstadoZombie {
			return fmt.Errorf("%w: no se puede reclamar el pid %d en estado %s",
				ErrEstadoInvalido, pid, s.registro.Estado)
		}
		final = s.registro
		s.registro = registroLibre()
		s.generacion++
		return nil
	})
	if err != nil {
		return Registro{}, err
	}

	t.Log.Debug("Slot reclamado", log.IntAttr("pid", pid))
	return final, nil
}

// Recorrer aplica fn a cada registro vivo, de a un slot por vez.
func (t *TablaProcesos) Recorrer(fn func(r *Registro)) {
	for _, s := range t.slots {
		s.mu.Lock()
		if s.registro.Estado != EstadoUnused {
			fn(&s.registro)
		}
		s.mu.Unlock()
	}
}

// Listar devuelve copias de todos los registros vivos, en orden de slot.
func (t *TablaProcesos) Listar() []Registro {
	registros := make([]Registro, 0)
	t.Recorrer(func(r *Registro) {
		registros = append(registros, *r)
	})
	return registros
}
