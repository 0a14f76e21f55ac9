package planificadores

import (
	"fmt"
	"sort"

	"github.com/sisoputnfrba/tp-golang/kernel/internal"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

// Dormir bloquea al proceso que corre en la CPU. Con ticks > 0 lo despierta el reloj al vencer el
// plazo; con ticks == 0 duerme hasta que alguien llame a Despertar.
func (p *Service) Dormir(cpuID, ticks int) error {
	c, err := p.buscarCPU(cpuID)
	if err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	if c.Libre() {
		return fmt.Errorf("%w: %d", internal.ErrCPULibre, cpuID)
	}

	return p.dormirLocked(c.Proceso, cpuID, ticks, func() { c.Desalojar() })
}

func (p *Service) dormirLocked(pid, cpuID, ticks int, desalojar func()) error {
	err := p.Tabla.Actualizar(pid, func(r *internal.Registro) error {
		if r.Estado != internal.EstadoRunning || r.CPU != cpuID {
			return fmt.Errorf("%w: pid %d no está corriendo en la cpu %d",
				internal.ErrEstadoInvalido, pid, cpuID)
		}
		r.Estado = internal.EstadoSleeping
		r.CPU = internal.SinCPU
		return nil
	})
	if err != nil {
		return err
	}
	desalojar()

	if ticks > 0 {
		p.mutexCargas.Lock()
		p.dormidos[pid] = p.Reloj.Actual() + uint64(ticks)
		p.mutexCargas.Unlock()
	}

	p.logCambioEstado(pid, internal.EstadoRunning, internal.EstadoSleeping)
	return nil
}

// Despertar pasa un proceso dormido a RUNNABLE y lo encola.
func (p *Service) Despertar(pid int) error {
	err := p.Tabla.Actualizar(pid, func(r *internal.Registro) error {
		if r.Estado != internal.EstadoSleeping {
			return fmt.Errorf("%w: pid %d no está dormido (%s)", internal.ErrEstadoInvalido, pid, r.Estado)
		}
		r.Estado = internal.EstadoRunnable
		return nil
	})
	if err != nil {
		return err
	}

	p.mutexCargas.Lock()
	delete(p.dormidos, pid)
	p.mutexCargas.Unlock()

	p.encolarReady(pid)
	p.logCambioEstado(pid, internal.EstadoSleeping, internal.EstadoRunnable)
	return nil
}

// despertarVencidos despierta, en orden de pid, a los procesos cuyo plazo venció en el tick ahora.
func (p *Service) despertarVencidos(ahora uint64) {
	p.mutexCargas.Lock()
	vencidos := make([]int, 0)
	for pid, plazo := range p.dormidos {
		if plazo <= ahora {
			vencidos = append(vencidos, pid)
			delete(p.dormidos, pid)
		}
	}
	p.mutexCargas.Unlock()

	sort.Ints(vencidos)
	for _, pid := range vencidos {
		if err := p.Despertar(pid); err != nil {
			p.Log.Debug("No se pudo despertar el proceso",
				log.IntAttr("pid", pid),
				log.ErrAttr(err),
			)
		}
	}
}
