package planificadores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sisoputnfrba/tp-golang/kernel/internal"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

// Despachar pone en la CPU al primero de la cola de listos (FCFS). Devuelve 0 si no había a quién.
// El primer despacho de cada proceso sella PrimerDespachoTick.
func (p *Service) Despachar(cpuID int) (int, error) {
	c, err := p.buscarCPU(cpuID)
	if err != nil {
		return 0, err
	}

	c.Lock()
	defer c.Unlock()

	if !c.Libre() {
		return 0, fmt.Errorf("%w: cpu %d ejecuta al pid %d", internal.ErrCPUOcupada, cpuID, c.Proceso)
	}

	for {
		pid, ok := p.desencolarReady()
		if !ok {
			return 0, nil
		}

		err = p.Tabla.Actualizar(pid, func(r *internal.Registro) error {
			if r.Estado != internal.EstadoRunnable {
				return fmt.Errorf("%w: pid %d en estado %s", internal.ErrEstadoInvalido, pid, r.Estado)
			}
			r.Estado = internal.EstadoRunning
			r.CPU = cpuID
			if !r.Despachado {
				r.Despachado = true
				r.PrimerDespachoTick = p.Reloj.Actual()
			}
			return nil
		})
		if err != nil {
			p.Log.Debug("Entrada vieja en la cola de listos, se descarta",
				log.IntAttr("pid", pid),
				log.ErrAttr(err),
			)
			continue
		}

		c.Asignar(pid)
		p.logCambioEstado(pid, internal.EstadoRunnable, internal.EstadoRunning)
		p.Log.Debug("Proceso despachado",
			log.IntAttr("pid", pid),
			log.IntAttr("cpu", cpuID),
			log.Uint64Attr("tick", p.Reloj.Actual()),
		)
		return pid, nil
	}
}

// Ceder devuelve al proceso de la CPU al final de la cola de listos.
func (p *Service) Ceder(cpuID int) error {
	c, err := p.buscarCPU(cpuID)
	if err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	if c.Libre() {
		return fmt.Errorf("%w: %d", internal.ErrCPULibre, cpuID)
	}

	pid := c.Proceso
	err = p.Tabla.Actualizar(pid, func(r *internal.Registro) error {
		if r.Estado != internal.EstadoRunning || r.CPU != cpuID {
			return fmt.Errorf("%w: pid %d no está corriendo en la cpu %d", internal.ErrEstadoInvalido, pid, cpuID)
		}
		r.Estado = internal.EstadoRunnable
		r.CPU = internal.SinCPU
		return nil
	})
	if err != nil {
		return err
	}

	c.Desalojar()
	p.encolarReady(pid)
	p.logCambioEstado(pid, internal.EstadoRunning, internal.EstadoRunnable)
	return nil
}

// InterrupcionReloj atiende el timer de una CPU. La CPU del reloj avanza el tick global y despierta
// a los dormidos vencidos; después el tick se le cobra al proceso que ocupaba esta CPU en el borde
// del tick, y recién entonces se decide si sigue, duerme o termina.
func (p *Service) InterrupcionReloj(cpuID int) error {
	c, err := p.buscarCPU(cpuID)
	if err != nil {
		return err
	}

	if cpuID == CPUReloj {
		ahora := p.Reloj.Avanzar()
		p.despertarVencidos(ahora)
	}

	c.Lock()
	defer c.Unlock()

	c.ContarTick()
	if c.Libre() {
		return nil
	}

	pid := c.Proceso
	ahora := p.Reloj.Actual()
	var matado, cobrado bool
	err = p.Tabla.Actualizar(pid, func(r *internal.Registro) error {
		if r.Estado != internal.EstadoRunning || r.CPU != cpuID {
			return fmt.Errorf("%w: pid %d no está corriendo en la cpu %d", internal.ErrEstadoInvalido, pid, cpuID)
		}
		// Cada tick del reloj se cobra una sola vez, y nunca uno anterior o igual a la creación:
		// así TicksEjecucion no supera al turnaround.
		if ahora > r.CreacionTick && ahora > r.UltimoTickCobrado {
			r.TicksEjecucion++
			r.UltimoTickCobrado = ahora
			cobrado = true
		}
		matado = r.Matado
		return nil
	})
	if err != nil {
		p.Log.Error("La CPU tenía asignado un proceso que no está corriendo, se libera",
			log.IntAttr("cpu", cpuID),
			log.IntAttr("pid", pid),
			log.ErrAttr(err),
		)
		c.Desalojar()
		return err
	}

	if matado {
		if err = p.terminar(pid, -1, internal.EstadoRunning); err != nil {
			return err
		}
		c.Desalojar()
		return nil
	}

	if !cobrado {
		p.Log.Debug("Interrupción sin tick nuevo del reloj",
			log.IntAttr("cpu", cpuID),
			log.IntAttr("pid", pid),
			log.Uint64Attr("tick", ahora),
		)
		return nil
	}

	switch siguiente, ticks := p.avanzarPrograma(pid); siguiente {
	case accionSalir:
		if err = p.terminar(pid, 0, internal.EstadoRunning); err != nil {
			return err
		}
		c.Desalojar()
	case accionDormir:
		return p.dormirLocked(pid, cpuID, ticks, func() { c.Desalojar() })
	}

	return nil
}

// Ciclo simula una vuelta completa: interrupción de timer en cada CPU y después despacho en las libres.
func (p *Service) Ciclo() {
	for _, c := range p.cpus {
		p.atenderInterrupcion(c.ID)
	}
	for _, c := range p.cpus {
		p.despacharSiLibre(c.ID)
	}
}

func (p *Service) atenderInterrupcion(cpuID int) {
	if err := p.InterrupcionReloj(cpuID); err != nil {
		p.Log.Error("Error atendiendo la interrupción de reloj",
			log.IntAttr("cpu", cpuID),
			log.ErrAttr(err),
		)
	}
}

func (p *Service) despacharSiLibre(cpuID int) {
	_, err := p.Despachar(cpuID)
	if err != nil && !errors.Is(err, internal.ErrCPUOcupada) {
		p.Log.Error("Error despachando",
			log.IntAttr("cpu", cpuID),
			log.ErrAttr(err),
		)
	}
}

// Ejecutar corre una goroutine por CPU hasta que se cancele ctx. Hay un solo timer: interrumpe a
// la CPU del reloj, y ella, con el tick ya avanzado, interrumpe al resto.
// Una CPU libre también despacha apenas entra un proceso a la cola de listos.
func (p *Service) Ejecutar(ctx context.Context, intervalo time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	timers := make([]chan struct{}, len(p.cpus))
	for i := range timers {
		timers[i] = make(chan struct{}, 1)
	}

	g.Go(func() error {
		ticker := time.NewTicker(intervalo)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				interrumpir(timers[CPUReloj])
			}
		}
	})

	for _, c := range p.cpus {
		c := c
		g.Go(func() error {
			p.Log.Debug("CPU iniciada", log.IntAttr("cpu", c.ID))
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-timers[c.ID]:
					p.atenderInterrupcion(c.ID)
					if c.ID == CPUReloj {
						for i, timer := range timers {
							if i != CPUReloj {
								interrumpir(timer)
							}
						}
					}
					p.despacharSiLibre(c.ID)
				case <-p.canalNuevoProcesoReady:
					p.despacharSiLibre(c.ID)
				}
			}
		})
	}

	return g.Wait()
}

// interrumpir no bloquea: si la CPU todavía no atendió la interrupción anterior, se pierde esta.
func interrumpir(timer chan<- struct{}) {
	select {
	case timer <- struct{}{}:
	default:
	}
}
