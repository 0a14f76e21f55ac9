package planificadores

import (
	"fmt"

	"github.com/sisoputnfrba/tp-golang/kernel/internal"
	"github.com/sisoputnfrba/tp-golang/kernel/pkg/cpu"
)

func (p *Service) buscarCPU(id int) (*cpu.Cpu, error) {
	if id < 0 || id >= len(p.cpus) {
		return nil, fmt.Errorf("%w: %d", internal.ErrCPUInvalida, id)
	}
	return p.cpus[id], nil
}

// CantidadDeCpus devuelve cuántas CPUs simula el kernel.
func (p *Service) CantidadDeCpus() int {
	return len(p.cpus)
}

// ProcesoEnCPU devuelve el pid que corre en la CPU, 0 si está libre.
func (p *Service) ProcesoEnCPU(id int) (int, error) {
	c, err := p.buscarCPU(id)
	if err != nil {
		return 0, err
	}
	c.Lock()
	defer c.Unlock()
	return c.Proceso, nil
}
