package cpu

import (
	"log/slog"
	"sync"
)

// Cpu es una CPU simulada. El mutex embebido protege Proceso y los contadores:
// quien despacha, cobra ticks o desaloja tiene que tomarlo.
type Cpu struct {
	sync.Mutex
	ID           int
	Proceso      int
	Ticks        uint64
	TicksOcupada uint64
	Log          *slog.Logger
}

// Estado es la foto de una CPU que se expone por la API.
type Estado struct {
	ID           int    `json:"id"`
	Proceso      int    `json:"pid"`
	Ticks        uint64 `json:"ticks"`
	TicksOcupada uint64 `json:"ticks_ocupada"`
}

func NewCpu(id int, logger *slog.Logger) *Cpu {
	return &Cpu{
		ID:  id,
		Log: logger.With(slog.Int("cpu", id)),
	}
}

// Libre indica si la CPU no tiene proceso asignado. Requiere el lock tomado.
func (c *Cpu) Libre() bool {
	return c.Proceso == 0
}

// Asignar deja al pid corriendo en la CPU. Requiere el lock tomado.
func (c *Cpu) Asignar(pid int) {
	c.Proceso = pid
}

// Desalojar libera la CPU y devuelve el pid que la ocupaba. Requiere el lock tomado.
func (c *Cpu) Desalojar() int {
	pid := c.Proceso
	c.Proceso = 0
	return pid
}

// ContarTick registra una interrupción de timer. Requiere el lock tomado.
func (c *Cpu) ContarTick() {
	c.Ticks++
	if !c.Libre() {
		c.TicksOcupada++
	}
}

func (c *Cpu) Foto() Estado {
	c.Lock()
	defer c.Unlock()
	return Estado{
		ID:           c.ID,
		Proceso:      c.Proceso,
		Ticks:        c.Ticks,
		TicksOcupada: c.TicksOcupada,
	}
}
