package internal

const (
	EstadoUnused   Estado = "UNUSED"
	EstadoEmbryo   Estado = "EMBRYO"
	EstadoRunnable Estado = "RUNNABLE"
	EstadoRunning  Estado = "RUNNING"
	EstadoSleeping Estado = "SLEEPING"
	EstadoZombie   Estado = "ZOMBIE"
)

// SinCPU es el valor de Registro.CPU cuando el proceso no ocupa ninguna CPU.
const SinCPU = -1

type Estado string

// Registro es la contabilidad de un proceso tal como la guarda la tabla de procesos.
// Fuera de la tabla solo circulan copias.
type Registro struct {
	PID                int    `json:"pid"`
	Padre              int    `json:"padre"`
	Nombre             string `json:"nombre"`
	Estado             Estado `json:"estado"`
	CPU                int    `json:"cpu"`
	CreacionTick       uint64 `json:"creacion_tick"`
	PrimerDespachoTick uint64 `json:"primer_despacho_tick"`
	Despachado         bool   `json:"despachado"`
	TerminacionTick    uint64 `json:"terminacion_tick"`
	Terminado          bool   `json:"terminado"`
	TicksEjecucion     uint64 `json:"ticks_ejecucion"`
	UltimoTickCobrado  uint64 `json:"ultimo_tick_cobrado"`
	CodigoSalida       int    `json:"codigo_salida"`
	Matado             bool   `json:"matado"`
}

// Turnaround devuelve terminacion - creacion; el bool es false mientras el proceso siga vivo.
func (r Registro) Turnaround() (uint64, bool) {
	if !r.Terminado {
		return 0, false
	}
	return r.TerminacionTick - r.CreacionTick, true
}

// Espera es el tiempo que el proceso pasó sin CPU entre su creación y su fin.
func (r Registro) Espera() uint64 {
	tat, ok := r.Turnaround()
	if !ok || tat < r.TicksEjecucion {
		return 0
	}
	return tat - r.TicksEjecucion
}

// Pstat arma la vista que consume user space.
func (r Registro) Pstat() Pstat {
	p := Pstat{
		CTime: int(r.CreacionTick),
		TTime: int(r.TicksEjecucion),
	}
	if tat, ok := r.Turnaround(); ok {
		p.ETime = int(r.TerminacionTick)
		p.TATime = int(tat)
	}
	return p
}

// Pstat es el layout de procstat: creación, fin, ticks en CPU y turnaround.
// ETime y TATime valen 0 mientras el proceso no haya terminado.
type Pstat struct {
	CTime  int `json:"ctime"`
	ETime  int `json:"etime"`
	TTime  int `json:"ttime"`
	TATime int `json:"tatime"`
}
