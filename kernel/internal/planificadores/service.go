package planificadores

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sisoputnfrba/tp-golang/kernel/internal"
	"github.com/sisoputnfrba/tp-golang/kernel/pkg/cpu"
)

// CPUReloj es la CPU cuya interrupción de timer avanza el reloj global.
const CPUReloj = 0

// PIDInit es el llamador externo (consola, programa de prueba). Hereda los huérfanos.
const PIDInit = 0

// Contabilidad recibe el registro final de cada proceso reclamado.
type Contabilidad interface {
	Registrar(ctx context.Context, registro internal.Registro) error
}

type Config struct {
	CantidadCpus   int
	CapacidadTabla int
	Programas      map[string][]int
}

type Service struct {
	Tabla        *internal.TablaProcesos
	Reloj        *internal.Reloj
	Log          *slog.Logger
	Contabilidad Contabilidad
	Programas    map[string][]int

	cpus []*cpu.Cpu

	readyQueue             []int
	mutexReadyQueue        sync.Mutex
	canalNuevoProcesoReady chan struct{}

	cargas      map[int]*carga
	dormidos    map[int]uint64
	mutexCargas sync.Mutex

	canalSalida chan struct{}
	mutexSalida sync.Mutex
}

// NewPlanificador crea el servicio con su reloj, su tabla de procesos y sus CPUs.
// contabilidad puede ser nil.
func NewPlanificador(logger *slog.Logger, cfg Config, contabilidad Contabilidad) *Service {
	if cfg.CantidadCpus <= 0 {
		cfg.CantidadCpus = 1
	}

	reloj := internal.NewReloj()
	cpus := make([]*cpu.Cpu, cfg.CantidadCpus)
	for i := range cpus {
		cpus[i] = cpu.NewCpu(i, logger)
	}

	programas := make(map[string][]int, len(cfg.Programas))
	for nombre, rafagas := range cfg.Programas {
		programas[nombre] = normalizarRafagas(rafagas)
	}

	return &Service{
		Tabla:                  internal.NewTablaProcesos(cfg.CapacidadTabla, reloj, logger),
		Reloj:                  reloj,
		Log:                    logger,
		Contabilidad:           contabilidad,
		Programas:              programas,
		cpus:                   cpus,
		readyQueue:             make([]int, 0),
		canalNuevoProcesoReady: make(chan struct{}, 1),
		cargas:                 make(map[int]*carga),
		dormidos:               make(map[int]uint64),
		canalSalida:            make(chan struct{}),
	}
}

// CPUs devuelve la foto de cada CPU.
func (p *Service) CPUs() []cpu.Estado {
	estados := make([]cpu.Estado, 0, len(p.cpus))
	for _, c := range p.cpus {
		estados = append(estados, c.Foto())
	}
	return estados
}

// ReadyQueue devuelve una copia de la cola de listos, en orden de llegada.
func (p *Service) ReadyQueue() []int {
	p.mutexReadyQueue.Lock()
	defer p.mutexReadyQueue.Unlock()
	return append([]int(nil), p.readyQueue...)
}

func (p *Service) encolarReady(pid int) {
	p.mutexReadyQueue.Lock()
	p.readyQueue = append(p.readyQueue, pid)
	p.mutexReadyQueue.Unlock()

	select {
	case p.canalNuevoProcesoReady <- struct{}{}:
	default:
	}
}

func (p *Service) desencolarReady() (int, bool) {
	p.mutexReadyQueue.Lock()
	defer p.mutexReadyQueue.Unlock()

	if len(p.readyQueue) == 0 {
		return 0, false
	}
	pid := p.readyQueue[0]
	p.readyQueue = p.readyQueue[1:]
	return pid, true
}

func (p *Service) removerDeReady(pid int) bool {
	p.mutexReadyQueue.Lock()
	defer p.mutexReadyQueue.Unlock()

	for i, encolado := range p.readyQueue {
		if encolado == pid {
			p.readyQueue = append(p.readyQueue[:i], p.readyQueue[i+1:]...)
			return true
		}
	}
	return false
}

// canalDeSalida devuelve el canal que se cierra en la próxima terminación.
func (p *Service) canalDeSalida() <-chan struct{} {
	p.mutexSalida.Lock()
	defer p.mutexSalida.Unlock()
	return p.canalSalida
}

func (p *Service) notificarSalida() {
	p.mutexSalida.Lock()
	close(p.canalSalida)
	p.canalSalida = make(chan struct{})
	p.mutexSalida.Unlock()
}
