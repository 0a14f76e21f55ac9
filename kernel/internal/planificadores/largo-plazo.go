package planificadores

import (
	"fmt"
	"slices"

	"github.com/sisoputnfrba/tp-golang/kernel/internal"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

// Fork crea un hijo de padre y lo deja en RUNNABLE al final de la cola de listos.
// Si programa no está configurado el exec falla: el hijo existe pero termina con código -1,
// y el padre lo puede reclamar igual. Un programa vacío deja al proceso sin carga simulada.
func (p *Service) Fork(padre int, programa string) (int, error) {
	rafagas, conocido := p.Programas[programa]
	if programa == "" {
		conocido = true
	}

	if err := p.validarPadre(padre); err != nil {
		p.Log.Debug("Fork rechazado",
			log.IntAttr("padre", padre),
			log.StringAttr("programa", programa),
			log.ErrAttr(err),
		)
		return 0, err
	}

	pid, err := p.Tabla.Asignar(padre, programa)
	if err != nil {
		p.Log.Error("No se pudo crear el proceso",
			log.ErrAttr(err),
			log.IntAttr("padre", padre),
			log.StringAttr("programa", programa),
		)
		return 0, err
	}

	p.adoptarSiHuerfano(pid, padre)

	//Log obligatorio: Creación de proceso
	p.Log.Info(fmt.Sprintf("## (%d) Se crea el proceso - Estado: %s", pid, internal.EstadoEmbryo))

	err = p.Tabla.Actualizar(pid, func(r *internal.Registro) error {
		r.Estado = internal.EstadoRunnable
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.logCambioEstado(pid, internal.EstadoEmbryo, internal.EstadoRunnable)

	if !conocido {
		p.Log.Warn("Exec fallido: programa no configurado",
			log.IntAttr("pid", pid),
			log.StringAttr("programa", programa),
		)
		if errTerminar := p.terminar(pid, -1, internal.EstadoRunnable); errTerminar != nil {
			return pid, errTerminar
		}
		return pid, fmt.Errorf("%w: %q", internal.ErrProgramaDesconocido, programa)
	}

	if len(rafagas) > 0 {
		p.cargarPrograma(pid, rafagas)
	}
	p.encolarReady(pid)

	return pid, nil
}

// terminar pasa el proceso a ZOMBIE y sella el tick de terminación. Es el único lugar que escribe
// TerminacionTick; la escritura ocurre bajo el lock del slot y antes de despertar a los que esperan.
func (p *Service) terminar(pid, codigo int, desde ...internal.Estado) error {
	var anterior internal.Estado

	err := p.Tabla.Actualizar(pid, func(r *internal.Registro) error {
		if r.Terminado || !slices.Contains(desde, r.Estado) {
			return fmt.Errorf("%w: pid %d en estado %s no puede terminar",
				internal.ErrEstadoInvalido, pid, r.Estado)
		}
		anterior = r.Estado
		r.Estado = internal.EstadoZombie
		r.Terminado = true
		r.TerminacionTick = p.Reloj.Actual()
		r.CodigoSalida = codigo
		r.CPU = internal.SinCPU
		return nil
	})
	if err != nil {
		return err
	}

	p.olvidarPrograma(pid)
	p.reparentarHijos(pid)

	p.logCambioEstado(pid, anterior, internal.EstadoZombie)
	//Log obligatorio: Finalización de proceso
	p.Log.Info(fmt.Sprintf("## (%d) Finaliza el proceso", pid))

	if registro, errBuscar := p.Tabla.Buscar(pid); errBuscar == nil {
		tat, _ := registro.Turnaround()
		p.Log.Info(fmt.Sprintf("## (%d) - Métricas: creación %d, primer despacho %d, fin %d, CPU %d, turnaround %d, espera %d",
			pid,
			registro.CreacionTick,
			registro.PrimerDespachoTick,
			registro.TerminacionTick,
			registro.TicksEjecucion,
			tat,
			registro.Espera(),
		))
	}

	p.notificarSalida()
	return nil
}

// validarPadre exige que padre sea init o un proceso vivo.
func (p *Service) validarPadre(padre int) error {
	if padre == PIDInit {
		return nil
	}

	registro, err := p.Tabla.Buscar(padre)
	if err != nil {
		return err
	}
	if registro.Estado == internal.EstadoZombie {
		return fmt.Errorf("%w: el padre %d ya terminó", internal.ErrProcesoNoEncontrado, padre)
	}
	return nil
}

// adoptarSiHuerfano cubre al padre que terminó entre validarPadre y Asignar: su reparentarHijos
// ya corrió sin ver al hijo, así que el hijo pasa a init acá.
func (p *Service) adoptarSiHuerfano(pid, padre int) {
	if padre == PIDInit || p.validarPadre(padre) == nil {
		return
	}

	_ = p.Tabla.Actualizar(pid, func(r *internal.Registro) error {
		r.Padre = PIDInit
		return nil
	})
	p.Log.Debug("Proceso huérfano reasignado a init",
		log.IntAttr("pid", pid),
		log.IntAttr("padre_anterior", padre),
	)
}

// reparentarHijos le pasa a init los hijos del proceso que termina.
func (p *Service) reparentarHijos(pid int) {
	p.Tabla.Recorrer(func(r *internal.Registro) {
		if r.Padre == pid {
			r.Padre = PIDInit
			p.Log.Debug("Proceso huérfano reasignado a init",
				log.IntAttr("pid", r.PID),
				log.IntAttr("padre_anterior", pid),
			)
		}
	})
}

// Salir termina al proceso que está corriendo en la CPU.
func (p *Service) Salir(cpuID, codigo int) error {
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
	if err = p.terminar(pid, codigo, internal.EstadoRunning); err != nil {
		return err
	}
	c.Desalojar()
	return nil
}

// Matar marca al proceso para que termine. Un RUNNABLE termina en el acto, uno dormido se despierta
// primero, y uno que está corriendo termina en su próximo tick.
func (p *Service) Matar(pid int) error {
	var estado internal.Estado

	err := p.Tabla.Actualizar(pid, func(r *internal.Registro) error {
		if r.Estado == internal.EstadoZombie {
			return fmt.Errorf("%w: pid %d ya terminó", internal.ErrEstadoInvalido, pid)
		}
		r.Matado = true
		estado = r.Estado
		return nil
	})
	if err != nil {
		return err
	}

	p.Log.Debug("Proceso marcado para terminar",
		log.IntAttr("pid", pid),
		log.StringAttr("estado", string(estado)),
	)

	if estado == internal.EstadoSleeping {
		if err = p.Despertar(pid); err != nil {
			return err
		}
		estado = internal.EstadoRunnable
	}

	if estado == internal.EstadoRunnable && p.removerDeReady(pid) {
		if err = p.terminar(pid, -1, internal.EstadoRunnable); err != nil {
			p.Log.Debug("El proceso cambió de estado antes de terminar, queda pendiente",
				log.IntAttr("pid", pid),
				log.ErrAttr(err),
			)
		}
	}

	return nil
}

func (p *Service) logCambioEstado(pid int, desde, hacia internal.Estado) {
	//Log obligatorio: Cambio de estado
	// "## (<PID>) Pasa del estado <ESTADO_ANTERIOR> al estado <ESTADO_ACTUAL>"
	p.Log.Info(fmt.Sprintf("## (%d) Pasa del estado %s al estado %s", pid, desde, hacia))
}
