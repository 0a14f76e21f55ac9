package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/sisoputnfrba/tp-golang/fcfs/pkg/kernel"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

// PIDInit es el pid con el que el programa habla con el kernel.
const PIDInit = 0

var ErrSinResultados = errors.New("ningún comando llegó a terminar")

type Comando struct {
	Programa  string `json:"programa" yaml:"programa"`
	Argumento string `json:"argumento" yaml:"argumento"`
}

func (c Comando) String() string {
	if c.Argumento == "" {
		return c.Programa
	}
	return c.Programa + " " + c.Argumento
}

// Sistema son las syscalls que usa el agregador.
type Sistema interface {
	Fork(ctx context.Context, padre int, programa string) (int, error)
	ProcStat(ctx context.Context, llamador, pid int) (kernel.Pstat, error)
	Esperar(ctx context.Context, padre int) (int, kernel.Pstat, error)
	Matar(ctx context.Context, pid int) error
}

// PlazoLimpieza acota cuánto se espera a los hijos matados al cortar una corrida.
var PlazoLimpieza = 5 * time.Second

type Resultado struct {
	Comando Comando
	PID     int
	Inicial kernel.Pstat
	Final   kernel.Pstat
	Espera  int
	// ExecFallido indica que el hijo se creó pero el programa no se pudo cargar.
	ExecFallido bool
}

type Reporte struct {
	Resultados         []Resultado
	PromedioTurnaround float64
	PromedioEspera     float64
}

// Agregador lanza los comandos, los reclama y calcula los promedios FCFS.
type Agregador struct {
	Sistema Sistema
	Log     *slog.Logger
}

func NewAgregador(sistema Sistema, logger *slog.Logger) *Agregador {
	return &Agregador{Sistema: sistema, Log: logger}
}

// Ejecutar crea todos los hijos en orden, consulta procstat una vez por cada uno y después los
// reclama a todos. Un fork fallido corta la corrida; un procstat fallido deja afuera solo a ese
// comando.
func (a *Agregador) Ejecutar(ctx context.Context, comandos []Comando) (Reporte, error) {
	pendientes := make(map[int]*Resultado, len(comandos))
	orden := make([]*Resultado, 0, len(comandos))

	for i, c := range comandos {
		pid, err := a.Sistema.Fork(ctx, PIDInit, c.Programa)
		execFallido := false
		if err != nil {
			var errKernel *kernel.ErrorKernel
			if !errors.As(err, &errKernel) || errKernel.PID <= 0 {
				return Reporte{}, fmt.Errorf("fork de %q: %w", c.String(), err)
			}
			a.Log.Warn("Exec fallido para el proceso",
				log.IntAttr("proceso", i),
				log.StringAttr("comando", c.String()),
				log.ErrAttr(err),
			)
			pid = errKernel.PID
			execFallido = true
		}

		r := &Resultado{Comando: c, PID: pid, ExecFallido: execFallido}
		pendientes[pid] = r

		inicial, err := a.Sistema.ProcStat(ctx, PIDInit, pid)
		if err != nil {
			a.Log.Error("procstat falló, el comando queda afuera del reporte",
				log.IntAttr("pid", pid),
				log.StringAttr("comando", c.String()),
				log.ErrAttr(err),
			)
			continue
		}
		r.Inicial = inicial
		orden = append(orden, r)
	}

	for len(pendientes) > 0 {
		pid, final, err := a.Sistema.Esperar(ctx, PIDInit)
		if err != nil {
			if ctx.Err() != nil {
				a.matarPendientes(ctx, pendientes)
			}
			return Reporte{}, fmt.Errorf("esperando %d hijos: %w", len(pendientes), err)
		}

		r, ok := pendientes[pid]
		if !ok {
			// Un huérfano heredado por init.
			a.Log.Debug("Se reclamó un proceso ajeno", log.IntAttr("pid", pid))
			continue
		}
		delete(pendientes, pid)

		r.Final = final
		r.Espera = final.TATime - final.TTime
		a.Log.Debug("Proceso reclamado",
			log.IntAttr("pid", pid),
			log.AnyAttr("pstat", final),
		)
	}

	return armarReporte(orden)
}

// matarPendientes mata y reclama a los hijos que quedaban cuando se canceló la corrida, para no
// dejarlos ZOMBIE en la tabla del kernel.
func (a *Agregador) matarPendientes(ctx context.Context, pendientes map[int]*Resultado) {
	limpieza, cancel := context.WithTimeout(context.WithoutCancel(ctx), PlazoLimpieza)
	defer cancel()

	for pid := range pendientes {
		if err := a.Sistema.Matar(limpieza, pid); err != nil {
			a.Log.Warn("No se pudo matar al hijo pendiente",
				log.IntAttr("pid", pid),
				log.ErrAttr(err),
			)
		}
	}

	for range pendientes {
		pid, _, err := a.Sistema.Esperar(limpieza, PIDInit)
		if err != nil {
			a.Log.Warn("Quedaron hijos sin reclamar", log.ErrAttr(err))
			return
		}
		a.Log.Debug("Hijo reclamado al cortar la corrida", log.IntAttr("pid", pid))
	}
}

func armarReporte(resultados []*Resultado) (Reporte, error) {
	if len(resultados) == 0 {
		return Reporte{}, ErrSinResultados
	}

	reporte := Reporte{Resultados: make([]Resultado, 0, len(resultados))}
	turnarounds := make(stats.Float64Data, 0, len(resultados))
	esperas := make(stats.Float64Data, 0, len(resultados))
	for _, r := range resultados {
		reporte.Resultados = append(reporte.Resultados, *r)
		turnarounds = append(turnarounds, float64(r.Final.TATime))
		esperas = append(esperas, float64(r.Espera))
	}

	var err error
	if reporte.PromedioTurnaround, err = stats.Mean(turnarounds); err != nil {
		return Reporte{}, fmt.Errorf("promedio de turnaround: %w", err)
	}
	if reporte.PromedioEspera, err = stats.Mean(esperas); err != nil {
		return Reporte{}, fmt.Errorf("promedio de espera: %w", err)
	}

	return reporte, nil
}

// Imprimir escribe las estadísticas de cada proceso y los promedios.
func (r Reporte) Imprimir(w io.Writer) error {
	for i, res := range r.Resultados {
		if _, err := fmt.Fprintf(w,
			"Proceso %d (pid %d)\nEstadísticas de '%s':\n  Creación: %d\n  Fin: %d\n  Tiempo total: %d\n  Turnaround: %d\n  Espera: %d\n\n",
			i, res.PID, res.Comando.String(), res.Final.CTime, res.Final.ETime, res.Final.TTime,
			res.Final.TATime, res.Espera,
		); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, " Turnaround promedio usando FCFS: %.2f\n\n Espera promedio usando FCFS: %.2f\n\n",
		r.PromedioTurnaround, r.PromedioEspera)
	return err
}
