package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sisoputnfrba/tp-golang/kernel/internal/planificadores"
	"github.com/sisoputnfrba/tp-golang/kernel/pkg/contabilidad"
	"github.com/sisoputnfrba/tp-golang/utils/config"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

type Handler struct {
	Log          *slog.Logger
	Config       *Config
	Planificador *planificadores.Service
	Contabilidad *contabilidad.DB
}

func NewHandler(configFile string) *Handler {
	configStruct := &Config{}
	if err := config.IniciarConfiguracion(configFile, configStruct); err != nil {
		panic(fmt.Sprintf("Error loading configuration: %s", err))
	}

	h, err := NewHandlerConConfig(configStruct)
	if err != nil {
		panic(err)
	}
	return h
}

// NewHandlerConConfig arma el kernel a partir de una configuración ya cargada. Sin ruta de
// contabilidad no se persiste nada.
func NewHandlerConConfig(configStruct *Config) (*Handler, error) {
	logger := log.BuildLogger(configStruct.LogLevel)

	h := &Handler{
		Config: configStruct,
		Log:    logger,
	}

	var registro planificadores.Contabilidad
	if configStruct.RutaContabilidad != "" {
		db, err := contabilidad.NewDB(configStruct.RutaContabilidad, logger)
		if err != nil {
			return nil, err
		}
		h.Contabilidad = db
		registro = db
	}

	h.Planificador = planificadores.NewPlanificador(logger, planificadores.Config{
		CantidadCpus:   configStruct.CantidadCpus,
		CapacidadTabla: configStruct.CapacidadTabla,
		Programas:      configStruct.Programas,
	}, registro)

	return h, nil
}

// Router expone las syscalls del kernel por HTTP.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/kernel", func(r chi.Router) {
		r.Get("/procesos", h.ListarProcesos)
		r.Post("/procesos", h.CrearProceso)
		r.Get("/procesos/{pid}/procstat", h.ProcStat)
		r.Post("/procesos/{pid}/matar", h.MatarProceso)
		r.Post("/esperar", h.Esperar)
		r.Get("/cpus", h.ListarCPUs)
		r.Get("/contabilidad", h.ListarContabilidad)
	})

	return r
}

func (h *Handler) Close() error {
	if h.Contabilidad == nil {
		return nil
	}
	return h.Contabilidad.Close()
}
