package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sisoputnfrba/tp-golang/kernel/internal"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

// CrearProceso hace fork + exec del programa pedido.
func (h *Handler) CrearProceso(w http.ResponseWriter, r *http.Request) {
	var pedido PedidoFork
	if err := json.NewDecoder(r.Body).Decode(&pedido); err != nil {
		h.Log.Error("Error al decodificar el pedido de fork", log.ErrAttr(err))
		http.Error(w, "error al decodificar el pedido", http.StatusBadRequest)
		return
	}

	if pedido.Programa == "" {
		http.Error(w, "programa no proporcionado", http.StatusBadRequest)
		return
	}

	pid, err := h.Planificador.Fork(pedido.Padre, pedido.Programa)
	if err != nil {
		h.Log.Debug("Fork fallido",
			log.IntAttr("padre", pedido.Padre),
			log.StringAttr("programa", pedido.Programa),
			log.ErrAttr(err),
		)
		responderError(w, pid, err)
		return
	}

	responderJSON(w, http.StatusCreated, RespuestaFork{PID: pid})
}

func (h *Handler) ListarProcesos(w http.ResponseWriter, _ *http.Request) {
	responderJSON(w, http.StatusOK, h.Planificador.Tabla.Listar())
}

// ProcStat devuelve las estadísticas del pid pedido vistas por el llamador.
func (h *Handler) ProcStat(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidDeRuta(w, r)
	if !ok {
		return
	}

	llamadorStr := r.URL.Query().Get("llamador")
	if llamadorStr == "" {
		http.Error(w, "llamador no proporcionado", http.StatusBadRequest)
		return
	}
	llamador, err := strconv.Atoi(llamadorStr)
	if err != nil {
		http.Error(w, "error al convertir el llamador a entero", http.StatusBadRequest)
		return
	}

	pstat, err := h.Planificador.ConsultarEstadisticas(llamador, pid)
	if err != nil {
		responderError(w, 0, err)
		return
	}

	responderJSON(w, http.StatusOK, pstat)
}

func (h *Handler) MatarProceso(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidDeRuta(w, r)
	if !ok {
		return
	}

	if err := h.Planificador.Matar(pid); err != nil {
		responderError(w, 0, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Esperar bloquea hasta que termine algún hijo del padre o hasta que el cliente corte.
func (h *Handler) Esperar(w http.ResponseWriter, r *http.Request) {
	var pedido PedidoEsperar
	if err := json.NewDecoder(r.Body).Decode(&pedido); err != nil {
		h.Log.Error("Error al decodificar el pedido de espera", log.ErrAttr(err))
		http.Error(w, "error al decodificar el pedido", http.StatusBadRequest)
		return
	}

	pid, pstat, err := h.Planificador.Esperar(r.Context(), pedido.Padre)
	if err != nil {
		responderError(w, 0, err)
		return
	}

	responderJSON(w, http.StatusOK, RespuestaEsperar{PID: pid, Pstat: pstat})
}

func pidDeRuta(w http.ResponseWriter, r *http.Request) (int, bool) {
	pidStr := chi.URLParam(r, "pid")
	if pidStr == "" {
		http.Error(w, "PID no proporcionado", http.StatusBadRequest)
		return 0, false
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		http.Error(w, "error al convertir PID a entero", http.StatusBadRequest)
		return 0, false
	}
	return pid, true
}

func estadoHTTP(err error) int {
	switch {
	case errors.Is(err, internal.ErrProcesoNoEncontrado), errors.Is(err, internal.ErrSinHijos):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrPermisoDenegado):
		return http.StatusForbidden
	case errors.Is(err, internal.ErrTablaLlena):
		return http.StatusServiceUnavailable
	case errors.Is(err, internal.ErrEstadoInvalido):
		return http.StatusConflict
	case errors.Is(err, internal.ErrProgramaDesconocido):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func responderError(w http.ResponseWriter, pid int, err error) {
	responderJSON(w, estadoHTTP(err), RespuestaError{
		PID:    pid,
		Codigo: internal.CodigoDeError(err),
		Error:  err.Error(),
	})
}

func responderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
