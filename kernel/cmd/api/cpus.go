package api

import (
	"net/http"
	"strconv"

	"github.com/sisoputnfrba/tp-golang/utils/log"
)

func (h *Handler) ListarCPUs(w http.ResponseWriter, _ *http.Request) {
	responderJSON(w, http.StatusOK, h.Planificador.CPUs())
}

// ListarContabilidad devuelve las últimas entradas del registro de procesos reclamados.
func (h *Handler) ListarContabilidad(w http.ResponseWriter, r *http.Request) {
	if h.Contabilidad == nil {
		http.Error(w, "contabilidad deshabilitada", http.StatusServiceUnavailable)
		return
	}

	limite := 0
	if limiteStr := r.URL.Query().Get("limite"); limiteStr != "" {
		var err error
		limite, err = strconv.Atoi(limiteStr)
		if err != nil {
			http.Error(w, "error al convertir el limite a entero", http.StatusBadRequest)
			return
		}
	}

	entradas, err := h.Contabilidad.Listar(r.Context(), limite)
	if err != nil {
		h.Log.Error("Error al listar la contabilidad", log.ErrAttr(err))
		http.Error(w, "error al listar la contabilidad", http.StatusInternalServerError)
		return
	}

	responderJSON(w, http.StatusOK, entradas)
}
