package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sisoputnfrba/tp-golang/utils/log"
)

// CodigoError es el código que se informa cuando el kernel no devolvió uno propio.
const CodigoError = -7

// Pstat es la foto de contabilidad que devuelve procstat.
type Pstat struct {
	CTime  int `json:"ctime"`
	ETime  int `json:"etime"`
	TTime  int `json:"ttime"`
	TATime int `json:"tatime"`
}

// ErrorKernel es una syscall rechazada por el kernel. Codigo es el valor negativo de la syscall.
type ErrorKernel struct {
	Status  int
	Codigo  int
	PID     int
	Mensaje string
}

func (e *ErrorKernel) Error() string {
	return fmt.Sprintf("kernel respondió %d (código %d): %s", e.Status, e.Codigo, e.Mensaje)
}

type Kernel struct {
	IP     string
	Puerto int
	Log    *slog.Logger
}

func NewKernel(ip string, puerto int, logger *slog.Logger) *Kernel {
	return &Kernel{
		IP:     ip,
		Puerto: puerto,
		Log:    logger,
	}
}

func (k *Kernel) url(ruta string) string {
	return fmt.Sprintf("http://%s:%d%s", k.IP, k.Puerto, ruta)
}

// Fork pide al kernel crear un hijo de padre que ejecute programa. Si el exec falla el error es
// un *ErrorKernel con el pid del hijo ya creado.
func (k *Kernel) Fork(ctx context.Context, padre int, programa string) (int, error) {
	var resp struct {
		PID int `json:"pid"`
	}
	pedido := map[string]any{"padre": padre, "programa": programa}
	if err := k.hacer(ctx, http.MethodPost, "/kernel/procesos", pedido, &resp); err != nil {
		return 0, err
	}

	k.Log.Debug("Proceso creado en el kernel",
		log.IntAttr("pid", resp.PID),
		log.StringAttr("programa", programa),
	)
	return resp.PID, nil
}

func (k *Kernel) ProcStat(ctx context.Context, llamador, pid int) (Pstat, error) {
	var pstat Pstat
	ruta := fmt.Sprintf("/kernel/procesos/%d/procstat?llamador=%d", pid, llamador)
	if err := k.hacer(ctx, http.MethodGet, ruta, nil, &pstat); err != nil {
		return Pstat{}, err
	}
	return pstat, nil
}

// Esperar bloquea hasta que el kernel reclame algún hijo de padre.
func (k *Kernel) Esperar(ctx context.Context, padre int) (int, Pstat, error) {
	var resp struct {
		PID   int   `json:"pid"`
		Pstat Pstat `json:"pstat"`
	}
	if err := k.hacer(ctx, http.MethodPost, "/kernel/esperar", map[string]int{"padre": padre}, &resp); err != nil {
		return 0, Pstat{}, err
	}
	return resp.PID, resp.Pstat, nil
}

func (k *Kernel) Matar(ctx context.Context, pid int) error {
	return k.hacer(ctx, http.MethodPost, fmt.Sprintf("/kernel/procesos/%d/matar", pid), nil, nil)
}

func (k *Kernel) hacer(ctx context.Context, metodo, ruta string, pedido, respuesta any) error {
	var body io.Reader
	if pedido != nil {
		b, err := json.Marshal(pedido)
		if err != nil {
			return fmt.Errorf("codificando el pedido a %s: %w", ruta, err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, metodo, k.url(ruta), body)
	if err != nil {
		return fmt.Errorf("armando el pedido a %s: %w", ruta, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		k.Log.Error("Error al comunicarse con el kernel",
			log.ErrAttr(err),
			log.StringAttr("ip", k.IP),
			log.IntAttr("puerto", k.Puerto),
			log.StringAttr("ruta", ruta),
		)
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	contenido, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("leyendo la respuesta de %s: %w", ruta, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errKernel := &ErrorKernel{Status: resp.StatusCode, Codigo: CodigoError, Mensaje: string(bytes.TrimSpace(contenido))}

		var detalle struct {
			PID    int    `json:"pid"`
			Codigo int    `json:"codigo"`
			Error  string `json:"error"`
		}
		if json.Unmarshal(contenido, &detalle) == nil && detalle.Codigo < 0 {
			errKernel.Codigo = detalle.Codigo
			errKernel.PID = detalle.PID
			errKernel.Mensaje = detalle.Error
		}

		k.Log.Debug("El kernel rechazó el pedido",
			log.StringAttr("ruta", ruta),
			log.IntAttr("status_code", resp.StatusCode),
			log.IntAttr("codigo", errKernel.Codigo),
		)
		return errKernel
	}

	if respuesta == nil {
		return nil
	}
	if err = json.Unmarshal(contenido, respuesta); err != nil {
		return fmt.Errorf("decodificando la respuesta de %s: %w", ruta, err)
	}
	return nil
}
