package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sisoputnfrba/tp-golang/kernel/cmd/api"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

func main() {
	configFile := "configs/config.json"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	h := api.NewHandler(configFile)
	defer func() {
		_ = h.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	intervalo := time.Duration(h.Config.IntervaloTick) * time.Millisecond
	if intervalo <= 0 {
		intervalo = 100 * time.Millisecond
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", h.Config.IpKernel, h.Config.PortKernel),
		Handler: h.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.Planificador.Ejecutar(ctx, intervalo)
	})

	g.Go(func() error {
		h.Log.Info("Kernel escuchando",
			log.StringAttr("addr", server.Addr),
			log.IntAttr("cpus", h.Planificador.CantidadDeCpus()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		apagado, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return server.Shutdown(apagado)
	})

	if err := g.Wait(); err != nil {
		h.Log.Error("El kernel terminó con error", log.ErrAttr(err))
		_ = h.Close()
		os.Exit(1)
	}

	h.Log.Info("Kernel apagado")
}
