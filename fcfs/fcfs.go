package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sisoputnfrba/tp-golang/fcfs/internal"
	"github.com/sisoputnfrba/tp-golang/fcfs/pkg/kernel"
	"github.com/sisoputnfrba/tp-golang/utils/config"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

type Config struct {
	IpKernel        string             `json:"ip_kernel" yaml:"ip_kernel"`
	PortKernel      int                `json:"port_kernel" yaml:"port_kernel"`
	LogLevel        string             `json:"log_level" yaml:"log_level"`
	TimeoutSegundos int                `json:"timeout_segundos" yaml:"timeout_segundos"`
	Comandos        []internal.Comando `json:"comandos" yaml:"comandos"`
}

func main() {
	configFile := "configs/config.json"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	cfg := &Config{}
	if err := config.IniciarConfiguracion(configFile, cfg); err != nil {
		panic(fmt.Sprintf("Error loading configuration: %s", err))
	}

	logger := log.BuildLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.TimeoutSegundos > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutSegundos)*time.Second)
		defer cancel()
	}

	k := kernel.NewKernel(cfg.IpKernel, cfg.PortKernel, logger)
	reporte, err := internal.NewAgregador(k, logger).Ejecutar(ctx, cfg.Comandos)
	if err != nil {
		logger.Error("No se pudo armar el reporte FCFS", log.ErrAttr(err))
		stop()
		os.Exit(1)
	}

	if err = reporte.Imprimir(os.Stdout); err != nil {
		logger.Error("No se pudo imprimir el reporte", log.ErrAttr(err))
	}
}
