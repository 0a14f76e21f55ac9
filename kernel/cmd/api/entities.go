package api

import "github.com/sisoputnfrba/tp-golang/kernel/internal"

type Config struct {
	IpKernel         string           `json:"ip_kernel" yaml:"ip_kernel"`
	PortKernel       int              `json:"port_kernel" yaml:"port_kernel"`
	CantidadCpus     int              `json:"cantidad_cpus" yaml:"cantidad_cpus"`
	CapacidadTabla   int              `json:"capacidad_tabla" yaml:"capacidad_tabla"`
	IntervaloTick    int              `json:"intervalo_tick" yaml:"intervalo_tick"`
	RutaContabilidad string           `json:"ruta_contabilidad" yaml:"ruta_contabilidad"`
	Programas        map[string][]int `json:"programas" yaml:"programas"`
	LogLevel         string           `json:"log_level" yaml:"log_level"`
}

type PedidoFork struct {
	Padre    int    `json:"padre"`
	Programa string `json:"programa"`
}

type RespuestaFork struct {
	PID int `json:"pid"`
}

type PedidoEsperar struct {
	Padre int `json:"padre"`
}

type RespuestaEsperar struct {
	PID   int            `json:"pid"`
	Pstat internal.Pstat `json:"pstat"`
}

// RespuestaError acompaña a toda respuesta fallida con el código de la syscall.
type RespuestaError struct {
	PID    int    `json:"pid,omitempty"`
	Codigo int    `json:"codigo"`
	Error  string `json:"error"`
}
