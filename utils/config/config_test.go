package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type configPrueba struct {
	PortKernel int              `json:"port_kernel" yaml:"port_kernel"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	Programas  map[string][]int `json:"programas" yaml:"programas"`
}

func escribir(t *testing.T, nombre, contenido string) string {
	t.Helper()
	ruta := filepath.Join(t.TempDir(), nombre)
	require.NoError(t, os.WriteFile(ruta, []byte(contenido), 0o644))
	return ruta
}

func TestIniciarConfiguracion(t *testing.T) {
	tests := []struct {
		name    string
		archivo string
		data    string
		want    configPrueba
		wantErr bool
	}{
		{
			name:    "json",
			archivo: "config.json",
			data:    `{"port_kernel": 8001, "log_level": "debug", "programas": {"uniq": [3, 2, 1]}}`,
			want:    configPrueba{PortKernel: 8001, LogLevel: "debug", Programas: map[string][]int{"uniq": {3, 2, 1}}},
		},
		{
			name:    "yaml",
			archivo: "config.yaml",
			data:    "port_kernel: 8002\nlog_level: info\nprogramas:\n  head: [4]\n",
			want:    configPrueba{PortKernel: 8002, LogLevel: "info", Programas: map[string][]int{"head": {4}}},
		},
		{
			name:    "json inválido",
			archivo: "roto.json",
			data:    `{"port_kernel": `,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ruta := escribir(t, tt.archivo, tt.data)
			var got configPrueba
			err := IniciarConfiguracion(ruta, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIniciarConfiguracion_ArchivoInexistente(t *testing.T) {
	var got configPrueba
	err := IniciarConfiguracion(filepath.Join(t.TempDir(), "no-existe.json"), &got)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
