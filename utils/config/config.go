package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// IniciarConfiguracion decodifica el archivo de configuración en config, que debe ser un puntero.
// Los archivos .yaml/.yml se leen con yaml.v3 y el resto como JSON.
func IniciarConfiguracion(filePath string, config any) error {
	configFile, err := os.Open(filePath)
	if err != nil {
		slog.Error("Error al abrir el archivo de configuración",
			slog.Attr{Key: "filePath", Value: slog.StringValue(filePath)},
			slog.Attr{Key: "error", Value: slog.StringValue(err.Error())},
		)
		return fmt.Errorf("abriendo configuración %s: %w", filePath, err)
	}
	defer func() {
		_ = configFile.Close()
	}()

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(configFile).Decode(config)
	default:
		err = json.NewDecoder(configFile).Decode(config)
	}
	if err != nil {
		slog.Error("Error al decodificar el archivo de configuración",
			slog.Attr{Key: "filePath", Value: slog.StringValue(filePath)},
			slog.Attr{Key: "error", Value: slog.StringValue(err.Error())},
		)
		return fmt.Errorf("decodificando configuración %s: %w", filePath, err)
	}

	return nil
}
