package contabilidad

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sisoputnfrba/tp-golang/kernel/internal"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

// Entrada es una fila del registro de contabilidad: el estado final de un proceso reclamado.
type Entrada struct {
	ID              int64     `json:"id"`
	Reclamado       time.Time `json:"reclamado"`
	PID             int       `json:"pid"`
	Padre           int       `json:"padre"`
	Nombre          string    `json:"nombre"`
	CreacionTick    uint64    `json:"creacion_tick"`
	PrimerDespacho  uint64    `json:"primer_despacho_tick"`
	TerminacionTick uint64    `json:"terminacion_tick"`
	TicksEjecucion  uint64    `json:"ticks_ejecucion"`
	Turnaround      uint64    `json:"turnaround"`
	Espera          uint64    `json:"espera"`
	CodigoSalida    int       `json:"codigo_salida"`
}

// DB guarda el registro de contabilidad en SQLite.
type DB struct {
	db  *sql.DB
	Log *slog.Logger
}

func NewDB(dataDir string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creando el directorio de contabilidad: %w", err)
	}

	dbPath := filepath.Join(dataDir, "contabilidad.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("abriendo la base de contabilidad: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("activando WAL: %w", err)
	}

	if err = initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("Base de contabilidad lista", log.StringAttr("ruta", dbPath))
	return &DB{db: db, Log: logger}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS procesos (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		reclamado        DATETIME NOT NULL,
		pid              INTEGER NOT NULL,
		padre            INTEGER NOT NULL,
		nombre           TEXT NOT NULL,
		creacion_tick    INTEGER NOT NULL,
		primer_despacho  INTEGER NOT NULL,
		terminacion_tick INTEGER NOT NULL,
		ticks_ejecucion  INTEGER NOT NULL,
		turnaround       INTEGER NOT NULL,
		espera           INTEGER NOT NULL,
		codigo_salida    INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creando la tabla de contabilidad: %w", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_pid ON procesos(pid);"); err != nil {
		return fmt.Errorf("creando el índice de contabilidad: %w", err)
	}
	return nil
}

// Registrar agrega el registro final de un proceso reclamado.
func (d *DB) Registrar(ctx context.Context, r internal.Registro) error {
	tat, _ := r.Turnaround()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO procesos (
			reclamado, pid, padre, nombre, creacion_tick, primer_despacho,
			terminacion_tick, ticks_ejecucion, turnaround, espera, codigo_salida
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(),
		r.PID,
		r.Padre,
		r.Nombre,
		int64(r.CreacionTick),
		int64(r.PrimerDespachoTick),
		int64(r.TerminacionTick),
		int64(r.TicksEjecucion),
		int64(tat),
		int64(r.Espera()),
		r.CodigoSalida,
	)
	if err != nil {
		return fmt.Errorf("registrando la contabilidad del pid %d: %w", r.PID, err)
	}

	d.Log.Debug("Contabilidad registrada", log.IntAttr("pid", r.PID))
	return nil
}

// Listar devuelve las últimas entradas, de la más vieja a la más nueva. limite <= 0 trae todas.
func (d *DB) Listar(ctx context.Context, limite int) ([]Entrada, error) {
	if limite <= 0 {
		limite = -1
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, reclamado, pid, padre, nombre, creacion_tick, primer_despacho,
		       terminacion_tick, ticks_ejecucion, turnaround, espera, codigo_salida
		FROM (SELECT * FROM procesos ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, limite)
	if err != nil {
		return nil, fmt.Errorf("consultando la contabilidad: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	entradas := make([]Entrada, 0)
	for rows.Next() {
		var e Entrada
		if err = rows.Scan(
			&e.ID, &e.Reclamado, &e.PID, &e.Padre, &e.Nombre, &e.CreacionTick, &e.PrimerDespacho,
			&e.TerminacionTick, &e.TicksEjecucion, &e.Turnaround, &e.Espera, &e.CodigoSalida,
		); err != nil {
			return nil, fmt.Errorf("leyendo la contabilidad: %w", err)
		}
		entradas = append(entradas, e)
	}

	return entradas, rows.Err()
}

func (d *DB) Close() error {
	return d.db.Close()
}
