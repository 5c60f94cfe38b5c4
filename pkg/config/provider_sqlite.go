package config

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

const settingsSchema = `CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Settings are stored as dotted key/value pairs, e.g. "dams.snap-tolerance".
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

type setter func(cfg *ConfigData, value string) error

func stringSetter(field func(*ConfigData) *string) setter {
	return func(cfg *ConfigData, value string) error {
		*field(cfg) = value
		return nil
	}
}

func intSetter(field func(*ConfigData) *int) setter {
	return func(cfg *ConfigData, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func floatSetter(field func(*ConfigData) *float64) setter {
	return func(cfg *ConfigData, value string) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		*field(cfg) = f
		return nil
	}
}

func boolSetter(field func(*ConfigData) *bool) setter {
	return func(cfg *ConfigData, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

var settingKeys = map[string]setter{
	"store.backend":               stringSetter(func(c *ConfigData) *string { return &c.Store.Backend }),
	"store.sqlite-path":           stringSetter(func(c *ConfigData) *string { return &c.Store.SQLitePath }),
	"store.connection-string":     stringSetter(func(c *ConfigData) *string { return &c.Store.ConnectionString }),
	"hydrology.region":            intSetter(func(c *ConfigData) *int { return &c.Hydrology.Region }),
	"hydrology.baseflow-equation": stringSetter(func(c *ConfigData) *string { return &c.Hydrology.BaseflowEquation }),
	"hydrology.peakflow-equation": stringSetter(func(c *ConfigData) *string { return &c.Hydrology.PeakflowEquation }),
	"hydrology.project-file":      stringSetter(func(c *ConfigData) *string { return &c.Hydrology.ProjectFile }),
	"hydrology.network-path":      stringSetter(func(c *ConfigData) *string { return &c.Hydrology.NetworkPath }),
	"dams.snap-tolerance": floatSetter(func(c *ConfigData) *float64 {
		if c.Dams.SnapTolerance == nil {
			c.Dams.SnapTolerance = new(float64)
		}
		return c.Dams.SnapTolerance
	}),
	"classification.workers":     intSetter(func(c *ConfigData) *int { return &c.Classification.Workers }),
	"classification.management":  boolSetter(func(c *ConfigData) *bool { return &c.Classification.Management }),
	"classification.keep-labels": boolSetter(func(c *ConfigData) *bool { return &c.Classification.KeepLabels }),
	"rest.cert":                  stringSetter(func(c *ConfigData) *string { return &c.REST.Cert }),
	"rest.key":                   stringSetter(func(c *ConfigData) *string { return &c.REST.Key }),
	"rest.port":                  intSetter(func(c *ConfigData) *int { return &c.REST.Port }),
	"rest.listen-addr":           stringSetter(func(c *ConfigData) *string { return &c.REST.ListenAddr }),
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	config := &ConfigData{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		set, ok := settingKeys[key]
		if !ok {
			return nil, fmt.Errorf("unknown setting %q", key)
		}
		if err := set(config, value); err != nil {
			return nil, fmt.Errorf("setting %q: %w", key, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return config, nil
}

// SetValue stores a single setting, replacing any previous value.
func (s *SQLiteProvider) SetValue(key, value string) error {
	if _, ok := settingKeys[key]; !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
