// Package config loads pipeline configuration from YAML files or SQLite
// databases.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Store          StoreData          `json:"store" yaml:"store"`
	Hydrology      HydrologyData      `json:"hydrology" yaml:"hydrology"`
	Dams           DamsData           `json:"dams" yaml:"dams"`
	Classification ClassificationData `json:"classification" yaml:"classification"`
	REST           RESTServerData     `json:"rest" yaml:"rest"`
}

// StoreData selects the feature store backend.
type StoreData struct {
	Backend          string `json:"backend" yaml:"backend" validate:"oneof=sqlite postgres memory"`
	SQLitePath       string `json:"sqlite_path,omitempty" yaml:"sqlite-path,omitempty" validate:"required_if=Backend sqlite"`
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection-string,omitempty" validate:"required_if=Backend postgres"`
}

// HydrologyData configures the regional curve pass. The equation strings are
// recorded in the project file only; they are never evaluated.
type HydrologyData struct {
	Region           int    `json:"region" yaml:"region"`
	BaseflowEquation string `json:"baseflow_equation,omitempty" yaml:"baseflow-equation,omitempty"`
	PeakflowEquation string `json:"peakflow_equation,omitempty" yaml:"peakflow-equation,omitempty"`
	ProjectFile      string `json:"project_file,omitempty" yaml:"project-file,omitempty"`
	NetworkPath      string `json:"network_path,omitempty" yaml:"network-path,omitempty"`
}

// DamsData configures the observed-dam summary pass.
type DamsData struct {
	// SnapTolerance is nil when unset; zero is a valid tolerance.
	SnapTolerance *float64 `json:"snap_tolerance,omitempty" yaml:"snap-tolerance,omitempty" validate:"omitnil,gte=0"`
}

// Tolerance returns the snap tolerance in meters, or the default when unset.
func (d DamsData) Tolerance() float64 {
	if d.SnapTolerance == nil {
		return DefaultSnapTolerance
	}
	return *d.SnapTolerance
}

// ClassificationData configures the classification engine.
type ClassificationData struct {
	Workers    int  `json:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0"`
	Management bool `json:"management,omitempty" yaml:"management,omitempty"`
	KeepLabels bool `json:"keep_labels,omitempty" yaml:"keep-labels,omitempty"`
}

// RESTServerData configures the read-only results API.
type RESTServerData struct {
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty" validate:"required_with=Key"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty" validate:"required_with=Cert"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen-addr,omitempty"`
}

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	DefaultSnapTolerance = 30.0
	DefaultRESTPort      = 8080
	DefaultSQLitePath    = "brat.db"
)

// ApplyDefaults fills unset values.
func (c *ConfigData) ApplyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Store.Backend == BackendSQLite && c.Store.SQLitePath == "" {
		c.Store.SQLitePath = DefaultSQLitePath
	}
	if c.Dams.SnapTolerance == nil {
		tolerance := DefaultSnapTolerance
		c.Dams.SnapTolerance = &tolerance
	}
	if c.REST.Port == 0 {
		c.REST.Port = DefaultRESTPort
	}
}

var validate = newValidator()

// newValidator reports fields by their YAML key, so errors name the setting a
// user actually wrote.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration for values the pipeline cannot use.
func (c *ConfigData) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := verrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "ConfigData.")
	if fe.Param() != "" {
		return fmt.Errorf("%s: failed %s=%s (value %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("%s: failed %s (value %v)", key, fe.Tag(), fe.Value())
}

// Load reads configuration from provider, applies defaults and validates it.
func Load(provider ConfigProvider) (*ConfigData, error) {
	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
