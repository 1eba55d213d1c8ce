package config

import "fmt"

// StoreConfig selects the Data Store backend.
type StoreConfig struct {
	// Driver is one of "memory", "sqlite", "postgres" or "mysql".
	Driver       string `json:"driver"`
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.Driver == "sqlite" && c.DSN == "" {
		c.DSN = "busroute.db"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Driver {
	case "memory":
		return nil
	case "sqlite", "postgres", "mysql":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for driver %s", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("unknown driver %s", c.Driver)
	}
}
