package config

// HTTPConfig configures the automation API.
type HTTPConfig struct {
	Address     string   `json:"address"`
	CORSOrigins []string `json:"cors_origins"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}
