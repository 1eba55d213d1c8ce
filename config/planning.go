package config

import (
	"fmt"
	"time"
)

// PlanningConfig holds the domain defaults of the planner.
type PlanningConfig struct {
	// DefaultCapacity applies when no vehicle contributes seats.
	DefaultCapacity     int    `json:"default_capacity"`
	DefaultStartTime    string `json:"default_start_time"`
	DefaultDwellMinutes int    `json:"default_dwell_minutes"`
	RecomputeDelayMS    int    `json:"recompute_delay_ms"`
	// StrictActivation makes missing stops or vehicles block activation.
	StrictActivation bool   `json:"strict_activation"`
	DefaultSchool    string `json:"default_school"`
}

// SetDefaults applies sane defaults.
func (c *PlanningConfig) SetDefaults() {
	if c.DefaultCapacity <= 0 {
		c.DefaultCapacity = 30
	}
	if c.DefaultStartTime == "" {
		c.DefaultStartTime = "07:30"
	}
	if c.DefaultDwellMinutes <= 0 {
		c.DefaultDwellMinutes = 2
	}
	if c.RecomputeDelayMS <= 0 {
		c.RecomputeDelayMS = 600
	}
}

// Validate checks that the defaults are usable.
func (c PlanningConfig) Validate() error {
	if _, err := time.Parse("15:04", c.DefaultStartTime); err != nil {
		return fmt.Errorf("default_start_time %q is not HH:mm", c.DefaultStartTime)
	}
	return nil
}

// RecomputeDelay returns the coalescing delay of the recompute scheduler.
func (c PlanningConfig) RecomputeDelay() time.Duration {
	return time.Duration(c.RecomputeDelayMS) * time.Millisecond
}
