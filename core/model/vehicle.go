package model

import "fmt"

// Vehicle is a bus contributing seating capacity to the routes it serves.
type Vehicle struct {
	ID              int64  `json:"id"`
	Number          string `json:"number"`
	SeatingCapacity int    `json:"seating_capacity"`
}

// Validate checks that the vehicle configuration is sound.
// In particular SeatingCapacity must not be negative.
func (v Vehicle) Validate() error {
	if v.SeatingCapacity < 0 {
		return fmt.Errorf("seating capacity must not be negative")
	}
	return nil
}

// Driver operates a vehicle on a route slot.
type Driver struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	LicenseClass string `json:"license_class,omitempty"`
}

// Ref returns a pointer to a copy of id, handy for optional references.
func Ref(id int64) *int64 { return &id }
