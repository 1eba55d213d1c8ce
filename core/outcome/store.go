package outcome

import (
	"errors"

	"github.com/kilianp07/busroute/core/store"
)

// FromStore maps a Data Store error for resource/id onto the taxonomy.
func FromStore(resource string, id int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return NotFound(resource, id)
	}
	if _, ok := As(err); ok {
		return err
	}
	return Persistence("data store unavailable", err)
}
