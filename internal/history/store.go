// Package history persists the actionable sightings of every domain. Records
// are append-only: a domain's history is created on its first actionable
// sighting, extended on every later one and never deleted.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

var (
	// ErrCorrupt is returned when persisted history violates its invariants.
	// Callers must stop; the store never repairs history by discarding it.
	ErrCorrupt = errors.New("history: corrupt domain history")

	// ErrNotFound is returned when the backing file does not exist. The file is
	// never created implicitly.
	ErrNotFound = errors.New("history: store not found")
)

// Store is the domain history used by the suppression policy. Implementations
// own their records; values returned to callers are copies.
type Store interface {
	// Lookup returns the record for name, or false when the domain has no history.
	Lookup(ctx context.Context, name string) (domain.DomainRecord, bool, error)
	// Append records q for name, creating the record on first sighting, and
	// persists the change before returning the updated record.
	Append(ctx context.Context, name string, q domain.Query) (domain.DomainRecord, error)
}

func checkRecord(rec domain.DomainRecord) error {
	if err := support.ValidateStruct(rec); err != nil {
		return fmt.Errorf("%w: record %q: %v", ErrCorrupt, rec.Domain, err)
	}
	if !rec.Consistent() {
		return fmt.Errorf("%w: record %q: count %d does not match %d stored queries",
			ErrCorrupt, rec.Domain, rec.Count, len(rec.Queries))
	}
	for i, q := range rec.Queries {
		if q.Time.IsZero() {
			return fmt.Errorf("%w: record %q: query %d has no time", ErrCorrupt, rec.Domain, i)
		}
	}
	return nil
}
