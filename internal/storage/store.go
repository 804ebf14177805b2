// Package storage persists the portal's heterogeneous records: a handful of
// indexed fields per record plus an opaque kind-specific attribute bag.
package storage

import (
	"context"

	"reportal/internal/core"
)

// DuplicatePolicy names what happens when a periodic report arrives for a
// (submitter, year, month) key that already has one. The business rule is
// explicit configuration, not inferred from constraint errors.
type DuplicatePolicy string

const (
	// RejectDuplicates refuses the second submission; callers tell the
	// submitter to edit the existing record instead.
	RejectDuplicates DuplicatePolicy = "reject"
	// OverwriteDuplicates replaces the existing record's payload wholesale.
	OverwriteDuplicates DuplicatePolicy = "overwrite"
)

// Valid reports whether p is a known policy.
func (p DuplicatePolicy) Valid() bool {
	return p == RejectDuplicates || p == OverwriteDuplicates
}

// Filter narrows List results on the indexed fields. Zero values match
// everything; filtering on attribute-bag contents happens downstream.
type Filter struct {
	Zone        string
	Year        int
	Month       int
	SubmittedBy string
}

func (f Filter) matches(r core.Record) bool {
	if f.Zone != "" && r.Zone != f.Zone {
		return false
	}
	if f.Year != 0 && r.Year != f.Year {
		return false
	}
	if f.Month != 0 && r.Month != f.Month {
		return false
	}
	if f.SubmittedBy != "" && r.SubmittedBy != f.SubmittedBy {
		return false
	}
	return true
}

// Store is the record persistence port. Each kind's records are
// independent; no operation spans kinds transactionally.
type Store interface {
	// Insert stores a record, assigning its ID and stamping submitted_at.
	// Kinds with a per-period uniqueness rule return core.ErrDuplicateKey
	// or overwrite in place, per the configured policy.
	Insert(ctx context.Context, rec core.Record) (int64, error)

	// Update replaces the mutable payload (zone, period, attributes,
	// amounts) of an existing record and restamps submitted_at.
	// Returns core.ErrNotFound when no such record exists.
	Update(ctx context.Context, id int64, kind core.Kind, rec core.Record) error

	// Delete removes a record immediately; there is no undo.
	// Returns core.ErrNotFound when no such record exists.
	Delete(ctx context.Context, id int64, kind core.Kind) error

	// Get fetches one record by id within its kind's namespace.
	Get(ctx context.Context, id int64, kind core.Kind) (core.Record, error)

	// List returns records of one kind matching the filter, in insertion
	// order. Callers needing a different order sort themselves.
	List(ctx context.Context, kind core.Kind, f Filter) ([]core.Record, error)

	// ListAll returns the union across kinds, each record tagged with its
	// kind, grouped in the order the kinds were requested.
	ListAll(ctx context.Context, kinds []core.Kind) ([]core.Record, error)

	Close() error
}
