// Package store implements the single-table key-value abstraction (C1):
// typed access over one logical table keyed by (PK, SK), with three
// secondary indexes, conditional writes, and cursor-paginated listings.
//
// One Redis hash per item plus sorted sets for each index, with an
// in-memory implementation sharing the same interface for unit tests.
package store

import (
	"context"

	"github.com/algojudge/corejudge/errs"
)

// Condition gates a write on the current state of the item. The zero
// value is ConditionNone.
type Condition struct {
	kind       conditionKind
	attr       string
	wantEquals any
}

type conditionKind int

const (
	conditionNone conditionKind = iota
	conditionExists
	conditionNotExists
	conditionAttrEquals
)

// ConditionNone performs the write unconditionally.
func ConditionNone() Condition { return Condition{kind: conditionNone} }

// ConditionExists requires the item to already exist.
func ConditionExists() Condition { return Condition{kind: conditionExists} }

// ConditionNotExists requires the item to not already exist (create-only).
func ConditionNotExists() Condition { return Condition{kind: conditionNotExists} }

// ConditionAttrEquals requires Data[attr] to equal want in the item
// currently stored. Used for the Job FSM's monotonic-transition guard
// (§4.7): "status" must equal the expected prior state.
func ConditionAttrEquals(attr string, want any) Condition {
	return Condition{kind: conditionAttrEquals, attr: attr, wantEquals: want}
}

// Page is the result of an index listing: the matched items plus an
// opaque cursor to resume from. Cursor is empty when there are no more
// results.
type Page struct {
	Items  []*Item
	Cursor string
}

// Store is the capability every repository builds on. Implementations:
// RedisStore for production, MemoryStore for tests.
type Store interface {
	// Put creates or replaces the item at (PK, SK), subject to cond.
	// Returns *errs.Error{Kind: KindPreconditionFailed} if cond is not
	// satisfied, KindThrottled/KindTransient for capacity/network
	// failures.
	Put(ctx context.Context, item *Item, cond Condition) error

	// Get retrieves the item at (PK, SK). Returns
	// *errs.Error{Kind: KindNotFound} if absent.
	Get(ctx context.Context, pk, sk string) (*Item, error)

	// Delete removes the item at (PK, SK), subject to cond. Deleting an
	// absent item under ConditionNone is a no-op success.
	Delete(ctx context.Context, pk, sk string, cond Condition) error

	// Query lists items under a PK by SK prefix, newest-insertion-order
	// is not guaranteed; order is SK lexicographic ascending unless
	// descending is set.
	Query(ctx context.Context, pk, skPrefix string, descending bool, limit int, cursor string) (*Page, error)

	// QueryIndex lists items projected onto the named secondary index
	// (1, 2, or 3) whose index partition key equals pk, ordered by the
	// index sort key. GSI2 is hash-only (§3): QueryIndex on index 2
	// returns items in unspecified order and ignores descending.
	QueryIndex(ctx context.Context, index int, pk string, descending bool, limit int, cursor string) (*Page, error)

	// CountIndex returns the number of items under an index partition
	// without transferring item bodies.
	CountIndex(ctx context.Context, index int, pk string) (int64, error)

	// CountPK returns the number of items directly under a base-table
	// partition, the COUNT-only query in §4.2 step 3.
	CountPK(ctx context.Context, pk string) (int64, error)

	// Ping verifies connectivity, used by the process-wide init() check.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}

// notFound and preconditionFailed are convenience constructors used by
// every Store implementation so error shape stays consistent.
func notFound(pk, sk string) error {
	return errs.New(errs.KindNotFound, "item not found: "+pk+"#"+sk)
}

func preconditionFailed(pk, sk string) error {
	return errs.New(errs.KindPreconditionFailed, "condition failed for "+pk+"#"+sk)
}
