package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound covers missing records and, for requisition cancellation,
// the deliberately indistinguishable not-found / not-owned / not-pending
// cases so callers cannot probe for requisitions owned by others.
var ErrNotFound = errors.New("not found")

// ValidationErrors collects all input problems found during validation
// so the caller can fix everything in one resubmission.
type ValidationErrors []string

func (e ValidationErrors) Error() string {
	return strings.Join(e, "; ")
}

// InvalidTransitionError means a state change was attempted from a status
// that does not permit it. Current is reported so the caller can explain why.
type InvalidTransitionError struct {
	Current string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: requisition is already %s", e.Current)
}

// InsufficientStockError means a requested quantity exceeds what is on hand,
// either at creation-time validation or at the fulfillment-time re-check.
type InsufficientStockError struct {
	ItemName  string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (Available: %d, Requested: %d)",
		e.ItemName, e.Available, e.Requested)
}

// ConflictError means a stock adjustment's expected item identity no longer
// matches the stored item, e.g. a scan of a since-renamed item. The caller
// should re-fetch and retry.
type ConflictError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("item %s changed: expected %q, found %q (re-fetch and retry)",
		e.Field, e.Expected, e.Actual)
}

// InvalidQuantityError means an adjustment would drive an item's quantity
// negative.
type InvalidQuantityError struct {
	Current int
	Delta   int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("adjustment would result in negative quantity: %d%+d = %d",
		e.Current, e.Delta, e.Current+e.Delta)
}
