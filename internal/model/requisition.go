package model

import "time"

// Requisition statuses. Pending is the only non-terminal status besides
// Approved; Rejected, Fulfilled, and Cancelled are terminal.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether status is one of the known requisition statuses.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusFulfilled, StatusCancelled:
		return true
	}
	return false
}

// TerminalStatus reports whether no further transition is legal from status.
func TerminalStatus(status string) bool {
	switch status {
	case StatusRejected, StatusFulfilled, StatusCancelled:
		return true
	}
	return false
}

// Requisition represents one request for inventory items, subject to the
// approval workflow. Lines are fixed at creation; only the status and its
// transition metadata change afterwards.
type Requisition struct {
	ID          int64             `json:"id"`
	RequesterID int64             `json:"requester_id"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	Lines       []RequisitionLine `json:"lines"`

	ApprovedBy      *int64     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      *int64     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	FulfilledBy     *int64     `json:"fulfilled_by,omitempty"`
	FulfilledAt     *time.Time `json:"fulfilled_at,omitempty"`

	// Joined field (not always populated).
	RequesterName string `json:"requester_name,omitempty"`
}

// RequisitionLine is one requested item. ItemName is snapshotted at creation
// so history display survives later item renames.
type RequisitionLine struct {
	ID            int64  `json:"id"`
	RequisitionID int64  `json:"requisition_id"`
	ItemID        int64  `json:"item_id"`
	ItemName      string `json:"item_name"`
	Quantity      int    `json:"quantity"`
	Purpose       string `json:"purpose"`
}

// StatusCounts holds per-status requisition counts for one requester.
type StatusCounts struct {
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Fulfilled int `json:"fulfilled"`
	Total     int `json:"total"`
}
