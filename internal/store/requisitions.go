package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zanvidmar/zahtevek/internal/model"
)

// LineInput is one requested line as submitted by the requester.
type LineInput struct {
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"quantity"`
	Purpose  string `json:"purpose"`
}

// CreateRequisition validates every line against the current inventory and,
// if all pass, persists a new pending requisition with item names
// snapshotted. Validation collects ALL line errors (shape, existence,
// availability) and reports them together; any error aborts the whole
// creation with nothing persisted. The availability check is point-in-time;
// fulfillment re-checks atomically before stock is actually debited.
func CreateRequisition(ctx context.Context, db *sql.DB, requesterID int64, lines []LineInput) (*model.Requisition, error) {
	var errs ValidationErrors

	if len(lines) == 0 {
		errs = append(errs, "at least one item line is required")
		return nil, errs
	}

	// Resolved items for well-formed lines, by line index.
	resolved := make(map[int]*model.Item)

	for i, line := range lines {
		wellFormed := true
		if line.ItemID <= 0 {
			errs = append(errs, fmt.Sprintf("line %d: item is required", i+1))
			wellFormed = false
		}
		if line.Quantity <= 0 {
			errs = append(errs, fmt.Sprintf("line %d: quantity must be a positive integer", i+1))
			wellFormed = false
		}
		if strings.TrimSpace(line.Purpose) == "" {
			errs = append(errs, fmt.Sprintf("line %d: purpose is required", i+1))
			wellFormed = false
		}
		if !wellFormed {
			continue
		}

		item, err := GetItem(ctx, db, line.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil || item.DeletedAt != nil {
			errs = append(errs, fmt.Sprintf("line %d: item not found", i+1))
			continue
		}
		if line.Quantity > item.Quantity {
			errs = append(errs, fmt.Sprintf("line %d: insufficient stock for %s (Available: %d, Requested: %d)",
				i+1, item.Name, item.Quantity, line.Quantity))
			continue
		}
		resolved[i] = item
	}

	if len(errs) > 0 {
		return nil, errs
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO requisitions (requester_id, status) VALUES (?, ?)`,
		requesterID, model.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("creating requisition: %w", err)
	}

	reqID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting requisition id: %w", err)
	}

	for i, line := range lines {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO requisition_lines (requisition_id, item_id, item_name, quantity, purpose)
			 VALUES (?, ?, ?, ?, ?)`,
			reqID, line.ItemID, resolved[i].Name, line.Quantity, strings.TrimSpace(line.Purpose),
		)
		if err != nil {
			return nil, fmt.Errorf("creating requisition line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing requisition: %w", err)
	}

	return GetRequisition(ctx, db, reqID)
}

// GetRequisition returns a requisition with its lines, or nil if not found.
func GetRequisition(ctx context.Context, db *sql.DB, id int64) (*model.Requisition, error) {
	r := &model.Requisition{}
	var approvedBy, rejectedBy, fulfilledBy sql.NullInt64
	var rejectionReason, requesterName sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT r.id, r.requester_id, r.status, r.created_at,
		        r.approved_by, r.approved_at,
		        r.rejected_by, r.rejected_at, r.rejection_reason,
		        r.fulfilled_by, r.fulfilled_at,
		        u.username
		 FROM requisitions r
		 JOIN users u ON u.id = r.requester_id
		 WHERE r.id = ?`, id,
	).Scan(&r.ID, &r.RequesterID, &r.Status, &r.CreatedAt,
		&approvedBy, &r.ApprovedAt,
		&rejectedBy, &r.RejectedAt, &rejectionReason,
		&fulfilledBy, &r.FulfilledAt,
		&requesterName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting requisition: %w", err)
	}

	if approvedBy.Valid {
		r.ApprovedBy = &approvedBy.Int64
	}
	if rejectedBy.Valid {
		r.RejectedBy = &rejectedBy.Int64
	}
	if fulfilledBy.Valid {
		r.FulfilledBy = &fulfilledBy.Int64
	}
	r.RejectionReason = rejectionReason.String
	r.RequesterName = requesterName.String

	lines, err := getLines(ctx, db, id)
	if err != nil {
		return nil, err
	}
	r.Lines = lines
	return r, nil
}

func getLines(ctx context.Context, db *sql.DB, requisitionID int64) ([]model.RequisitionLine, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, requisition_id, item_id, item_name, quantity, purpose
		 FROM requisition_lines WHERE requisition_id = ? ORDER BY id`, requisitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting requisition lines: %w", err)
	}
	defer rows.Close()

	var lines []model.RequisitionLine
	for rows.Next() {
		var l model.RequisitionLine
		if err := rows.Scan(&l.ID, &l.RequisitionID, &l.ItemID, &l.ItemName, &l.Quantity, &l.Purpose); err != nil {
			return nil, fmt.Errorf("scanning requisition line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ApproveRequisition moves a pending requisition to approved. The update is
// conditional on the current status, so of two concurrent decisions only one
// can win; the loser sees InvalidTransitionError with the winner's status.
func ApproveRequisition(ctx context.Context, db *sql.DB, id, adminID int64) (*model.Requisition, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE requisitions
		 SET status = ?, approved_by = ?, approved_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		model.StatusApproved, adminID, id, model.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("approving requisition: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, transitionFailure(ctx, db, id)
	}

	return GetRequisition(ctx, db, id)
}

// RejectRequisition moves a pending requisition to rejected with a reason.
func RejectRequisition(ctx context.Context, db *sql.DB, id, adminID int64, reason string) (*model.Requisition, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ValidationErrors{"rejection reason is required"}
	}

	result, err := db.ExecContext(ctx,
		`UPDATE requisitions
		 SET status = ?, rejected_by = ?, rejected_at = CURRENT_TIMESTAMP, rejection_reason = ?
		 WHERE id = ? AND status = ?`,
		model.StatusRejected, adminID, reason, id, model.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("rejecting requisition: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, transitionFailure(ctx, db, id)
	}

	return GetRequisition(ctx, db, id)
}

// FulfillRequisition moves an approved requisition to fulfilled and debits
// stock for every line. This is the single point where stock is consumed:
// creation only validated availability, so the quantities are re-checked
// here with a guarded decrement. Everything runs in one transaction, so an
// insufficient line rolls back both the status flip and any earlier
// decrements, leaving the requisition approved.
func FulfillRequisition(ctx context.Context, db *sql.DB, id, adminID int64) (*model.Requisition, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE requisitions
		 SET status = ?, fulfilled_by = ?, fulfilled_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		model.StatusFulfilled, adminID, id, model.StatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("fulfilling requisition: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, transitionFailure(ctx, tx, id)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT item_id, item_name, quantity FROM requisition_lines
		 WHERE requisition_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("reading requisition lines: %w", err)
	}

	type consumedLine struct {
		itemID   int64
		itemName string
		quantity int
	}
	var lines []consumedLine
	for rows.Next() {
		var l consumedLine
		if err := rows.Scan(&l.itemID, &l.itemName, &l.quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning requisition line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("reading requisition lines: %w", err)
	}
	rows.Close()

	for _, line := range lines {
		result, err := tx.ExecContext(ctx,
			`UPDATE items SET quantity = quantity - ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND deleted_at IS NULL AND quantity >= ?`,
			line.quantity, line.itemID, line.quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("debiting stock: %w", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			// Stock drifted below the requested amount (or the item was
			// deleted) since creation. Report what is actually available;
			// the rollback keeps the requisition approved.
			var available int
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE((SELECT quantity FROM items WHERE id = ? AND deleted_at IS NULL), 0)`,
				line.itemID,
			).Scan(&available)
			if err != nil {
				return nil, fmt.Errorf("reading available stock: %w", err)
			}
			return nil, &InsufficientStockError{
				ItemName:  line.itemName,
				Available: available,
				Requested: line.quantity,
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing fulfillment: %w", err)
	}

	return GetRequisition(ctx, db, id)
}

// CancelRequisition cancels a pending requisition on behalf of its
// requester. Wrong id, wrong owner, and wrong status all collapse into
// ErrNotFound so callers cannot learn about requisitions they do not own.
func CancelRequisition(ctx context.Context, db *sql.DB, id, requesterID int64) (*model.Requisition, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE requisitions SET status = ?
		 WHERE id = ? AND requester_id = ? AND status = ?`,
		model.StatusCancelled, id, requesterID, model.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("cancelling requisition: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ErrNotFound
	}

	return GetRequisition(ctx, db, id)
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// transitionFailure explains a failed conditional status update: the
// requisition either does not exist or is in a status that forbids the
// attempted transition.
func transitionFailure(ctx context.Context, q rowQuerier, id int64) error {
	var status string
	err := q.QueryRowContext(ctx,
		`SELECT status FROM requisitions WHERE id = ?`, id,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading requisition status: %w", err)
	}
	return &InvalidTransitionError{Current: status}
}
