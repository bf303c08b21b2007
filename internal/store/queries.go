package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zanvidmar/zahtevek/internal/model"
)

// Date range filter values. "all" (or empty) is a no-op.
const (
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeYear  = "year"
	RangeAll   = "all"
)

// RequisitionFilter narrows requisition list views. Zero values are no-ops,
// and the filters compose with AND semantics.
type RequisitionFilter struct {
	Status    string // one of the model statuses, or "" / "all"
	DateRange string // week, month, year, or "" / "all"
	Search    string // case-insensitive match against line item names

	// IncludeCancelled only applies to the unscoped admin listing;
	// the approval-queue view hides cancelled requisitions by default.
	IncludeCancelled bool
}

// Validate checks the filter's enumerated values.
func (f RequisitionFilter) Validate() error {
	var errs ValidationErrors
	if f.Status != "" && f.Status != RangeAll && !model.ValidStatus(f.Status) {
		errs = append(errs, fmt.Sprintf("unknown status filter: %q", f.Status))
	}
	switch f.DateRange {
	case "", RangeAll, RangeWeek, RangeMonth, RangeYear:
	default:
		errs = append(errs, fmt.Sprintf("unknown date range: %q", f.DateRange))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// cutoff returns the earliest created_at admitted by the date range,
// or a zero time when the range is a no-op.
func (f RequisitionFilter) cutoff(now time.Time) time.Time {
	switch f.DateRange {
	case RangeWeek:
		return now.AddDate(0, 0, -7)
	case RangeMonth:
		return now.AddDate(0, -1, 0)
	case RangeYear:
		return now.AddDate(-1, 0, 0)
	}
	return time.Time{}
}

// ListRequisitionsByRequester returns one actor's requisitions,
// newest-first, narrowed by the filter.
func ListRequisitionsByRequester(ctx context.Context, db *sql.DB, requesterID int64, filter RequisitionFilter) ([]model.Requisition, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	query, args := requisitionQuery(filter, &requesterID)
	return queryRequisitions(ctx, db, query, args)
}

// ListRequisitions returns requisitions across all requesters,
// newest-first, narrowed by the filter. Cancelled requisitions are hidden
// unless explicitly requested (by status filter or IncludeCancelled), so
// the default view works as an approval queue plus decision history.
func ListRequisitions(ctx context.Context, db *sql.DB, filter RequisitionFilter) ([]model.Requisition, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	query, args := requisitionQuery(filter, nil)
	return queryRequisitions(ctx, db, query, args)
}

func requisitionQuery(filter RequisitionFilter, requesterID *int64) (string, []any) {
	query := `SELECT r.id, r.requester_id, r.status, r.created_at,
	                 r.approved_by, r.approved_at,
	                 r.rejected_by, r.rejected_at, r.rejection_reason,
	                 r.fulfilled_by, r.fulfilled_at,
	                 u.username
	          FROM requisitions r
	          JOIN users u ON u.id = r.requester_id
	          WHERE 1=1`
	var args []any

	if requesterID != nil {
		query += ` AND r.requester_id = ?`
		args = append(args, *requesterID)
	}

	if filter.Status != "" && filter.Status != RangeAll {
		query += ` AND r.status = ?`
		args = append(args, filter.Status)
	} else if requesterID == nil && !filter.IncludeCancelled {
		query += ` AND r.status != ?`
		args = append(args, model.StatusCancelled)
	}

	if cutoff := filter.cutoff(time.Now()); !cutoff.IsZero() {
		// created_at is stored in SQLite's CURRENT_TIMESTAMP format.
		query += ` AND r.created_at >= ?`
		args = append(args, cutoff.UTC().Format("2006-01-02 15:04:05"))
	}

	if filter.Search != "" {
		query += ` AND EXISTS (SELECT 1 FROM requisition_lines l
		                       WHERE l.requisition_id = r.id
		                       AND l.item_name LIKE ? ESCAPE '\')`
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}

	query += ` ORDER BY r.created_at DESC, r.id DESC`
	return query, args
}

func queryRequisitions(ctx context.Context, db *sql.DB, query string, args []any) ([]model.Requisition, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requisitions: %w", err)
	}
	defer rows.Close()

	var reqs []model.Requisition
	for rows.Next() {
		var r model.Requisition
		var approvedBy, rejectedBy, fulfilledBy sql.NullInt64
		var rejectionReason, requesterName sql.NullString
		if err := rows.Scan(&r.ID, &r.RequesterID, &r.Status, &r.CreatedAt,
			&approvedBy, &r.ApprovedAt,
			&rejectedBy, &r.RejectedAt, &rejectionReason,
			&fulfilledBy, &r.FulfilledAt,
			&requesterName); err != nil {
			return nil, fmt.Errorf("scanning requisition: %w", err)
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
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reqs {
		lines, err := getLines(ctx, db, reqs[i].ID)
		if err != nil {
			return nil, err
		}
		reqs[i].Lines = lines
	}
	return reqs, nil
}

// CountRequisitionsByStatus returns one requester's per-status counts,
// computed from the store on every call rather than maintained as counters.
func CountRequisitionsByStatus(ctx context.Context, db *sql.DB, requesterID int64) (*model.StatusCounts, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM requisitions
		 WHERE requester_id = ? GROUP BY status`, requesterID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting requisitions: %w", err)
	}
	defer rows.Close()

	counts := &model.StatusCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning requisition count: %w", err)
		}
		switch status {
		case model.StatusPending:
			counts.Pending = n
		case model.StatusApproved:
			counts.Approved = n
		case model.StatusRejected:
			counts.Rejected = n
		case model.StatusFulfilled:
			counts.Fulfilled = n
		}
		counts.Total += n
	}
	return counts, rows.Err()
}

// escapeLike escapes LIKE wildcards in user-provided search text.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
