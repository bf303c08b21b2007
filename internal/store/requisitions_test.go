package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/zanvidmar/zahtevek/internal/db"
	"github.com/zanvidmar/zahtevek/internal/model"
)

func seedUser(t *testing.T, database *sql.DB, username, role string) *model.User {
	t.Helper()
	user, err := CreateUser(context.Background(), database, username, "hash", role)
	if err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
	return user
}

func seedItem(t *testing.T, database *sql.DB, name string, quantity int) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, name, "Lab Supplies", "Storeroom", "", quantity, 0)
	if err != nil {
		t.Fatalf("seeding item %s: %v", name, err)
	}
	return item
}

func TestCreateRequisitionPending(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 10)

	req, err := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 5, Purpose: "lab"},
	})
	if err != nil {
		t.Fatalf("CreateRequisition: %v", err)
	}
	if req.Status != model.StatusPending {
		t.Errorf("expected status pending, got %q", req.Status)
	}
	if len(req.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(req.Lines))
	}
	if req.Lines[0].ItemName != "Beaker" {
		t.Errorf("expected item name snapshot 'Beaker', got %q", req.Lines[0].ItemName)
	}
	if req.RequesterID != requester.ID {
		t.Errorf("expected requester %d, got %d", requester.ID, req.RequesterID)
	}

	// Creation only validates; stock is untouched until fulfillment.
	got, _ := GetItem(ctx, database, item.ID)
	if got.Quantity != 10 {
		t.Errorf("expected quantity still 10 after creation, got %d", got.Quantity)
	}
}

func TestCreateRequisitionInsufficientStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 10)

	_, err := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 20, Purpose: "lab"},
	})

	var validation ValidationErrors
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(validation) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(validation), validation)
	}
	if !strings.Contains(validation[0], "Available: 10, Requested: 20") {
		t.Errorf("expected shortfall in message, got %q", validation[0])
	}
}

func TestCreateRequisitionCollectsAllLineErrors(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 10)

	_, err := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 0, Purpose: "lab"},  // bad quantity
		{ItemID: item.ID, Quantity: 1, Purpose: "  "},   // missing purpose
		{ItemID: 999, Quantity: 1, Purpose: "lab"},      // unknown item
		{ItemID: item.ID, Quantity: 11, Purpose: "lab"}, // more than on hand
		{ItemID: item.ID, Quantity: 2, Purpose: "lab"},  // fine
	})

	var validation ValidationErrors
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(validation) != 4 {
		t.Errorf("expected one error per bad line (4), got %d: %v", len(validation), validation)
	}

	// Nothing persisted.
	reqs, _ := ListRequisitionsByRequester(ctx, database, requester.ID, RequisitionFilter{})
	if len(reqs) != 0 {
		t.Errorf("expected no requisitions persisted, got %d", len(reqs))
	}
}

func TestCreateRequisitionRequiresLines(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	requester := seedUser(t, database, "bojan", model.RoleFaculty)

	var validation ValidationErrors
	_, err := CreateRequisition(ctx, database, requester.ID, nil)
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationErrors for empty lines, got %v", err)
	}
}

func TestApproveRequisition(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedUser(t, database, "admin", model.RoleAdmin)
	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 10)

	req, _ := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 5, Purpose: "lab"},
	})

	approved, err := ApproveRequisition(ctx, database, req.ID, admin.ID)
	if err != nil {
		t.Fatalf("ApproveRequisition: %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("expected status approved, got %q", approved.Status)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != admin.ID {
		t.Errorf("expected approved_by %d, got %v", admin.ID, approved.ApprovedBy)
	}
	if approved.ApprovedAt == nil {
		t.Error("expected approved_at to be set")
	}

	// Approving again fails with the current status.
	var transition *InvalidTransitionError
	_, err = ApproveRequisition(ctx, database, req.ID, admin.ID)
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if transition.Current != model.StatusApproved {
		t.Errorf("expected current status approved, got %q", transition.Current)
	}
}

func TestApproveMissingRequisition(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedUser(t, database, "admin", model.RoleAdmin)

	if _, err := ApproveRequisition(ctx, database, 999, admin.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectRequisition(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedUser(t, database, "admin", model.RoleAdmin)
	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 10)

	req, _ := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 5, Purpose: "lab"},
	})

	// An empty (or blank) reason is a validation error and changes nothing.
	var validation ValidationErrors
	if _, err := RejectRequisition(ctx, database, req.ID, admin.ID, "   "); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationErrors for blank reason, got %v", err)
	}
	got, _ := GetRequisition(ctx, database, req.ID)
	if got.Status != model.StatusPending {
		t.Errorf("expected status still pending, got %q", got.Status)
	}

	rejected, err := RejectRequisition(ctx, database, req.ID, admin.ID, "budget exhausted")
	if err != nil {
		t.Fatalf("RejectRequisition: %v", err)
	}
	if rejected.Status != model.StatusRejected {
		t.Errorf("expected status rejected, got %q", rejected.Status)
	}
	if rejected.RejectionReason != "budget exhausted" {
		t.Errorf("expected rejection reason recorded, got %q", rejected.RejectionReason)
	}
	if rejected.RejectedBy == nil || *rejected.RejectedBy != admin.ID {
		t.Errorf("expected rejected_by %d, got %v", admin.ID, rejected.RejectedBy)
	}
}

func TestFulfillDebitsStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedUser(t, database, "admin", model.RoleAdmin)
	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 10)

	req, _ := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 4, Purpose: "lab"},
	})
	ApproveRequisition(ctx, database, req.ID, admin.ID)

	fulfilled, err := FulfillRequisition(ctx, database, req.ID, admin.ID)
	if err != nil {
		t.Fatalf("FulfillRequisition: %v", err)
	}
	if fulfilled.Status != model.StatusFulfilled {
		t.Errorf("expected status fulfilled, got %q", fulfilled.Status)
	}
	if fulfilled.FulfilledBy == nil || *fulfilled.FulfilledBy != admin.ID {
		t.Errorf("expected fulfilled_by %d, got %v", admin.ID, fulfilled.FulfilledBy)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Quantity != 6 {
		t.Errorf("expected quantity 6 after fulfillment, got %d", got.Quantity)
	}
}

func TestFulfillRechecksStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedUser(t, database, "admin", model.RoleAdmin)
	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 10)

	req, _ := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 5, Purpose: "lab"},
	})
	ApproveRequisition(ctx, database, req.ID, admin.ID)

	// Stock drifts to zero between approval and fulfillment.
	AdjustQuantity(ctx, database, item.ID, -10, "Beaker", "Lab Supplies")

	var insufficient *InsufficientStockError
	_, err := FulfillRequisition(ctx, database, req.ID, admin.ID)
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 0 || insufficient.Requested != 5 {
		t.Errorf("expected Available=0 Requested=5, got %+v", insufficient)
	}

	// The requisition stays approved and the quantity never went negative.
	got, _ := GetRequisition(ctx, database, req.ID)
	if got.Status != model.StatusApproved {
		t.Errorf("expected status still approved, got %q", got.Status)
	}
	gotItem, _ := GetItem(ctx, database, item.ID)
	if gotItem.Quantity != 0 {
		t.Errorf("expected quantity 0, got %d", gotItem.Quantity)
	}
}

func TestFulfillRollsBackOnPartialShortfall(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedUser(t, database, "admin", model.RoleAdmin)
	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	plenty := seedItem(t, database, "Gloves", 100)
	scarce := seedItem(t, database, "Flasks", 10)

	req, _ := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: plenty.ID, Quantity: 10, Purpose: "lab"},
		{ItemID: scarce.ID, Quantity: 10, Purpose: "lab"},
	})
	ApproveRequisition(ctx, database, req.ID, admin.ID)
	AdjustQuantity(ctx, database, scarce.ID, -5, "Flasks", "Lab Supplies")

	if _, err := FulfillRequisition(ctx, database, req.ID, admin.ID); err == nil {
		t.Fatal("expected fulfillment to fail on the scarce line")
	}

	// The first line's decrement must have rolled back with the rest.
	gotPlenty, _ := GetItem(ctx, database, plenty.ID)
	if gotPlenty.Quantity != 100 {
		t.Errorf("expected quantity 100 after rollback, got %d", gotPlenty.Quantity)
	}
	got, _ := GetRequisition(ctx, database, req.ID)
	if got.Status != model.StatusApproved {
		t.Errorf("expected status still approved, got %q", got.Status)
	}
}

func TestSequentialFulfillsNeverOversell(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedUser(t, database, "admin", model.RoleAdmin)
	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 10)

	// Both creations pass the point-in-time check against the same stock.
	first, _ := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 6, Purpose: "lab"},
	})
	second, _ := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 6, Purpose: "lab"},
	})
	ApproveRequisition(ctx, database, first.ID, admin.ID)
	ApproveRequisition(ctx, database, second.ID, admin.ID)

	if _, err := FulfillRequisition(ctx, database, first.ID, admin.ID); err != nil {
		t.Fatalf("first fulfillment: %v", err)
	}

	var insufficient *InsufficientStockError
	_, err := FulfillRequisition(ctx, database, second.ID, admin.ID)
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError on second fulfillment, got %v", err)
	}
	if insufficient.Available != 4 {
		t.Errorf("expected 4 available, got %d", insufficient.Available)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Quantity != 4 {
		t.Errorf("expected quantity 4, got %d", got.Quantity)
	}
}

func TestFulfillRequiresApproved(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedUser(t, database, "admin", model.RoleAdmin)
	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 10)

	req, _ := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 5, Purpose: "lab"},
	})

	var transition *InvalidTransitionError
	_, err := FulfillRequisition(ctx, database, req.ID, admin.ID)
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidTransitionError for pending requisition, got %v", err)
	}
	if transition.Current != model.StatusPending {
		t.Errorf("expected current status pending, got %q", transition.Current)
	}
}

func TestCancelRequisition(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	other := seedUser(t, database, "marta", model.RoleStaff)
	item := seedItem(t, database, "Beaker", 10)

	req, _ := CreateRequisition(ctx, database, requester.ID, []LineInput{
		{ItemID: item.ID, Quantity: 5, Purpose: "lab"},
	})

	// A different user cannot cancel, and learns nothing beyond "not found".
	if _, err := CancelRequisition(ctx, database, req.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign cancel, got %v", err)
	}
	got, _ := GetRequisition(ctx, database, req.ID)
	if got.Status != model.StatusPending {
		t.Errorf("expected status unchanged, got %q", got.Status)
	}

	cancelled, err := CancelRequisition(ctx, database, req.ID, requester.ID)
	if err != nil {
		t.Fatalf("CancelRequisition: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("expected status cancelled, got %q", cancelled.Status)
	}

	// Cancelled is terminal, even for the owner.
	if _, err := CancelRequisition(ctx, database, req.ID, requester.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for repeat cancel, got %v", err)
	}
}

func TestTerminalStatusesRefuseAllTransitions(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedUser(t, database, "admin", model.RoleAdmin)
	requester := seedUser(t, database, "bojan", model.RoleFaculty)
	item := seedItem(t, database, "Beaker", 100)

	newRequisition := func() *model.Requisition {
		req, err := CreateRequisition(ctx, database, requester.ID, []LineInput{
			{ItemID: item.ID, Quantity: 1, Purpose: "lab"},
		})
		if err != nil {
			t.Fatalf("CreateRequisition: %v", err)
		}
		return req
	}

	rejected := newRequisition()
	RejectRequisition(ctx, database, rejected.ID, admin.ID, "no")

	cancelled := newRequisition()
	CancelRequisition(ctx, database, cancelled.ID, requester.ID)

	fulfilled := newRequisition()
	ApproveRequisition(ctx, database, fulfilled.ID, admin.ID)
	FulfillRequisition(ctx, database, fulfilled.ID, admin.ID)

	for _, req := range []*model.Requisition{rejected, cancelled, fulfilled} {
		var transition *InvalidTransitionError
		if _, err := ApproveRequisition(ctx, database, req.ID, admin.ID); !errors.As(err, &transition) {
			t.Errorf("requisition %d: expected InvalidTransitionError on approve, got %v", req.ID, err)
		}
		if _, err := RejectRequisition(ctx, database, req.ID, admin.ID, "again"); !errors.As(err, &transition) {
			t.Errorf("requisition %d: expected InvalidTransitionError on reject, got %v", req.ID, err)
		}
		if _, err := CancelRequisition(ctx, database, req.ID, requester.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("requisition %d: expected ErrNotFound on cancel, got %v", req.ID, err)
		}
	}

	// Fulfill is only legal from approved; rejected and cancelled refuse it.
	for _, req := range []*model.Requisition{rejected, cancelled} {
		var transition *InvalidTransitionError
		if _, err := FulfillRequisition(ctx, database, req.ID, admin.ID); !errors.As(err, &transition) {
			t.Errorf("requisition %d: expected InvalidTransitionError on fulfill, got %v", req.ID, err)
		}
	}
}
