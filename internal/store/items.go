package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zanvidmar/zahtevek/internal/model"
)

// CreateItem creates a new inventory item.
func CreateItem(ctx context.Context, db *sql.DB, name, category, location, source string, quantity, minStockLevel int) (*model.Item, error) {
	if quantity < 0 {
		return nil, ValidationErrors{"quantity must not be negative"}
	}
	if minStockLevel < 0 {
		return nil, ValidationErrors{"min stock level must not be negative"}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, category, location, source, quantity, min_stock_level)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, category, location, source, quantity, minStockLevel,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, including soft-deleted ones (for history).
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item := &model.Item{}
	var location, source, imageMime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, category, location, source, quantity, min_stock_level,
		        image_mime, created_at, updated_at, deleted_at
		 FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Name, &item.Category, &location, &source,
		&item.Quantity, &item.MinStockLevel, &imageMime,
		&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item.Location = location.String
	item.Source = source.String
	item.ImageMime = imageMime.String
	item.ComputeLowStock()
	return item, nil
}

// ListItems returns all non-deleted items, optionally filtered by category
// or restricted to items at or below their minimum stock level.
func ListItems(ctx context.Context, db *sql.DB, category string, lowStockOnly bool) ([]model.Item, error) {
	query := `SELECT id, name, category, location, source, quantity, min_stock_level,
	                 image_mime, created_at, updated_at, deleted_at
	          FROM items WHERE deleted_at IS NULL`
	var args []any

	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if lowStockOnly {
		query += ` AND quantity <= min_stock_level`
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		var location, source, imageMime sql.NullString
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &location, &source,
			&item.Quantity, &item.MinStockLevel, &imageMime,
			&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.Location = location.String
		item.Source = source.String
		item.ImageMime = imageMime.String
		item.ComputeLowStock()
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItem updates an item's identity metadata and minimum stock level.
// Quantity is deliberately not updatable here; it changes only through
// AdjustQuantity and requisition fulfillment.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, name, category, location, source string, minStockLevel int) error {
	if minStockLevel < 0 {
		return ValidationErrors{"min stock level must not be negative"}
	}

	result, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, category = ?, location = ?, source = ?,
		        min_stock_level = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		name, category, location, source, minStockLevel, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem soft-deletes an item. Historical requisition lines keep their
// name snapshot, so deleted items stay displayable.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckAvailability reports whether quantity units of the item are on hand.
// Returns ErrNotFound for unknown or deleted items and InsufficientStockError
// when the request exceeds the current quantity. This is a point-in-time
// check: it holds no reservation, and fulfillment re-checks atomically.
func CheckAvailability(ctx context.Context, db *sql.DB, itemID int64, quantity int) error {
	item, err := GetItem(ctx, db, itemID)
	if err != nil {
		return err
	}
	if item == nil || item.DeletedAt != nil {
		return ErrNotFound
	}
	if quantity > item.Quantity {
		return &InsufficientStockError{ItemName: item.Name, Available: item.Quantity, Requested: quantity}
	}
	return nil
}

// AdjustQuantity atomically applies quantity += delta (negative for
// consumption, positive for receipt). The caller passes the item name and
// category it believes it is adjusting; a mismatch fails with ConflictError
// to defend against stale client state. A delta that would drive the
// quantity negative fails with InvalidQuantityError.
func AdjustQuantity(ctx context.Context, db *sql.DB, id int64, delta int, expectedName, expectedCategory string) (*model.Item, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var name, category string
	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT name, category, quantity FROM items WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&name, &category, &current)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading item for adjustment: %w", err)
	}

	if name != expectedName {
		return nil, &ConflictError{Field: "name", Expected: expectedName, Actual: name}
	}
	if category != expectedCategory {
		return nil, &ConflictError{Field: "category", Expected: expectedCategory, Actual: category}
	}

	// Guarded update so a concurrent writer cannot push the quantity negative
	// between the read above and this write.
	result, err := tx.ExecContext(ctx,
		`UPDATE items SET quantity = quantity + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND quantity + ? >= 0`,
		delta, id, delta,
	)
	if err != nil {
		return nil, fmt.Errorf("adjusting quantity: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, &InvalidQuantityError{Current: current, Delta: delta}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing adjustment: %w", err)
	}

	return GetItem(ctx, db, id)
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}
