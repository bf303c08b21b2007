package model

import "time"

// Item represents an inventory item tracked by on-hand quantity.
type Item struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	Location      string     `json:"location,omitempty"`
	Source        string     `json:"source,omitempty"`
	Quantity      int        `json:"quantity"`
	MinStockLevel int        `json:"min_stock_level"`
	ImageMime     string     `json:"image_mime,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`

	// Computed on read, never persisted.
	LowStock bool `json:"low_stock"`
}

// ComputeLowStock sets the low-stock flag from the current quantity.
// An item is low on stock when quantity has fallen to or below the
// configured minimum level.
func (i *Item) ComputeLowStock() {
	i.LowStock = i.Quantity <= i.MinStockLevel
}
