// internal/models/product.go
package models

import (
	"time"
)

// Product is keyed by the normalized form of its display name. Two display
// names that normalize to the same id are treated as the same product.
type Product struct {
	ID        string    `json:"id" gorm:"primaryKey;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name         string     `json:"name" gorm:"size:255;not null"`
	ImageURL     string     `json:"image_url" gorm:"type:text"`
	BackImageURL string     `json:"back_image_url,omitempty" gorm:"type:text"`
	Ingredients  StringList `json:"ingredients,omitempty" gorm:"type:jsonb"`

	// Running aggregates. AvgSafety/AvgTaste are the arithmetic mean over
	// exactly VoteCount votes; zero while VoteCount == 0. AvgPrice averages
	// only the PriceVoteCount votes that carried a price.
	AvgSafety           float64 `json:"avg_safety" gorm:"default:0"`
	AvgTaste            float64 `json:"avg_taste" gorm:"default:0"`
	AvgPrice            float64 `json:"avg_price,omitempty" gorm:"default:0"`
	VoteCount           int64   `json:"vote_count" gorm:"default:0"`
	RegisteredVoteCount int64   `json:"registered_vote_count" gorm:"default:0"`
	PriceVoteCount      int64   `json:"price_vote_count" gorm:"default:0"`

	// Relationships
	Stores []StoreEntry `json:"stores,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Votes  []Vote       `json:"votes,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// StoreEntry is a crowdsourced sighting of a product at a store. Entries are
// keyed by (product, lowercased store name); re-reporting the same store
// updates the row in place.
type StoreEntry struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID  string    `json:"product_id" gorm:"size:255;not null;uniqueIndex:idx_product_store"`
	StoreKey   string    `json:"-" gorm:"size:255;not null;uniqueIndex:idx_product_store"`
	Name       string    `json:"name" gorm:"size:255;not null"`
	Lat        *float64  `json:"lat,omitempty"`
	Lng        *float64  `json:"lng,omitempty"`
	Price      *int      `json:"price,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at" gorm:"not null"`
}

func (StoreEntry) TableName() string {
	return "store_entries"
}
