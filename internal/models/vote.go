// internal/models/vote.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vote is a single user's rating of a product on the safety and taste axes.
// Exactly one row exists per (product, user); revisions mutate in place and
// preserve CreatedAt.
type Vote struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID    string    `json:"product_id" gorm:"size:255;not null;uniqueIndex:idx_product_user_vote"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_product_user_vote"`
	Safety       float64   `json:"safety" gorm:"not null"`
	Taste        float64   `json:"taste" gorm:"not null"`
	Price        *int      `json:"price,omitempty"`
	IsRegistered bool      `json:"is_registered" gorm:"default:false"`
	VotedAt      time.Time `json:"voted_at" gorm:"not null"`

	// Relationships
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
