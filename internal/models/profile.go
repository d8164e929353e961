// internal/models/profile.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile is the gamification ledger for a registered user. Created
// lazily on the user's first vote; never created for guests.
type UserProfile struct {
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Points          int        `json:"points" gorm:"default:0"`
	Badges          StringList `json:"badges" gorm:"type:jsonb"`
	TotalVotes      int        `json:"total_votes" gorm:"default:0"`
	NewProductVotes int        `json:"new_product_votes" gorm:"default:0"`
	StoresTagged    StringList `json:"stores_tagged" gorm:"type:jsonb"`
	GpsVotes        int        `json:"gps_votes" gorm:"default:0"`
	CurrentStreak   int        `json:"current_streak" gorm:"default:0"`
	LongestStreak   int        `json:"longest_streak" gorm:"default:0"`
	LastVoteDate    *time.Time `json:"last_vote_date"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// ProfileDelta describes what a single vote earned. Returned by the
// gamification ledger so callers can surface it to the voter.
type ProfileDelta struct {
	PointsAwarded int      `json:"points_awarded"`
	NewBadges     []string `json:"new_badges,omitempty"`
	CurrentStreak int      `json:"current_streak"`
	LongestStreak int      `json:"longest_streak"`
}
