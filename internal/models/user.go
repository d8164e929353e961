// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username     string     `json:"username" gorm:"uniqueIndex;size:50"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	UserType     UserType   `json:"user_type" gorm:"type:varchar(20);not null;default:'registered'"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	// Relationships
	Votes   []Vote       `json:"votes,omitempty" gorm:"foreignKey:UserID"`
	Profile *UserProfile `json:"profile,omitempty" gorm:"foreignKey:UserID"`
}

// IsGuest reports whether the user is an anonymous identity. Guest votes
// count toward product aggregates but never earn points or badges.
func (u *User) IsGuest() bool {
	return u.UserType == UserTypeGuest
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
