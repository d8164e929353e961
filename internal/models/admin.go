// internal/models/admin.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminRole marks a user as an admin. The presence of a row in roles_admin
// is the sole authorization signal; no further fields are consulted.
type AdminRole struct {
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time  `json:"created_at"`
	GrantedBy *uuid.UUID `json:"granted_by,omitempty" gorm:"type:uuid"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (AdminRole) TableName() string {
	return "roles_admin"
}

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   string     `json:"resource_id" gorm:"size:255;index"`
	OldValues    JSONB      `json:"old_values" gorm:"type:jsonb"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// AdminNotification records events that need moderator attention. Permission
// denials are funneled here so every call site gets the same treatment.
type AdminNotification struct {
	BaseModel
	Type                string     `json:"type" gorm:"type:varchar(50);not null;index"`
	Title               string     `json:"title" gorm:"size:255;not null"`
	Message             string     `json:"message" gorm:"type:text;not null"`
	Priority            string     `json:"priority" gorm:"type:varchar(20);default:'medium'"`
	IsRead              bool       `json:"is_read" gorm:"default:false;index"`
	RelatedResourceType string     `json:"related_resource_type" gorm:"size:50"`
	RelatedResourceID   string     `json:"related_resource_id" gorm:"size:255"`
	ReadAt              *time.Time `json:"read_at"`
}
