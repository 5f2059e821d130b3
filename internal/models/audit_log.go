package models

import "gorm.io/datatypes"

// Audit actor kinds. Machine callers such as the report pipeline are not users.
const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// AuditLog records privileged operations on money and catalog data.
type AuditLog struct {
	Base
	ActorID      string         `gorm:"type:varchar(64);not null;index" json:"actor_id"`
	ActorType    string         `gorm:"type:varchar(16);not null;default:user" json:"actor_type"`
	Action       string         `gorm:"not null;index" json:"action"`
	ResourceType string         `gorm:"not null" json:"resource_type"`
	ResourceID   string         `gorm:"index" json:"resource_id"`
	IPAddress    string         `json:"ip_address"`
	Changes      datatypes.JSON `json:"changes,omitempty"`
}
