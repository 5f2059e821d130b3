package services

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fundledger/internal/logger"
	"fundledger/internal/models"
	"fundledger/internal/uuid"
)

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records who did what to which settlement, asset or report. Actor IDs
// that are not user UUIDs (the pipeline) are stored as system actors. Store
// failures are logged and dropped so the audited operation still succeeds.
func (s *auditService) Log(actorID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	log := logger.Named("audit")

	entry := &models.AuditLog{
		ActorID:      actorID,
		ActorType:    models.ActorTypeUser,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
	}
	if !uuid.IsValid(actorID) {
		entry.ActorType = models.ActorTypeSystem
	}

	if len(changes) > 0 {
		data, err := json.Marshal(changes)
		if err != nil {
			log.Warnw("audit changes not serializable", "error", err, "action", action)
			data = []byte("{}")
		}
		entry.Changes = datatypes.JSON(data)
	}

	if err := s.db.Create(entry).Error; err != nil {
		log.Errorw("audit entry dropped",
			"error", err,
			"actor_id", actorID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}
