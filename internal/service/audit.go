package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/atalarczyk/PPLAN/internal/entity"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/google/uuid"
)

// auditPayload converts any entity into a JSONB document, dropping
// fields that fail to marshal rather than failing the write.
func auditPayload(v interface{}) entity.JSONB {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var payload entity.JSONB
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

// recordAudit appends one audit row. Audit failures are swallowed: the
// business write already happened and must not be rolled back over
// bookkeeping.
func recordAudit(ctx context.Context, repo *repository.AuditEventRepository, actorID, businessUnitID, entityName, entityID, action string, before, after interface{}) {
	if repo == nil {
		return
	}
	_ = repo.Create(ctx, &entity.AuditEvent{
		ID:             uuid.New().String(),
		ActorUserID:    actorID,
		BusinessUnitID: businessUnitID,
		EntityName:     entityName,
		EntityID:       entityID,
		ActionType:     action,
		BeforePayload:  auditPayload(before),
		AfterPayload:   auditPayload(after),
		CreatedAt:      time.Now().UTC(),
	})
}
