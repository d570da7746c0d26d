package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/audit"
)

type ListAuditRequest struct {
	EntityType *string       `form:"entity_type"`
	EntityID   *uuid.UUID    `form:"entity_id"`
	Action     *audit.Action `form:"action"`
	Limit      int           `form:"limit,default=50" binding:"omitempty,gte=0"`
	Offset     int           `form:"offset,default=0" binding:"omitempty,gte=0"`
}

type AuditEntryResponse struct {
	ID         uuid.UUID       `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Action     audit.Action    `json:"action"`
	Actor      string          `json:"actor"`
	Reason     *string         `json:"reason,omitempty"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func NewAuditEntryResponse(e *audit.Entry) *AuditEntryResponse {
	resp := &AuditEntryResponse{
		ID:         e.ID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Actor:      e.Actor,
		Before:     e.Before,
		After:      e.After,
		CreatedAt:  e.CreatedAt,
	}
	if e.Reason.Valid {
		resp.Reason = &e.Reason.String
	}
	return resp
}

type PaginatedAuditResponse struct {
	Entries    []*AuditEntryResponse `json:"entries"`
	TotalCount int64                 `json:"totalCount"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}
