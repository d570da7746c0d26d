package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/consumer"
)

type CreateConsumerRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Organization string `json:"organization"`
}

type UpdateConsumerRequest struct {
	Name         *string `json:"name"`
	Email        *string `json:"email" binding:"omitempty,email"`
	Organization *string `json:"organization"`
}

type ConsumerResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Organization *string   `json:"organization,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewConsumerResponse(c *consumer.Consumer) *ConsumerResponse {
	resp := &ConsumerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Organization.Valid {
		resp.Organization = &c.Organization.String
	}
	return resp
}
