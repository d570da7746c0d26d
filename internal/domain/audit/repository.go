package audit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) (uuid.UUID, error)
	List(ctx context.Context, params ListParams) ([]*Entry, int64, error)
}
