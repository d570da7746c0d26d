package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeLicenseExpire = "license:expire:check"
	TypeExpiryNotify  = "license:expiry:notify"
)

type ExpireLicensePayload struct{}

type ExpiryNotifyPayload struct{}

func NewLicenseExpireTask(opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(ExpireLicensePayload{})
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(1 * time.Hour)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeLicenseExpire, payloadBytes, allOpts...), nil
}

func NewExpiryNotifyTask(opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(ExpiryNotifyPayload{})
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(24 * time.Hour)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeExpiryNotify, payloadBytes, allOpts...), nil
}

func ptr[T any](v T) *T {
	return &v
}
