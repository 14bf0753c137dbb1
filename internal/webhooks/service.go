package webhooks

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
	"github.com/gasflowhq/gasflow-backend/pkg/redis"

	"github.com/gasflowhq/gasflow-backend/internal/payments"
)

const (
	idempotencyScope = "intasend-webhook"

	// Redelivery storms from the processor settle within minutes, but keep
	// the guard long enough to ride out a retry backlog.
	idempotencyTTL = 24 * time.Hour
)

// IntaSendPayload is the webhook body the processor posts on every invoice
// state change.
type IntaSendPayload struct {
	InvoiceID string      `json:"invoice_id"`
	State     string      `json:"state"`
	Value     json.Number `json:"value"`
	Currency  string      `json:"currency"`
	APIRef    string      `json:"api_ref"`
	Account   string      `json:"account"`
	Challenge string      `json:"challenge"`
}

// Service validates and dedupes processor webhooks before handing them to the
// payment intake.
type Service interface {
	HandleIntaSend(ctx context.Context, payload IntaSendPayload) error
}

type paymentIntake interface {
	CompleteFromWebhook(ctx context.Context, input payments.WebhookInput) error
}

type service struct {
	intake    paymentIntake
	store     redis.IdempotencyStore
	challenge string
	logg      *logger.Logger
}

// NewService wires the webhook intake. The expected challenge comes from the
// processor dashboard configuration.
func NewService(intake paymentIntake, store redis.IdempotencyStore, challenge string, logg *logger.Logger) (Service, error) {
	if intake == nil {
		return nil, fmt.Errorf("payment intake required")
	}
	if store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if challenge == "" {
		return nil, fmt.Errorf("webhook challenge required")
	}
	return &service{
		intake:    intake,
		store:     store,
		challenge: challenge,
		logg:      logg,
	}, nil
}

func (s *service) HandleIntaSend(ctx context.Context, payload IntaSendPayload) error {
	if subtle.ConstantTimeCompare([]byte(payload.Challenge), []byte(s.challenge)) != 1 {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook challenge mismatch")
	}
	if payload.InvoiceID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice_id is required")
	}
	if payload.State == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "state is required")
	}

	// The key includes the state so a later COMPLETE still processes after an
	// earlier PENDING notification for the same invoice.
	key := s.store.IdempotencyKey(idempotencyScope, payload.InvoiceID+":"+payload.State)
	fresh, err := s.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), idempotencyTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserving webhook idempotency key")
	}
	if !fresh {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"invoice_id": payload.InvoiceID,
				"state":      payload.State,
			})
			s.logg.Info(logCtx, "webhook already processed, skipping")
		}
		return nil
	}

	err = s.intake.CompleteFromWebhook(ctx, payments.WebhookInput{
		InvoiceID: payload.InvoiceID,
		State:     payload.State,
		Amount:    payload.Value.String(),
		Currency:  payload.Currency,
		APIRef:    payload.APIRef,
	})
	if err != nil {
		// Release the key so the processor's retry gets another attempt.
		if delErr := s.store.Del(ctx, key); delErr != nil && s.logg != nil {
			s.logg.Error(ctx, "releasing webhook idempotency key", delErr)
		}
		return err
	}
	return nil
}
