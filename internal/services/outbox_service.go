// Package services – OutboxService
//
// This file implements the transactional notification outbox. Producers
// insert an entry in the same transaction as the fact it announces; the
// delivery worker later drains due entries and hands them to a Deliverer.
//
// A drain runs in three steps so that no database lock is held while talking
// to the external channel:
//
//  1. claim: in one short transaction, select due pending rows oldest first
//     (FOR UPDATE SKIP LOCKED on PostgreSQL), increment attempts and lease
//     them by pushing next_retry_at ClaimTTL into the future;
//  2. deliver: call the Deliverer for each claimed row, sequentially, each
//     under its own DeliveryTimeout. The row's lease is renewed right before
//     its delivery, fenced by the attempts count, so a slow batch cannot let
//     a later row's lease lapse to another worker;
//  3. finalize: mark the row sent, reschedule it with Backoff, or fail it.
//
// A process that dies between 1 and 3 leaves leased rows behind; they become
// due again once the lease expires. Delivery is therefore at-least-once.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/delivery"
	"github.com/tbourn/go-purchase-backend/internal/domain"
	"github.com/tbourn/go-purchase-backend/internal/repo"
)

// Deliverer renders and sends the notification for a purchase. It must reload
// current state itself; returned errors are classified by IsRetryable.
type Deliverer interface {
	Deliver(ctx context.Context, purchaseID int64) error
}

// Kicker wakes the delivery worker without blocking.
type Kicker interface {
	Kick()
}

// Outbox defaults.
const (
	DefaultMaxAttempts     = 10
	DefaultClaimTTL        = 2 * time.Minute
	DefaultDeliveryTimeout = 15 * time.Second
)

// DrainResult summarizes one DrainDue call.
type DrainResult struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
}

// OutboxService enqueues and drains notification entries.
type OutboxService struct {
	DB        *gorm.DB
	Deliverer Deliverer
	Kicker    Kicker

	MaxAttempts     int
	ClaimTTL        time.Duration
	DeliveryTimeout time.Duration

	// IsRetryable classifies delivery errors; defaults to delivery.IsRetryable.
	IsRetryable func(error) bool
	// Now is the clock; defaults to time.Now in UTC.
	Now func() time.Time
}

// NewOutboxService constructs an OutboxService with default retry policy.
func NewOutboxService(db *gorm.DB, d Deliverer) *OutboxService {
	return &OutboxService{
		DB:              db,
		Deliverer:       d,
		MaxAttempts:     DefaultMaxAttempts,
		ClaimTTL:        DefaultClaimTTL,
		DeliveryTimeout: DefaultDeliveryTimeout,
	}
}

// Backoff returns the delay before the next attempt after the given number
// of attempts: 1s, 3s, 10s, then 60s.
func Backoff(attempts int) time.Duration {
	switch {
	case attempts <= 1:
		return time.Second
	case attempts == 2:
		return 3 * time.Second
	case attempts == 3:
		return 10 * time.Second
	default:
		return time.Minute
	}
}

func (s *OutboxService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OutboxService) kick() {
	if s.Kicker != nil {
		s.Kicker.Kick()
	}
}

func (s *OutboxService) retryable(err error) bool {
	if s.IsRetryable != nil {
		return s.IsRetryable(err)
	}
	return delivery.IsRetryable(err)
}

// Enqueue records that a notification for purchaseID is owed and wakes the
// worker. Entries are never deduplicated.
func (s *OutboxService) Enqueue(ctx context.Context, purchaseID int64) (*domain.OutboxEntry, error) {
	tr := otel.Tracer("services/OutboxService")
	ctx, span := tr.Start(ctx, "Enqueue",
		trace.WithAttributes(attribute.Int64("purchase.id", purchaseID)),
	)
	defer span.End()

	e, err := s.enqueueTx(ctx, s.DB, purchaseID, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.kick()
	return e, nil
}

// enqueueTx inserts an entry through db, which may be a caller's
// transaction. It does not kick; callers kick after commit.
func (s *OutboxService) enqueueTx(ctx context.Context, db *gorm.DB, purchaseID int64, now time.Time) (*domain.OutboxEntry, error) {
	if purchaseID <= 0 {
		return nil, ErrInvalidPurchaseID
	}
	payload, err := json.Marshal(domain.NotifyPayload{PurchaseID: purchaseID})
	if err != nil {
		return nil, err
	}
	due := now
	e := &domain.OutboxEntry{
		Kind:        domain.KindPurchaseChatNotify,
		Payload:     string(payload),
		Status:      domain.OutboxPending,
		Attempts:    0,
		NextRetryAt: &due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateOutboxEntry(ctx, db, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DrainDue claims up to limit due entries and delivers them one by one.
// Per-entry delivery failures are recorded on the entry, not returned.
func (s *OutboxService) DrainDue(ctx context.Context, limit int) (DrainResult, error) {
	tr := otel.Tracer("services/OutboxService")
	ctx, span := tr.Start(ctx, "DrainDue",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	var res DrainResult
	if s.Deliverer == nil {
		return res, ErrNoDeliverer
	}
	if limit <= 0 {
		return res, nil
	}

	now := s.now()
	ttl := s.ClaimTTL
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}

	var claimed []domain.OutboxEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		claimed, err = repo.ClaimDueOutbox(ctx, tx, now, now.Add(ttl), limit)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("claim outbox: %w", err)
	}
	res.Claimed = len(claimed)
	span.SetAttributes(attribute.Int("outbox.claimed", res.Claimed))

	for i := range claimed {
		if ctx.Err() != nil {
			// Unprocessed rows keep their lease and are picked up after it expires.
			break
		}
		switch s.process(ctx, &claimed[i]) {
		case domain.OutboxSent:
			res.Sent++
		case domain.OutboxPending:
			res.Retried++
		case domain.OutboxFailed:
			res.Failed++
		}
	}
	return res, nil
}

// process delivers one claimed entry and writes its outcome. It returns the
// resulting status, or "" when the outcome could not be stored.
func (s *OutboxService) process(ctx context.Context, e *domain.OutboxEntry) domain.OutboxStatus {
	lg := log.With().Int64("outbox_id", e.ID).Int("attempts", e.Attempts).Logger()

	purchaseID, perr := parseEntry(e)
	if perr != nil {
		lg.Error().Err(perr).Str("kind", e.Kind).Msg("outbox entry rejected")
		return s.finalize(ctx, e, domain.OutboxFailed, perr.Error())
	}
	lg = lg.With().Int64("purchase_id", purchaseID).Logger()

	// Earlier rows in the batch may have used up the claim's lease.
	if err := s.renewLease(ctx, e); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			lg.Warn().Msg("outbox lease lost; entry left to its new owner")
		} else {
			lg.Error().Err(err).Msg("outbox lease renewal failed")
		}
		return ""
	}

	timeout := s.DeliveryTimeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	derr := s.Deliverer.Deliver(dctx, purchaseID)
	cancel()

	if derr == nil {
		lg.Debug().Msg("outbox entry sent")
		return s.finalize(ctx, e, domain.OutboxSent, "")
	}

	// Shutdown interrupts are not the channel's fault.
	retryable := s.retryable(derr) || (ctx.Err() != nil && errors.Is(derr, ctx.Err()))
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	status, level := domain.OutboxPending, zerolog.WarnLevel
	if !retryable || e.Attempts >= maxAttempts {
		status, level = domain.OutboxFailed, zerolog.ErrorLevel
	}
	lg.WithLevel(level).Err(derr).Bool("retryable", retryable).Str("outcome", string(status)).Msg("outbox delivery failed")
	return s.finalize(ctx, e, status, errorText(derr))
}

// renewLease pushes the entry's lease ClaimTTL past the current time.
func (s *OutboxService) renewLease(ctx context.Context, e *domain.OutboxEntry) error {
	ttl := s.ClaimTTL
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	now := s.now()
	return repo.RenewOutboxLease(ctx, s.DB, e.ID, e.Attempts, now.Add(ttl), now)
}

func (s *OutboxService) finalize(ctx context.Context, e *domain.OutboxEntry, status domain.OutboxStatus, lastErr string) domain.OutboxStatus {
	// The outcome must be recorded even if ctx was canceled meanwhile.
	wctx := context.WithoutCancel(ctx)
	now := s.now()

	var err error
	switch status {
	case domain.OutboxSent:
		err = repo.MarkOutboxSent(wctx, s.DB, e.ID, now)
	case domain.OutboxPending:
		err = repo.RescheduleOutbox(wctx, s.DB, e.ID, now.Add(Backoff(e.Attempts)), lastErr, now)
	default:
		err = repo.MarkOutboxFailed(wctx, s.DB, e.ID, lastErr, now)
	}
	if err != nil {
		log.Error().Err(err).Int64("outbox_id", e.ID).Str("outcome", string(status)).
			Msg("outbox finalize failed")
		return ""
	}
	return status
}

// parseEntry extracts the purchase id of a purchase_chat_notify entry.
func parseEntry(e *domain.OutboxEntry) (int64, error) {
	if strings.TrimSpace(e.Kind) != domain.KindPurchaseChatNotify {
		return 0, errors.New("unknown kind")
	}
	var p domain.NotifyPayload
	if err := json.Unmarshal([]byte(e.Payload), &p); err != nil || p.PurchaseID <= 0 {
		return 0, errors.New("bad purchase_id")
	}
	return p.PurchaseID, nil
}

// errorText renders err for storage, capped at MaxLastErrorLen runes.
func errorText(err error) string {
	msg := err.Error()
	if msg == "" {
		msg = fmt.Sprintf("%T", err)
	}
	if r := []rune(msg); len(r) > domain.MaxLastErrorLen {
		msg = string(r[:domain.MaxLastErrorLen])
	}
	return msg
}

// List returns a page of outbox entries for the audit trail.
func (s *OutboxService) List(ctx context.Context, status string, page, pageSize int) ([]domain.OutboxEntry, int64, error) {
	tr := otel.Tracer("services/OutboxService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("outbox.status", status),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && !domain.OutboxStatus(status).Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := repo.CountOutbox(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.OutboxEntry{}, 0, nil
	}
	items, err := repo.ListOutboxPage(ctx, s.DB, status, (page-1)*pageSize, pageSize)
	return items, total, err
}
