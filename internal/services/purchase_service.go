// Package services – PurchaseService
//
// This file implements the purchase workflow state machine:
//
//	NEW -> IN_PROGRESS -> BOUGHT
//	NEW | IN_PROGRESS -> CANCELED
//
// Every transition runs as one unit of work: the purchase row is read under
// an exclusive lock, the move is validated, the new state and its audit event
// are written and, when the state changed, a notification is enqueued in the
// same transaction. Repeating a transition that already happened is a no-op
// (Changed=false) rather than an error, so duplicated button presses and
// retried requests are safe.
//
// Same-purchase transitions are serialized twice: by an in-process keyed
// mutex taken before the transaction starts, and by the row lock inside it
// (SELECT ... FOR UPDATE on PostgreSQL). Different purchases proceed in
// parallel.
//
// Observability: all public methods are OpenTelemetry-instrumented and
// transitions are counted in purchase_transitions_total.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/domain"
	"github.com/tbourn/go-purchase-backend/internal/repo"
)

// Operation names used for spans and metrics.
const (
	OpTake       = "Take"
	OpMarkBought = "MarkBought"
	OpCancel     = "Cancel"
)

// TransitionResult reports the state after a transition and whether this
// call changed it.
type TransitionResult struct {
	PurchaseID int64         `json:"purchase_id"`
	Status     domain.Status `json:"status"`
	Changed    bool          `json:"changed"`
}

// CreatePurchaseInput carries the data collected by the intake flow.
type CreatePurchaseInput struct {
	RequesterID int64
	Description string
	Priority    domain.Priority
	PhotoRef    *string
}

// PurchaseService owns purchase creation and every status change.
type PurchaseService struct {
	DB *gorm.DB

	// Outbox, when set, receives one notification per state change.
	Outbox *OutboxService

	// Optional guards
	MaxDescriptionRunes int
	MaxCommentRunes     int

	// Now is the clock; defaults to time.Now in UTC.
	Now func() time.Time

	locks keyedMutex
}

// NewPurchaseService constructs a PurchaseService with default limits.
func NewPurchaseService(db *gorm.DB, outbox *OutboxService) *PurchaseService {
	return &PurchaseService{
		DB:                  db,
		Outbox:              outbox,
		MaxDescriptionRunes: 2000,
		MaxCommentRunes:     2000,
	}
}

func (s *PurchaseService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Take moves a NEW purchase to IN_PROGRESS on behalf of actorID.
//
//   - IN_PROGRESS already: Changed=false, taken_by is left untouched.
//   - BOUGHT or CANCELED: ErrInvalidTransition.
//   - NEW but already claimed by someone: ErrConflict.
func (s *PurchaseService) Take(ctx context.Context, purchaseID, actorID int64) (TransitionResult, error) {
	return s.transition(ctx, OpTake, purchaseID, actorID, applyTake)
}

// MarkBought moves an IN_PROGRESS purchase to BOUGHT and archives it.
// BOUGHT already yields Changed=false; any other state is ErrInvalidTransition.
func (s *PurchaseService) MarkBought(ctx context.Context, purchaseID, actorID int64) (TransitionResult, error) {
	return s.transition(ctx, OpMarkBought, purchaseID, actorID, applyMarkBought)
}

// Cancel archives a NEW or IN_PROGRESS purchase as CANCELED.
// CANCELED already yields Changed=false; BOUGHT is ErrConflict.
func (s *PurchaseService) Cancel(ctx context.Context, purchaseID, actorID int64) (TransitionResult, error) {
	return s.transition(ctx, OpCancel, purchaseID, actorID, applyCancel)
}

// applyFunc validates a move from p's current status and mutates p when the
// move changes state. It must not touch p when returning an error.
type applyFunc func(p *domain.Purchase, actorID int64, now time.Time) (changed bool, ev domain.EventType, err error)

func applyTake(p *domain.Purchase, actorID int64, now time.Time) (bool, domain.EventType, error) {
	switch p.Status {
	case domain.StatusInProgress:
		return false, "", nil
	case domain.StatusNew:
		if p.TakenBy != nil {
			return false, "", fmt.Errorf("%w: purchase %d already taken by %d", ErrConflict, p.ID, *p.TakenBy)
		}
		p.Status = domain.StatusInProgress
		p.TakenBy = &actorID
		p.TakenAt = &now
		return true, domain.EventTaken, nil
	default:
		return false, "", invalidTransition(p, OpTake)
	}
}

func applyMarkBought(p *domain.Purchase, actorID int64, now time.Time) (bool, domain.EventType, error) {
	switch p.Status {
	case domain.StatusBought:
		return false, "", nil
	case domain.StatusInProgress:
		p.Status = domain.StatusBought
		p.BoughtBy = &actorID
		p.BoughtAt = &now
		p.ArchivedBy = &actorID
		p.ArchivedAt = &now
		return true, domain.EventBought, nil
	default:
		return false, "", invalidTransition(p, OpMarkBought)
	}
}

func applyCancel(p *domain.Purchase, actorID int64, now time.Time) (bool, domain.EventType, error) {
	switch p.Status {
	case domain.StatusCanceled:
		return false, "", nil
	case domain.StatusBought:
		return false, "", fmt.Errorf("%w: purchase %d is already bought", ErrConflict, p.ID)
	case domain.StatusNew, domain.StatusInProgress:
		p.Status = domain.StatusCanceled
		p.ArchivedBy = &actorID
		p.ArchivedAt = &now
		return true, domain.EventCanceled, nil
	default:
		return false, "", invalidTransition(p, OpCancel)
	}
}

func invalidTransition(p *domain.Purchase, op string) error {
	return fmt.Errorf("%w: cannot %s purchase %d in status %s", ErrInvalidTransition, strings.ToLower(op), p.ID, p.Status)
}

// transition runs apply inside a locked unit of work. The keyed mutex is
// taken before the transaction so a waiting caller never holds a connection.
func (s *PurchaseService) transition(ctx context.Context, op string, purchaseID, actorID int64, apply applyFunc) (res TransitionResult, err error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, op,
		trace.WithAttributes(
			attribute.Int64("purchase.id", purchaseID),
			attribute.Int64("actor.id", actorID),
		),
	)
	defer span.End()
	defer func() {
		observeTransition(op, res.Changed, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetAttributes(attribute.Bool("transition.changed", res.Changed), attribute.String("purchase.status", string(res.Status)))
	}()

	unlock := s.locks.Lock(purchaseID)
	defer unlock()

	enqueued := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetPurchaseForUpdate(ctx, tx, purchaseID)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %d", ErrPurchaseNotFound, purchaseID)
			}
			return err
		}

		from := p.Status
		now := s.now()
		changed, evType, err := apply(p, actorID, now)
		res = TransitionResult{PurchaseID: p.ID, Status: p.Status}
		if err != nil || !changed {
			return err
		}
		res.Changed = true

		p.UpdatedAt = now
		if err := repo.SavePurchaseState(ctx, tx, p); err != nil {
			return err
		}

		payload, err := json.Marshal(domain.TransitionPayload{From: from, To: p.Status})
		if err != nil {
			return err
		}
		body := string(payload)
		actor := actorID
		if err := repo.CreateEvent(ctx, tx, &domain.PurchaseEvent{
			PurchaseID: p.ID,
			ActorID:    &actor,
			Type:       evType,
			Payload:    &body,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		if s.Outbox != nil {
			if _, err := s.Outbox.enqueueTx(ctx, tx, p.ID, now); err != nil {
				return err
			}
			enqueued = true
		}
		return nil
	})
	if err != nil {
		res.Changed = false
		return res, err
	}
	if enqueued {
		s.Outbox.kick()
	}
	return res, nil
}

// Create validates intake data, stores a NEW purchase and announces it.
func (s *PurchaseService) Create(ctx context.Context, in CreatePurchaseInput) (*domain.Purchase, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.Int64("requester.id", in.RequesterID)),
	)
	defer span.End()

	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, ErrEmptyDescription
	}
	if s.MaxDescriptionRunes > 0 && utf8.RuneCountInString(desc) > s.MaxDescriptionRunes {
		return nil, ErrDescriptionTooLong
	}
	prio := domain.Priority(strings.ToLower(strings.TrimSpace(string(in.Priority))))
	if prio == "" {
		prio = domain.PriorityNormal
	}
	if !prio.Valid() {
		return nil, ErrInvalidPriority
	}
	var photo *string
	if in.PhotoRef != nil {
		if ref := strings.TrimSpace(*in.PhotoRef); ref != "" {
			photo = &ref
		}
	}

	now := s.now()
	p := &domain.Purchase{
		RequesterID: in.RequesterID,
		Description: desc,
		PhotoRef:    photo,
		Priority:    prio,
		Status:      domain.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreatePurchase(ctx, tx, p); err != nil {
			return err
		}
		if s.Outbox != nil {
			_, err := s.Outbox.enqueueTx(ctx, tx, p.ID, now)
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if s.Outbox != nil {
		s.Outbox.kick()
	}
	span.SetAttributes(attribute.Int64("purchase.id", p.ID))
	return p, nil
}

// Comment appends a free-text comment to the audit trail. It never changes
// status and never notifies.
func (s *PurchaseService) Comment(ctx context.Context, purchaseID, actorID int64, text string) (*domain.PurchaseEvent, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "Comment",
		trace.WithAttributes(
			attribute.Int64("purchase.id", purchaseID),
			attribute.Int64("actor.id", actorID),
		),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if s.MaxCommentRunes > 0 && utf8.RuneCountInString(text) > s.MaxCommentRunes {
		return nil, ErrCommentTooLong
	}
	if _, err := s.Get(ctx, purchaseID); err != nil {
		return nil, err
	}

	actor := actorID
	ev := &domain.PurchaseEvent{
		PurchaseID: purchaseID,
		ActorID:    &actor,
		Type:       domain.EventComment,
		Text:       &text,
		CreatedAt:  s.now(),
	}
	if err := repo.CreateEvent(ctx, s.DB, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Get returns a purchase by id.
func (s *PurchaseService) Get(ctx context.Context, purchaseID int64) (*domain.Purchase, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("purchase.id", purchaseID)),
	)
	defer span.End()

	p, err := repo.GetPurchase(ctx, s.DB, purchaseID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrPurchaseNotFound, purchaseID)
		}
		return nil, err
	}
	return p, nil
}

// ListPage returns a page of purchases, optionally filtered by status.
// It applies defaults for invalid page/pageSize and returns total count.
func (s *PurchaseService) ListPage(ctx context.Context, status string, page, pageSize int) ([]domain.Purchase, int64, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("purchase.status", status),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && !domain.Status(status).Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountPurchases(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Purchase{}, 0, nil
	}
	items, err := repo.ListPurchasesPage(ctx, s.DB, status, offset, pageSize)
	return items, total, err
}

// Events returns the audit trail of a purchase, oldest first.
func (s *PurchaseService) Events(ctx context.Context, purchaseID int64) ([]domain.PurchaseEvent, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "Events",
		trace.WithAttributes(attribute.Int64("purchase.id", purchaseID)),
	)
	defer span.End()

	if _, err := s.Get(ctx, purchaseID); err != nil {
		return nil, err
	}
	return repo.ListEvents(ctx, s.DB, purchaseID)
}

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
