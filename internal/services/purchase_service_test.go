package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/go-purchase-backend/internal/domain"
)

func TestTake_NewSucceedsOnceThenNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedPurchase(t, f.db, domain.StatusNew)

	res, err := f.svc.Take(ctx, p.ID, 7)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if !res.Changed || res.Status != domain.StatusInProgress || res.PurchaseID != p.ID {
		t.Fatalf("unexpected first result: %+v", res)
	}

	again, err := f.svc.Take(ctx, p.ID, 8)
	if err != nil {
		t.Fatalf("second Take: %v", err)
	}
	if again.Changed || again.Status != domain.StatusInProgress {
		t.Fatalf("second Take should be a no-op, got %+v", again)
	}

	got := reload(t, f.db, p.ID)
	if got.TakenBy == nil || *got.TakenBy != 7 || got.TakenAt == nil || !got.TakenAt.Equal(f.clock.Now()) {
		t.Fatalf("taken_by/taken_at wrong: %+v", got)
	}
	if n := countEvents(t, f.db, p.ID, domain.EventTaken); n != 1 {
		t.Fatalf("expected exactly one taken event, got %d", n)
	}
	if n := countOutbox(t, f.db); n != 1 {
		t.Fatalf("expected one outbox entry, got %d", n)
	}
	if k := f.kicker.n.Load(); k != 1 {
		t.Fatalf("expected one kick, got %d", k)
	}
}

func TestTake_TerminalStatesAreInvalid(t *testing.T) {
	f := newFixture(t)
	for _, st := range []domain.Status{domain.StatusBought, domain.StatusCanceled} {
		p := seedPurchase(t, f.db, st)
		res, err := f.svc.Take(context.Background(), p.ID, 9)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("Take from %s: expected ErrInvalidTransition, got %v", st, err)
		}
		if res.Changed || res.Status != st {
			t.Fatalf("Take from %s: unexpected result %+v", st, res)
		}
		if n := countEvents(t, f.db, p.ID, domain.EventTaken); n != 0 {
			t.Fatalf("no event expected, got %d", n)
		}
	}
	if n := countOutbox(t, f.db); n != 0 {
		t.Fatalf("failed transitions must not enqueue, got %d entries", n)
	}
}

func TestTake_NewAlreadyClaimedIsConflict(t *testing.T) {
	f := newFixture(t)
	p := seedPurchase(t, f.db, domain.StatusNew)
	if err := f.db.Model(p).Update("taken_by", 3).Error; err != nil {
		t.Fatalf("seed taken_by: %v", err)
	}
	if _, err := f.svc.Take(context.Background(), p.ID, 4); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTransitions_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for name, op := range map[string]func(context.Context, int64, int64) (TransitionResult, error){
		"take":   f.svc.Take,
		"bought": f.svc.MarkBought,
		"cancel": f.svc.Cancel,
	} {
		if _, err := op(ctx, 404, 1); !errors.Is(err, ErrPurchaseNotFound) {
			t.Fatalf("%s: expected ErrPurchaseNotFound, got %v", name, err)
		}
	}
}

func TestCancel_BoughtIsConflictAndUnchanged(t *testing.T) {
	f := newFixture(t)
	p := seedPurchase(t, f.db, domain.StatusBought)
	before := reload(t, f.db, p.ID)

	res, err := f.svc.Cancel(context.Background(), p.ID, 5)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if res.Changed {
		t.Fatalf("conflict must not report a change")
	}
	after := reload(t, f.db, p.ID)
	if after.Status != domain.StatusBought || after.ArchivedBy != nil || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("purchase mutated by failed cancel: %+v", after)
	}
	if n := countEvents(t, f.db, p.ID, domain.EventCanceled); n != 0 {
		t.Fatalf("unexpected canceled event")
	}
}

func TestCancel_FromNewAndInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, st := range []domain.Status{domain.StatusNew, domain.StatusInProgress} {
		p := seedPurchase(t, f.db, st)
		res, err := f.svc.Cancel(ctx, p.ID, 11)
		if err != nil || !res.Changed || res.Status != domain.StatusCanceled {
			t.Fatalf("Cancel from %s = %+v, %v", st, res, err)
		}
		got := reload(t, f.db, p.ID)
		if got.ArchivedBy == nil || *got.ArchivedBy != 11 || got.ArchivedAt == nil {
			t.Fatalf("archived_* not set: %+v", got)
		}
		if st == domain.StatusInProgress && got.TakenBy == nil {
			t.Fatalf("taken_by must survive cancellation")
		}

		noop, err := f.svc.Cancel(ctx, p.ID, 12)
		if err != nil || noop.Changed {
			t.Fatalf("repeated Cancel = %+v, %v", noop, err)
		}
		if n := countEvents(t, f.db, p.ID, domain.EventCanceled); n != 1 {
			t.Fatalf("expected one canceled event, got %d", n)
		}
	}
}

func TestMarkBought_IdempotentWithSingleEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedPurchase(t, f.db, domain.StatusNew)
	if _, err := f.svc.Take(ctx, p.ID, 2); err != nil {
		t.Fatalf("Take: %v", err)
	}

	first, err := f.svc.MarkBought(ctx, p.ID, 2)
	if err != nil || !first.Changed || first.Status != domain.StatusBought {
		t.Fatalf("first MarkBought = %+v, %v", first, err)
	}
	for i := 0; i < 2; i++ {
		res, err := f.svc.MarkBought(ctx, p.ID, 3)
		if err != nil || res.Changed || res.Status != domain.StatusBought {
			t.Fatalf("repeat MarkBought #%d = %+v, %v", i+1, res, err)
		}
	}

	if n := countEvents(t, f.db, p.ID, domain.EventBought); n != 1 {
		t.Fatalf("expected exactly one bought event, got %d", n)
	}
	got := reload(t, f.db, p.ID)
	if got.BoughtBy == nil || *got.BoughtBy != 2 || got.ArchivedBy == nil || *got.ArchivedBy != 2 || got.BoughtAt == nil || got.ArchivedAt == nil {
		t.Fatalf("bought/archived fields wrong: %+v", got)
	}
	// take + bought
	if n := countOutbox(t, f.db); n != 2 {
		t.Fatalf("expected two outbox entries, got %d", n)
	}
}

func TestMarkBought_OnlyFromInProgress(t *testing.T) {
	f := newFixture(t)
	for _, st := range []domain.Status{domain.StatusNew, domain.StatusCanceled} {
		p := seedPurchase(t, f.db, st)
		if _, err := f.svc.MarkBought(context.Background(), p.ID, 1); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("MarkBought from %s: expected ErrInvalidTransition, got %v", st, err)
		}
	}
}

func TestTransition_EventPayloadRecordsFromTo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedPurchase(t, f.db, domain.StatusNew)
	if _, err := f.svc.Take(ctx, p.ID, 2); err != nil {
		t.Fatalf("Take: %v", err)
	}
	evs, err := f.svc.Events(ctx, p.ID)
	if err != nil || len(evs) != 1 {
		t.Fatalf("Events = %v, %v", evs, err)
	}
	ev := evs[0]
	if ev.ActorID == nil || *ev.ActorID != 2 || ev.Payload == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	var payload domain.TransitionPayload
	if err := json.Unmarshal([]byte(*ev.Payload), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.From != domain.StatusNew || payload.To != domain.StatusInProgress {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestTake_ConcurrentActorsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	p := seedPurchase(t, f.db, domain.StatusNew)

	const actors = 8
	results := make([]TransitionResult, actors)
	errs := make([]error, actors)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.svc.Take(context.Background(), p.ID, int64(1000+i))
		}(i)
	}
	close(start)
	wg.Wait()

	winner := int64(-1)
	for i := 0; i < actors; i++ {
		if errs[i] != nil {
			t.Fatalf("actor %d: %v", i, errs[i])
		}
		if results[i].Changed {
			if winner != -1 {
				t.Fatalf("more than one actor observed changed=true")
			}
			winner = int64(1000 + i)
		}
	}
	if winner == -1 {
		t.Fatalf("no actor observed changed=true")
	}
	got := reload(t, f.db, p.ID)
	if got.TakenBy == nil || *got.TakenBy != winner {
		t.Fatalf("taken_by = %v; want winner %d", got.TakenBy, winner)
	}
	if n := countEvents(t, f.db, p.ID, domain.EventTaken); n != 1 {
		t.Fatalf("expected one taken event, got %d", n)
	}
	if f.svc.locks.size() != 0 {
		t.Fatalf("keyed locks leaked")
	}
}

func TestTransitions_WithoutOutboxDoNotEnqueue(t *testing.T) {
	db := newTestDB(t)
	svc := NewPurchaseService(db, nil)
	p := seedPurchase(t, db, domain.StatusNew)
	if res, err := svc.Take(context.Background(), p.ID, 1); err != nil || !res.Changed {
		t.Fatalf("Take = %+v, %v", res, err)
	}
	if n := countOutbox(t, db); n != 0 {
		t.Fatalf("expected no outbox entries, got %d", n)
	}
}

func TestCreate_ValidatesAndEnqueues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		in   CreatePurchaseInput
		want error
	}{
		{CreatePurchaseInput{RequesterID: 1, Description: "   "}, ErrEmptyDescription},
		{CreatePurchaseInput{RequesterID: 1, Description: strings.Repeat("я", 2001)}, ErrDescriptionTooLong},
		{CreatePurchaseInput{RequesterID: 1, Description: "tea", Priority: "asap"}, ErrInvalidPriority},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("Create(%+v): expected %v, got %v", tc.in, tc.want, err)
		}
	}
	if n := countOutbox(t, f.db); n != 0 {
		t.Fatalf("rejected input must not enqueue")
	}

	blank := "  "
	p, err := f.svc.Create(ctx, CreatePurchaseInput{RequesterID: 5, Description: "  green tea  ", Priority: "URGENT", PhotoRef: &blank})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == 0 || p.Description != "green tea" || p.Priority != domain.PriorityUrgent || p.Status != domain.StatusNew || p.PhotoRef != nil {
		t.Fatalf("unexpected purchase: %+v", p)
	}
	if n := countOutbox(t, f.db); n != 1 {
		t.Fatalf("creation should enqueue one notification, got %d", n)
	}
	if f.kicker.n.Load() != 1 {
		t.Fatalf("creation should kick the worker")
	}

	ref := "photo-123"
	q, err := f.svc.Create(ctx, CreatePurchaseInput{RequesterID: 5, Description: "cups", PhotoRef: &ref})
	if err != nil || q.Priority != domain.PriorityNormal || q.PhotoRef == nil || *q.PhotoRef != ref {
		t.Fatalf("Create defaults = %+v, %v", q, err)
	}
}

func TestComment_AppendsWithoutNotify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedPurchase(t, f.db, domain.StatusNew)

	if _, err := f.svc.Comment(ctx, p.ID, 1, "  "); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("expected ErrEmptyComment, got %v", err)
	}
	if _, err := f.svc.Comment(ctx, p.ID, 1, strings.Repeat("x", 2001)); !errors.Is(err, ErrCommentTooLong) {
		t.Fatalf("expected ErrCommentTooLong, got %v", err)
	}
	if _, err := f.svc.Comment(ctx, 404, 1, "hi"); !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}

	ev, err := f.svc.Comment(ctx, p.ID, 1, " buy the blue ones ")
	if err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if ev.Type != domain.EventComment || ev.Text == nil || *ev.Text != "buy the blue ones" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if reload(t, f.db, p.ID).Status != domain.StatusNew {
		t.Fatalf("comment changed status")
	}
	if countOutbox(t, f.db) != 0 {
		t.Fatalf("comment must not notify")
	}
}

func TestListPage_AndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedPurchase(t, f.db, domain.StatusNew)
	seedPurchase(t, f.db, domain.StatusBought)
	last := seedPurchase(t, f.db, domain.StatusNew)

	items, total, err := f.svc.ListPage(ctx, "new", 0, 0)
	if err != nil || total != 2 || len(items) != 2 || items[0].ID != last.ID {
		t.Fatalf("ListPage(new) = %v, %d, %v", items, total, err)
	}
	items, total, err = f.svc.ListPage(ctx, "", 2, 2)
	if err != nil || total != 3 || len(items) != 1 {
		t.Fatalf("ListPage page 2 = %v, %d, %v", items, total, err)
	}
	empty, total, err := f.svc.ListPage(ctx, "CANCELED", 1, 10)
	if err != nil || total != 0 || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil page, got %v %d %v", empty, total, err)
	}
	if _, _, err := f.svc.ListPage(ctx, "DONE", 1, 10); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	if got, err := f.svc.Get(ctx, last.ID); err != nil || got.ID != last.ID {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := f.svc.Get(ctx, 404); !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}
	if _, err := f.svc.Events(ctx, 404); !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("Events: expected ErrPurchaseNotFound, got %v", err)
	}
}
