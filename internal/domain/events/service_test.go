package events_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"slot-swapper/internal/adapters/storage/memory"
	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/domain/swaps"
	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/ports/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Fixtures
// -------------------------

type published struct {
	UserID  string
	Type    notify.EventType
	Payload any
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) Publish(_ context.Context, userID string, t notify.EventType, payload any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{UserID: userID, Type: t, Payload: payload})
	return 1
}

func (p *recordingPublisher) types() []notify.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.EventType, 0, len(p.sent))
	for _, s := range p.sent {
		out = append(out, s.Type)
	}
	return out
}

type fixture struct {
	svc   *events.Service
	swaps swaps.Repository
	pub   *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := memory.NewStore()
	swapRepo := memory.NewSwapRepo(st)
	pub := &recordingPublisher{}
	svc := events.NewService(memory.NewEventRepo(st), events.Options{
		Tx:        st,
		Pending:   swapRepo,
		Publisher: pub,
	})
	return fixture{svc: svc, swaps: swapRepo, pub: pub}
}

var day = time.Date(2030, 5, 6, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func mustCreate(t *testing.T, svc *events.Service, owner, title string, start, end time.Time, status events.Status) events.Event {
	t.Helper()
	e, err := svc.Create(context.Background(), owner, events.CreateInput{
		Title: title, StartTime: start, EndTime: end, Status: status,
	})
	require.NoError(t, err)
	return e
}

// -------------------------
// Create / conflicts
// -------------------------

func TestCreate_ConflictDetection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	meeting := mustCreate(t, f.svc, "u1", "Meeting", at(10, 0), at(11, 0), "")
	assert.Equal(t, events.StatusBusy, meeting.Status)

	_, err := f.svc.Create(ctx, "u1", events.CreateInput{Title: "Overlap", StartTime: at(10, 30), EndTime: at(11, 30)})
	require.ErrorIs(t, err, apperr.ErrConflict)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Message, "Meeting")
	assert.Equal(t, []string{meeting.ID}, ae.Details)

	// back-to-back no se solapa
	mustCreate(t, f.svc, "u1", "Next", at(11, 0), at(12, 0), "")
	mustCreate(t, f.svc, "u1", "Before", at(9, 0), at(10, 0), "")

	// otro usuario no choca
	mustCreate(t, f.svc, "u2", "Meeting", at(10, 0), at(11, 0), "")
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   events.CreateInput
	}{
		{"short title", events.CreateInput{Title: "ab", StartTime: at(8, 0), EndTime: at(9, 0)}},
		{"blank title", events.CreateInput{Title: "   ", StartTime: at(8, 0), EndTime: at(9, 0)}},
		{"end before start", events.CreateInput{Title: "Meeting", StartTime: at(9, 0), EndTime: at(8, 0)}},
		{"empty interval", events.CreateInput{Title: "Meeting", StartTime: at(9, 0), EndTime: at(9, 0)}},
		{"swapped status", events.CreateInput{Title: "Meeting", StartTime: at(8, 0), EndTime: at(9, 0), Status: events.StatusSwapped}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, "u1", tc.in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, err := f.svc.Create(ctx, "", events.CreateInput{Title: "Meeting", StartTime: at(8, 0), EndTime: at(9, 0)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreate_PublishesToOwner(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f.svc, "u1", "Meeting", at(10, 0), at(11, 0), "")

	require.Len(t, f.pub.sent, 1)
	assert.Equal(t, "u1", f.pub.sent[0].UserID)
	assert.Equal(t, notify.EventCreated, f.pub.sent[0].Type)
}

func TestCreate_ConcurrentOverlappingOnlyOneWins(t *testing.T) {
	f := newFixture(t)

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), "u1", events.CreateInput{
				Title:     fmt.Sprintf("Slot %d", i),
				StartTime: at(10, i),
				EndTime:   at(11, i),
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, apperr.ErrConflict)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
}

// Property: después de cualquier secuencia de creates/updates, ningún par de
// eventos de un mismo dueño se solapa.
func TestNoOverlapProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	owners := []string{"u1", "u2", "u3"}

	var ids []string
	for i := 0; i < 300; i++ {
		owner := owners[rng.Intn(len(owners))]
		start := day.Add(time.Duration(rng.Intn(48*4)) * 15 * time.Minute)
		end := start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute)

		if len(ids) > 0 && rng.Intn(4) == 0 {
			id := ids[rng.Intn(len(ids))]
			e, err := f.svc.Find(ctx, id)
			require.NoError(t, err)
			_, err = f.svc.Update(ctx, id, e.OwnerUserID, events.Patch{StartTime: &start, EndTime: &end})
			if err != nil {
				require.ErrorIs(t, err, apperr.ErrConflict)
			}
			continue
		}

		e, err := f.svc.Create(ctx, owner, events.CreateInput{Title: fmt.Sprintf("ev-%03d", i), StartTime: start, EndTime: end})
		if err != nil {
			require.ErrorIs(t, err, apperr.ErrConflict)
			continue
		}
		ids = append(ids, e.ID)
	}

	for _, owner := range owners {
		items, err := f.svc.List(ctx, owner, events.ListFilter{})
		require.NoError(t, err)
		for i := range items {
			for j := i + 1; j < len(items); j++ {
				a, b := items[i], items[j]
				assert.False(t, a.Overlaps(b.StartTime, b.EndTime), "%s overlaps %s", a.Title, b.Title)
			}
		}
	}
}

// -------------------------
// Update / Delete / MarkSwappable
// -------------------------

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := mustCreate(t, f.svc, "u1", "Alpha", at(9, 0), at(10, 0), "")
	mustCreate(t, f.svc, "u1", "Beta", at(11, 0), at(12, 0), "")

	// moverse dentro de su propio intervalo no es conflicto consigo mismo
	newEnd := at(10, 30)
	upd, err := f.svc.Update(ctx, a.ID, "u1", events.Patch{EndTime: &newEnd})
	require.NoError(t, err)
	assert.Equal(t, newEnd, upd.EndTime)

	clash := at(11, 15)
	_, err = f.svc.Update(ctx, a.ID, "u1", events.Patch{EndTime: &clash})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	title := "Alpha v2"
	_, err = f.svc.Update(ctx, a.ID, "u2", events.Patch{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	swapped := events.StatusSwapped
	_, err = f.svc.Update(ctx, a.ID, "u1", events.Patch{Status: &swapped})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Update(ctx, a.ID, "u1", events.Patch{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Update(ctx, "missing", "u1", events.Patch{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// el update fallido no dejó nada a medio escribir
	got, err := f.svc.Get(ctx, a.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Title)
	assert.Equal(t, newEnd, got.EndTime)
}

func TestDeleteAndToggle_BlockedByPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := mustCreate(t, f.svc, "u1", "Mine", at(9, 0), at(10, 0), events.StatusSwappable)
	theirs := mustCreate(t, f.svc, "u2", "Theirs", at(9, 0), at(10, 0), events.StatusSwappable)

	require.NoError(t, f.swaps.Create(ctx, swaps.SwapRequest{
		ID: "req-1", RequesterID: "u1", RequesterEventID: mine.ID,
		TargetUserID: "u2", TargetEventID: theirs.ID,
		Status: swaps.StatusPending, CreatedAt: day, UpdatedAt: day,
	}))

	err := f.svc.Delete(ctx, theirs.ID, "u2")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	busy := events.StatusBusy
	_, err = f.svc.Update(ctx, mine.ID, "u1", events.Patch{Status: &busy})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// otros campos sí se pueden editar
	title := "Mine renamed"
	_, err = f.svc.Update(ctx, mine.ID, "u1", events.Patch{Title: &title})
	require.NoError(t, err)

	require.NoError(t, f.swaps.DeletePending(ctx, "req-1"))
	require.NoError(t, f.svc.Delete(ctx, theirs.ID, "u2"))

	_, err = f.svc.Find(ctx, theirs.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, f.pub.types(), notify.EventDeleted)
}

func TestDelete_OnlyOwner(t *testing.T) {
	f := newFixture(t)
	e := mustCreate(t, f.svc, "u1", "Meeting", at(9, 0), at(10, 0), "")

	assert.ErrorIs(t, f.svc.Delete(context.Background(), e.ID, "u2"), apperr.ErrAuthorization)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), "nope", "u1"), apperr.ErrNotFound)
}

func TestMarkSwappable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := mustCreate(t, f.svc, "u1", "Meeting", at(9, 0), at(10, 0), "")

	got, err := f.svc.MarkSwappable(ctx, e.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, events.StatusSwappable, got.Status)

	_, err = f.svc.MarkSwappable(ctx, e.ID, "u1")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.MarkSwappable(ctx, e.ID, "u2")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestMarkSwappable_BlockedByPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// request viejo que todavía apunta a un slot que ya no está en el mercado
	swapped := mustCreate(t, f.svc, "u1", "Changed hands", at(9, 0), at(10, 0), events.StatusBusy)
	other := mustCreate(t, f.svc, "u3", "Offer", at(11, 0), at(12, 0), events.StatusSwappable)

	require.NoError(t, f.swaps.Create(ctx, swaps.SwapRequest{
		ID: "req-old", RequesterID: "u3", RequesterEventID: other.ID,
		TargetUserID: "u2", TargetEventID: swapped.ID,
		Status: swaps.StatusPending, CreatedAt: day, UpdatedAt: day,
	}))

	_, err := f.svc.MarkSwappable(ctx, swapped.ID, "u1")
	require.ErrorIs(t, err, apperr.ErrConflict)

	got, err := f.svc.Find(ctx, swapped.ID)
	require.NoError(t, err)
	assert.Equal(t, events.StatusBusy, got.Status)

	require.NoError(t, f.swaps.DeletePending(ctx, "req-old"))
	got, err = f.svc.MarkSwappable(ctx, swapped.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, events.StatusSwappable, got.Status)
}

// -------------------------
// List
// -------------------------

func TestList_FilterAndSort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustCreate(t, f.svc, "u1", "Charlie", at(13, 0), at(14, 0), "")
	mustCreate(t, f.svc, "u1", "Alpha", at(9, 0), at(10, 0), events.StatusSwappable)
	mustCreate(t, f.svc, "u1", "Bravo", at(11, 0), at(12, 0), "")
	mustCreate(t, f.svc, "u2", "Other", at(9, 0), at(10, 0), "")

	items, err := f.svc.List(ctx, "u1", events.ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, titles(items))

	items, err = f.svc.List(ctx, "u1", events.ListFilter{Sort: events.SortTitle, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie", "Bravo", "Alpha"}, titles(items))

	items, err = f.svc.List(ctx, "u1", events.ListFilter{Status: events.StatusSwappable})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, titles(items))

	_, err = f.svc.List(ctx, "u1", events.ListFilter{Status: "NOPE"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func titles(items []events.Event) []string {
	out := make([]string, 0, len(items))
	for _, e := range items {
		out = append(out, e.Title)
	}
	return out
}

// -------------------------
// ExchangeOwnership
// -------------------------

func TestExchangeOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := mustCreate(t, f.svc, "u1", "Alpha", at(9, 0), at(10, 0), events.StatusSwappable)
	b := mustCreate(t, f.svc, "u2", "Bravo", at(14, 0), at(15, 0), events.StatusSwappable)

	snaps := map[string]events.OwnerSnapshot{
		"u1": {Name: "Uno", Email: "uno@x.test"},
		"u2": {Name: "Dos"},
	}
	gotA, gotB, err := f.svc.ExchangeOwnership(ctx, a.ID, b.ID, snaps)
	require.NoError(t, err)

	assert.Equal(t, "u2", gotA.OwnerUserID)
	assert.Equal(t, "u1", gotB.OwnerUserID)
	assert.Equal(t, events.StatusSwapped, gotA.Status)
	assert.Equal(t, events.StatusSwapped, gotB.Status)
	assert.Equal(t, b.ID, gotA.OriginalEventID)
	assert.Equal(t, a.ID, gotB.OriginalEventID)
	require.NotNil(t, gotA.OriginalOwner)
	assert.Equal(t, events.OwnerSnapshot{ID: "u1", Name: "Uno", Email: "uno@x.test"}, *gotA.OriginalOwner)

	// ya no son swappables
	_, _, err = f.svc.ExchangeOwnership(ctx, a.ID, b.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestExchangeOwnership_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := mustCreate(t, f.svc, "u1", "Alpha", at(9, 0), at(10, 0), events.StatusSwappable)
	busy := mustCreate(t, f.svc, "u2", "Bravo", at(14, 0), at(15, 0), "")
	mine := mustCreate(t, f.svc, "u1", "Mine", at(16, 0), at(17, 0), events.StatusSwappable)

	_, _, err := f.svc.ExchangeOwnership(ctx, a.ID, a.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation)

	_, _, err = f.svc.ExchangeOwnership(ctx, a.ID, busy.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, _, err = f.svc.ExchangeOwnership(ctx, a.ID, "missing", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, _, err = f.svc.ExchangeOwnership(ctx, a.ID, mine.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation)
}

func TestExchangeOwnership_NewOwnerConflictRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := mustCreate(t, f.svc, "u1", "Alpha", at(9, 0), at(10, 0), events.StatusSwappable)
	b := mustCreate(t, f.svc, "u2", "Bravo", at(14, 0), at(15, 0), events.StatusSwappable)
	// u2 ya tiene algo a la hora de Alpha
	mustCreate(t, f.svc, "u2", "Dentist", at(9, 30), at(10, 30), "")

	_, _, err := f.svc.ExchangeOwnership(ctx, a.ID, b.ID, nil)
	require.ErrorIs(t, err, apperr.ErrConflict)

	gotA, err := f.svc.Find(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", gotA.OwnerUserID)
	assert.Equal(t, events.StatusSwappable, gotA.Status)
}
