package swaps_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"slot-swapper/internal/adapters/storage/memory"
	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/domain/history"
	"slot-swapper/internal/domain/swaps"
	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/ports/mail"
	"slot-swapper/internal/ports/notify"
	"slot-swapper/internal/ports/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Fakes
// -------------------------

type sentNotice struct {
	UserID string
	Type   notify.EventType
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (p *recordingPublisher) Publish(_ context.Context, userID string, t notify.EventType, _ any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentNotice{UserID: userID, Type: t})
	return 1
}

func (p *recordingPublisher) count(userID string, t notify.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.sent {
		if s.UserID == userID && s.Type == t {
			n++
		}
	}
	return n
}

type recordingMailer struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return m.err
}

func (m *recordingMailer) sentTo(addr string) []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mail.Message
	for _, msg := range m.msgs {
		if msg.To == addr {
			out = append(out, msg)
		}
	}
	return out
}

type env struct {
	repo    events.Repository
	events  *events.Service
	swaps   *swaps.Service
	history *history.Service
	pub     *recordingPublisher
	mailer  *recordingMailer
}

func newEnv(t *testing.T) env {
	t.Helper()
	st := memory.NewStore()
	swapRepo := memory.NewSwapRepo(st)
	pub := &recordingPublisher{}
	mailer := &recordingMailer{}

	dir := memory.NewDirectory()
	ctx := context.Background()
	require.NoError(t, dir.Remember(ctx, users.Profile{ID: "alice", Name: "Alice", Email: "alice@x.test"}))
	require.NoError(t, dir.Remember(ctx, users.Profile{ID: "bob", Name: "Bob", Email: "bob@x.test"}))
	require.NoError(t, dir.Remember(ctx, users.Profile{ID: "carol", Name: "Carol", Email: "carol@x.test"}))

	eventRepo := memory.NewEventRepo(st)
	eventsSvc := events.NewService(eventRepo, events.Options{Tx: st, Pending: swapRepo, Publisher: pub})
	historySvc := history.NewService(memory.NewHistoryRepo(st), 0)
	swapsSvc := swaps.NewService(swapRepo, eventsSvc, swaps.Options{
		Tx:          st,
		Ledger:      historySvc,
		Directory:   dir,
		Publisher:   pub,
		Mailer:      mailer,
		FrontendURL: "http://app.test/",
	})
	return env{repo: eventRepo, events: eventsSvc, swaps: swapsSvc, history: historySvc, pub: pub, mailer: mailer}
}

var base = time.Date(2030, 7, 1, 8, 0, 0, 0, time.UTC)

func slot(t *testing.T, e env, owner, title string, hour int, status events.Status) events.Event {
	t.Helper()
	ev, err := e.events.Create(context.Background(), owner, events.CreateInput{
		Title:     title,
		StartTime: base.Add(time.Duration(hour) * time.Hour),
		EndTime:   base.Add(time.Duration(hour+1) * time.Hour),
		Status:    status,
	})
	require.NoError(t, err)
	return ev
}

// -------------------------
// Create
// -------------------------

func TestCreate_HappyPath(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)

	d, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, swaps.StatusPending, d.Status)
	assert.Equal(t, "Alice", d.Requester.Name)
	assert.Equal(t, "bob", d.TargetUser.ID)
	require.NotNil(t, d.RequesterEvent)
	require.NotNil(t, d.TargetEvent)
	assert.Equal(t, a.ID, d.RequesterEvent.ID)
	assert.Equal(t, b.ID, d.TargetEvent.ID)

	assert.Equal(t, 1, e.pub.count("bob", notify.EventNewSwapRequest))
	msgs := e.mailer.sentTo("bob@x.test")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "Alice")
	assert.Contains(t, msgs[0].HTML, "http://app.test/requests")

	incoming, err := e.swaps.ListIncoming(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, d.ID, incoming[0].ID)

	outgoing, err := e.swaps.ListOutgoing(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, outgoing, 1)

	none, err := e.swaps.ListIncoming(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCreate_PreconditionsInOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mineSwappable := slot(t, e, "alice", "Mine", 1, events.StatusSwappable)
	mineBusy := slot(t, e, "alice", "Mine busy", 2, "")
	otherMine := slot(t, e, "alice", "Mine too", 5, events.StatusSwappable)
	theirsSwappable := slot(t, e, "bob", "Theirs", 3, events.StatusSwappable)
	theirsBusy := slot(t, e, "bob", "Theirs busy", 4, "")

	cases := []struct {
		name      string
		caller    string
		mine      string
		theirs    string
		wantKind  error
		wantInMsg string
	}{
		{"missing ids", "alice", "", theirsSwappable.ID, apperr.ErrValidation, "required"},
		{"same slot", "alice", mineSwappable.ID, mineSwappable.ID, apperr.ErrInvalidOperation, "itself"},
		{"requester event missing", "alice", "nope", theirsSwappable.ID, apperr.ErrNotFound, "requester event"},
		{"not owner", "bob", mineSwappable.ID, theirsSwappable.ID, apperr.ErrAuthorization, "do not own"},
		{"mine not swappable", "alice", mineBusy.ID, theirsSwappable.ID, apperr.ErrInvalidState, "your event"},
		{"target missing", "alice", mineSwappable.ID, "nope", apperr.ErrNotFound, "target event"},
		{"target not swappable", "alice", mineSwappable.ID, theirsBusy.ID, apperr.ErrInvalidState, "target event"},
		{"own target", "alice", mineSwappable.ID, otherMine.ID, apperr.ErrInvalidOperation, "yourself"},
		// no es dueño Y el target no es swappable: gana la autorización
		{"ownership before target", "bob", mineSwappable.ID, theirsBusy.ID, apperr.ErrAuthorization, "do not own"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.swaps.Create(ctx, tc.caller, tc.mine, tc.theirs)
			require.ErrorIs(t, err, tc.wantKind)
			assert.Contains(t, err.Error(), tc.wantInMsg)
		})
	}
}

func TestCreate_Duplicate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)

	_, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)

	_, err = e.swaps.Create(ctx, "alice", a.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

// -------------------------
// Accept
// -------------------------

func TestAccept_ExchangesOwnershipAndRecordsHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)
	req, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)

	_, err = e.swaps.Accept(ctx, req.ID, "alice")
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	d, err := e.swaps.Accept(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, swaps.StatusAccepted, d.Status)

	gotA, err := e.events.Find(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := e.events.Find(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, "bob", gotA.OwnerUserID)
	assert.Equal(t, "alice", gotB.OwnerUserID)
	assert.Equal(t, events.StatusSwapped, gotA.Status)
	assert.Equal(t, events.StatusSwapped, gotB.Status)
	assert.Equal(t, b.ID, gotA.OriginalEventID)
	require.NotNil(t, gotA.OriginalOwner)
	assert.Equal(t, "Alice", gotA.OriginalOwner.Name)

	entry, err := e.history.GetBySwapRequest(ctx, req.ID, "alice")
	require.NoError(t, err)
	assert.True(t, entry.Involves("alice"))
	assert.True(t, entry.Involves("bob"))
	// cada lado es el usuario con el evento que entregó
	assert.Equal(t, "alice", entry.Sides[0].UserID)
	assert.Equal(t, a.ID, entry.Sides[0].EventID)
	assert.Equal(t, "bob", entry.Sides[0].Snapshot.OwnerUserID)
	assert.Equal(t, "bob", entry.Sides[1].UserID)
	assert.Equal(t, b.ID, entry.Sides[1].EventID)
	assert.Equal(t, "alice", entry.Sides[1].Snapshot.OwnerUserID)

	assert.Equal(t, 1, e.pub.count("alice", notify.EventSwapAccepted))
	assert.Equal(t, 1, e.pub.count("bob", notify.EventSwapAccepted))
	assert.Equal(t, 2, e.pub.count("alice", notify.EventUpdated))
	assert.Len(t, e.mailer.sentTo("alice@x.test"), 1)

	// no queda nada pendiente
	incoming, err := e.swaps.ListIncoming(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, incoming)

	_, err = e.swaps.Accept(ctx, req.ID, "bob")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = e.swaps.Reject(ctx, req.ID, "bob")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestAccept_ConcurrentExactlyOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)
	req, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)

	const n = 20
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		others []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.swaps.Accept(ctx, req.ID, "bob")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			others = append(others, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range others {
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	}

	entries, err := e.history.ListForUser(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	gotA, err := e.events.Find(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", gotA.OwnerUserID)
}

func TestAccept_EventNoLongerSwappableKeepsRequestPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)
	c := slot(t, e, "carol", "Carol slot", 5, events.StatusSwappable)

	toBob, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)
	toCarol, err := e.swaps.Create(ctx, "alice", a.ID, c.ID)
	require.NoError(t, err)

	_, err = e.swaps.Accept(ctx, toBob.ID, "bob")
	require.NoError(t, err)

	_, err = e.swaps.Accept(ctx, toCarol.ID, "carol")
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Contains(t, err.Error(), "no longer swappable")

	d, err := e.swaps.Get(ctx, toCarol.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, swaps.StatusPending, d.Status)

	gotC, err := e.events.Find(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", gotC.OwnerUserID)
	assert.Equal(t, events.StatusSwappable, gotC.Status)

	// el target todavía puede rechazarlo
	_, err = e.swaps.Reject(ctx, toCarol.ID, "carol")
	require.NoError(t, err)
}

func TestAccept_StaleRequestCannotMoveSlotThatChangedHands(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)
	c := slot(t, e, "carol", "Carol slot", 5, events.StatusSwappable)

	fromCarol, err := e.swaps.Create(ctx, "carol", c.ID, a.ID)
	require.NoError(t, err)
	fromBob, err := e.swaps.Create(ctx, "bob", b.ID, a.ID)
	require.NoError(t, err)

	_, err = e.swaps.Accept(ctx, fromBob.ID, "alice")
	require.NoError(t, err)

	// bob no puede volver a ofrecer el slot mientras el request de carol siga vivo
	_, err = e.events.MarkSwappable(ctx, a.ID, "bob")
	require.ErrorIs(t, err, apperr.ErrConflict)

	// aunque el slot vuelva a estar SWAPPABLE por otra vía, el request viejo no lo mueve
	gotA, err := e.events.Find(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "bob", gotA.OwnerUserID)
	gotA.Status = events.StatusSwappable
	require.NoError(t, e.repo.Update(ctx, gotA))

	_, err = e.swaps.Accept(ctx, fromCarol.ID, "alice")
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Contains(t, err.Error(), "no longer swappable")

	gotA, err = e.events.Find(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", gotA.OwnerUserID)
	gotC, err := e.events.Find(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", gotC.OwnerUserID)

	d, err := e.swaps.Get(ctx, fromCarol.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, swaps.StatusPending, d.Status)

	// carol retira su request y bob ya puede re-ofrecer el slot
	require.NoError(t, e.swaps.Cancel(ctx, fromCarol.ID, "carol"))
	_, err = e.events.MarkSwappable(ctx, a.ID, "bob")
	require.NoError(t, err)
}

func TestAccept_MailFailureDoesNotUndoSwap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mailer.err = errors.New("relay down")

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)

	req, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)

	d, err := e.swaps.Accept(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, swaps.StatusAccepted, d.Status)

	gotB, err := e.events.Find(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", gotB.OwnerUserID)
}

// -------------------------
// Reject / Cancel / Get
// -------------------------

func TestReject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)
	req, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)

	_, err = e.swaps.Reject(ctx, req.ID, "alice")
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	d, err := e.swaps.Reject(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, swaps.StatusRejected, d.Status)

	_, err = e.swaps.Reject(ctx, req.ID, "bob")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	// los eventos no cambian
	gotA, err := e.events.Find(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", gotA.OwnerUserID)
	assert.Equal(t, events.StatusSwappable, gotA.Status)

	assert.Equal(t, 1, e.pub.count("alice", notify.EventSwapRejected))
	assert.Len(t, e.mailer.sentTo("alice@x.test"), 1)

	// un rechazo libera el par: se puede volver a pedir
	_, err = e.swaps.Create(ctx, "alice", a.ID, b.ID)
	assert.NoError(t, err)
}

func TestCancel_RoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)
	req, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, e.swaps.Cancel(ctx, req.ID, "bob"), apperr.ErrAuthorization)
	require.NoError(t, e.swaps.Cancel(ctx, req.ID, "alice"))

	_, err = e.swaps.Get(ctx, req.ID, "alice")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, e.swaps.Cancel(ctx, req.ID, "alice"), apperr.ErrNotFound)

	// sin pendientes, Bob puede borrar su evento
	require.NoError(t, e.events.Delete(ctx, b.ID, "bob"))

	_, err = e.swaps.Create(ctx, "alice", a.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGet_OnlyParticipants(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)
	req, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)

	_, err = e.swaps.Get(ctx, req.ID, "carol")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	d, err := e.swaps.Get(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, req.ID, d.ID)
}

func TestDetail_DeletedEventIsNil(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := slot(t, e, "alice", "Alice slot", 1, events.StatusSwappable)
	b := slot(t, e, "bob", "Bob slot", 3, events.StatusSwappable)
	req, err := e.swaps.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)
	_, err = e.swaps.Reject(ctx, req.ID, "bob")
	require.NoError(t, err)

	require.NoError(t, e.events.Delete(ctx, b.ID, "bob"))

	out, err := e.swaps.ListOutgoing(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotNil(t, out[0].RequesterEvent)
	assert.Nil(t, out[0].TargetEvent)
}

// storeReadingDirectory lee el store en cada Lookup con un ctx propio. Si el
// lookup corriera dentro de la transacción de Accept, esa lectura quedaría
// bloqueada detrás del gate de escritura y vencería.
type storeReadingDirectory struct {
	users.Directory
	repo    events.Repository
	eventID string
	blocked atomic.Int32
}

func (d *storeReadingDirectory) Lookup(ctx context.Context, userID string) (users.Profile, error) {
	rctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := d.repo.GetByID(rctx, d.eventID); err != nil {
		d.blocked.Add(1)
	}
	return d.Directory.Lookup(ctx, userID)
}

func TestAccept_ProfilesResolvedOutsideTransaction(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	eventRepo := memory.NewEventRepo(st)
	swapRepo := memory.NewSwapRepo(st)

	local := memory.NewDirectory()
	require.NoError(t, local.Remember(ctx, users.Profile{ID: "alice", Name: "Alice"}))
	require.NoError(t, local.Remember(ctx, users.Profile{ID: "bob", Name: "Bob"}))

	eventsSvc := events.NewService(eventRepo, events.Options{Tx: st, Pending: swapRepo})
	a, err := eventsSvc.Create(ctx, "alice", events.CreateInput{
		Title: "Alice slot", StartTime: base, EndTime: base.Add(time.Hour), Status: events.StatusSwappable,
	})
	require.NoError(t, err)
	b, err := eventsSvc.Create(ctx, "bob", events.CreateInput{
		Title: "Bob slot", StartTime: base.Add(2 * time.Hour), EndTime: base.Add(3 * time.Hour), Status: events.StatusSwappable,
	})
	require.NoError(t, err)

	dir := &storeReadingDirectory{Directory: local, repo: eventRepo, eventID: a.ID}
	swapsSvc := swaps.NewService(swapRepo, eventsSvc, swaps.Options{
		Tx:        st,
		Ledger:    history.NewService(memory.NewHistoryRepo(st), 0),
		Directory: dir,
	})

	req, err := swapsSvc.Create(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)
	before := dir.blocked.Load()

	_, err = swapsSvc.Accept(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, before, dir.blocked.Load())

	gotA, err := eventsSvc.Find(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, gotA.OriginalOwner)
	assert.Equal(t, "Alice", gotA.OriginalOwner.Name)
	gotB, err := eventsSvc.Find(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, gotB.OriginalOwner)
	assert.Equal(t, "Bob", gotB.OriginalOwner.Name)
}
