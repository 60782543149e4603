package swaps

import (
	"context"
	"errors"
	"strings"
	"time"

	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/domain/history"
	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/platform/logger"
	"slot-swapper/internal/ports/mail"
	"slot-swapper/internal/ports/notify"
	"slot-swapper/internal/ports/txn"
	"slot-swapper/internal/ports/users"

	"github.com/google/uuid"
)

// Calendar es lo que el motor necesita del calendar store.
// *events.Service lo implementa.
type Calendar interface {
	Find(ctx context.Context, id string) (events.Event, error)
	LockEvents(ctx context.Context, ids ...string) error
	LockForExchange(ctx context.Context, eventAID, eventBID string) error
	ExchangeOwnership(ctx context.Context, eventAID, eventBID string, snapshots map[string]events.OwnerSnapshot) (events.Event, events.Event, error)
}

// Ledger recibe la entrada de historial dentro de la transacción de Accept.
type Ledger interface {
	Record(ctx context.Context, e history.Entry) error
}

type Options struct {
	Tx        txn.Manager
	Ledger    Ledger
	Directory users.Directory
	Publisher notify.Publisher
	Mailer    mail.Sender
	Logger    logger.Logger
	Timeout   time.Duration

	// FrontendURL arma los links de los emails.
	FrontendURL string
}

type Service struct {
	repo     Repository
	calendar Calendar
	tx       txn.Manager
	ledger   Ledger
	dir      users.Directory
	pub      notify.Publisher
	mailer   mail.Sender
	log      logger.Logger
	now      func() time.Time
	timeout  time.Duration
	frontURL string
}

func NewService(repo Repository, calendar Calendar, opts Options) *Service {
	s := &Service{
		repo:     repo,
		calendar: calendar,
		tx:       opts.Tx,
		ledger:   opts.Ledger,
		dir:      opts.Directory,
		pub:      opts.Publisher,
		mailer:   opts.Mailer,
		log:      opts.Logger,
		now:      time.Now,
		timeout:  opts.Timeout,
		frontURL: strings.TrimRight(opts.FrontendURL, "/"),
	}
	if s.tx == nil {
		s.tx = txn.Passthrough{}
	}
	if s.pub == nil {
		s.pub = notify.Discard{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.timeout <= 0 {
		s.timeout = events.DefaultTimeout
	}
	return s
}

// Create propone cambiar requesterEventID (del caller) por targetEventID.
// Las precondiciones se chequean en orden; gana la primera que falla.
func (s *Service) Create(ctx context.Context, callerID, requesterEventID, targetEventID string) (Detail, error) {
	callerID = strings.TrimSpace(callerID)
	requesterEventID = strings.TrimSpace(requesterEventID)
	targetEventID = strings.TrimSpace(targetEventID)
	if requesterEventID == "" || targetEventID == "" {
		return Detail{}, apperr.Validation("my_event_id and their_event_id are required")
	}
	if requesterEventID == targetEventID {
		return Detail{}, apperr.InvalidOperation("cannot swap a slot with itself")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var created SwapRequest
	var mine, theirs events.Event
	err := s.tx.WithinTx(tctx, func(ctx context.Context) error {
		// Mismo lock que Delete/Update toman sobre cada evento.
		if err := s.calendar.LockEvents(ctx, requesterEventID, targetEventID); err != nil {
			return err
		}

		var err error
		mine, err = s.findEvent(ctx, requesterEventID, "requester event not found")
		if err != nil {
			return err
		}
		if mine.OwnerUserID != callerID {
			return apperr.Authorization("you do not own the offered event")
		}
		if mine.Status != events.StatusSwappable {
			return apperr.InvalidState("your event is not swappable")
		}

		theirs, err = s.findEvent(ctx, targetEventID, "target event not found")
		if err != nil {
			return err
		}
		if theirs.Status != events.StatusSwappable {
			return apperr.InvalidState("target event is not swappable")
		}
		if theirs.OwnerUserID == callerID {
			return apperr.InvalidOperation("cannot swap with yourself")
		}

		_, exists, err := s.repo.FindPending(ctx, requesterEventID, targetEventID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("swap request already exists")
		}

		now := s.now().UTC()
		created = SwapRequest{
			ID:               uuid.NewString(),
			RequesterID:      callerID,
			RequesterEventID: requesterEventID,
			TargetUserID:     theirs.OwnerUserID,
			TargetEventID:    targetEventID,
			Status:           StatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return s.repo.Create(ctx, created)
	})
	if err != nil {
		return Detail{}, apperr.Normalize(err)
	}

	s.log.Info("swap request created", map[string]any{
		"swap_request_id": created.ID,
		"requester_id":    created.RequesterID,
		"target_user_id":  created.TargetUserID,
	})

	c := s.newComposer()
	c.seed(mine, theirs)
	d, err := c.compose(ctx, created)
	if err != nil {
		// El request ya quedó persistido; devolvemos lo que tenemos.
		s.log.Warn("compose swap request failed", map[string]any{"swap_request_id": created.ID, "error": err.Error()})
		d = bareDetail(created)
	}

	s.publish(ctx, created.TargetUserID, notify.EventNewSwapRequest, Notice{
		Request: d,
		Message: d.Requester.DisplayName() + " wants to swap slots with you",
	})
	s.email(ctx, emailNewRequest, d.TargetUser, emailData{
		OtherName:    d.Requester.DisplayName(),
		OfferedTitle: mine.Title,
		OfferedWhen:  formatWhen(mine),
		WantedTitle:  theirs.Title,
		WantedWhen:   formatWhen(theirs),
		Link:         s.frontURL + "/requests",
	})

	return d, nil
}

// Accept ejecuta el intercambio. Solo el target puede aceptar, y solo una vez:
// el update condicional de estado hace que, entre accepts concurrentes, gane uno.
func (s *Service) Accept(ctx context.Context, requestID, callerID string) (Detail, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return Detail{}, apperr.Validation("swap request id is required")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Perfiles fuera de la transacción: el directorio puede ir al IAM por red.
	// Los participantes de un request no cambian, y el chequeo de dueños bajo lock
	// garantiza que los snapshots corresponden a quienes entregan cada evento.
	pre, err := s.load(tctx, requestID)
	if err != nil {
		return Detail{}, apperr.Normalize(err)
	}
	if pre.Status != StatusPending {
		return Detail{}, apperr.InvalidState("request already processed")
	}
	if pre.TargetUserID != callerID {
		return Detail{}, apperr.Authorization("only the target user can accept this request")
	}
	snapshots := map[string]events.OwnerSnapshot{
		pre.RequesterID:  ownerSnapshot(s.lookupProfile(tctx, pre.RequesterID)),
		pre.TargetUserID: ownerSnapshot(s.lookupProfile(tctx, pre.TargetUserID)),
	}

	var req SwapRequest
	var reqEv, tgtEv events.Event
	err = s.tx.WithinTx(tctx, func(ctx context.Context) error {
		var err error
		req, err = s.load(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return apperr.InvalidState("request already processed")
		}
		if req.TargetUserID != callerID {
			return apperr.Authorization("only the target user can accept this request")
		}

		// Locks en orden global (dueños, luego eventos) antes del update del request.
		if err := s.calendar.LockForExchange(ctx, req.RequesterEventID, req.TargetEventID); err != nil {
			return err
		}
		// Con los locks tomados, otro accept concurrente ya commiteó o todavía no empezó.
		if req, err = s.load(ctx, requestID); err != nil {
			return err
		}
		if req.Status != StatusPending {
			return apperr.InvalidState("request already processed")
		}

		// Cada evento tiene que seguir siendo de quien lo puso en el request.
		// Un request viejo no puede mover un slot que ya cambió de manos.
		if err := s.ensureOwnedBy(ctx, req.RequesterEventID, req.RequesterID); err != nil {
			return err
		}
		if err := s.ensureOwnedBy(ctx, req.TargetEventID, req.TargetUserID); err != nil {
			return err
		}

		reqEv, tgtEv, err = s.calendar.ExchangeOwnership(ctx, req.RequesterEventID, req.TargetEventID, snapshots)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.transition(ctx, req.ID, StatusAccepted, now); err != nil {
			return err
		}
		req.Status = StatusAccepted
		req.UpdatedAt = now

		if s.ledger == nil {
			return nil
		}
		return s.ledger.Record(ctx, history.Entry{
			ID:            uuid.NewString(),
			SwapRequestID: req.ID,
			Sides: [2]history.Side{
				{UserID: req.RequesterID, EventID: req.RequesterEventID, Snapshot: reqEv},
				{UserID: req.TargetUserID, EventID: req.TargetEventID, Snapshot: tgtEv},
			},
			CompletedAt: now,
		})
	})
	if err != nil {
		return Detail{}, apperr.Normalize(err)
	}

	s.log.Info("swap request accepted", map[string]any{
		"swap_request_id": req.ID,
		"requester_id":    req.RequesterID,
		"target_user_id":  req.TargetUserID,
	})

	c := s.newComposer()
	c.seed(reqEv, tgtEv)
	d, err := c.compose(ctx, req)
	if err != nil {
		s.log.Warn("compose swap request failed", map[string]any{"swap_request_id": req.ID, "error": err.Error()})
		d = bareDetail(req)
	}

	s.publish(ctx, req.RequesterID, notify.EventSwapAccepted, Notice{
		Request: d,
		Message: d.TargetUser.DisplayName() + " accepted your swap request",
	})
	s.publish(ctx, req.TargetUserID, notify.EventSwapAccepted, Notice{
		Request: d,
		Message: "You accepted a swap request",
	})
	for _, uid := range []string{req.RequesterID, req.TargetUserID} {
		for _, ev := range []events.Event{reqEv, tgtEv} {
			v := events.ToView(ev)
			s.publish(ctx, uid, notify.EventUpdated, events.Notice{Event: &v, Message: "Event swapped"})
		}
	}

	// Post-swap: reqEv ahora es del target y tgtEv del requester.
	s.email(ctx, emailAccepted, d.Requester, emailData{
		OtherName:    d.TargetUser.DisplayName(),
		OfferedTitle: reqEv.Title,
		OfferedWhen:  formatWhen(reqEv),
		WantedTitle:  tgtEv.Title,
		WantedWhen:   formatWhen(tgtEv),
		Link:         s.frontURL + "/dashboard",
	})

	return d, nil
}

func (s *Service) Reject(ctx context.Context, requestID, callerID string) (Detail, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return Detail{}, apperr.Validation("swap request id is required")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var req SwapRequest
	err := s.tx.WithinTx(tctx, func(ctx context.Context) error {
		var err error
		req, err = s.load(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return apperr.InvalidState("request already processed")
		}
		if req.TargetUserID != callerID {
			return apperr.Authorization("only the target user can reject this request")
		}

		now := s.now().UTC()
		if err := s.transition(ctx, req.ID, StatusRejected, now); err != nil {
			return err
		}
		req.Status = StatusRejected
		req.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Detail{}, apperr.Normalize(err)
	}

	s.log.Info("swap request rejected", map[string]any{
		"swap_request_id": req.ID,
		"requester_id":    req.RequesterID,
		"target_user_id":  req.TargetUserID,
	})

	d, err := s.newComposer().compose(ctx, req)
	if err != nil {
		s.log.Warn("compose swap request failed", map[string]any{"swap_request_id": req.ID, "error": err.Error()})
		d = bareDetail(req)
	}

	s.publish(ctx, req.RequesterID, notify.EventSwapRejected, Notice{
		Request: d,
		Message: d.TargetUser.DisplayName() + " rejected your swap request",
	})
	s.publish(ctx, req.TargetUserID, notify.EventSwapRejected, Notice{
		Request: d,
		Message: "You rejected a swap request",
	})

	data := emailData{OtherName: d.TargetUser.DisplayName(), Link: s.frontURL + "/marketplace"}
	if d.RequesterEvent != nil {
		data.OfferedTitle = d.RequesterEvent.Title
	}
	if d.TargetEvent != nil {
		data.WantedTitle = d.TargetEvent.Title
	}
	s.email(ctx, emailRejected, d.Requester, data)

	return d, nil
}

// Cancel borra un request PENDING. Solo el requester puede cancelarlo.
func (s *Service) Cancel(ctx context.Context, requestID, callerID string) error {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return apperr.Validation("swap request id is required")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var req SwapRequest
	err := s.tx.WithinTx(tctx, func(ctx context.Context) error {
		var err error
		req, err = s.load(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return apperr.InvalidState("request already processed")
		}
		if req.RequesterID != callerID {
			return apperr.Authorization("only the requester can cancel this request")
		}
		if err := s.repo.DeletePending(ctx, req.ID); err != nil {
			if errors.Is(err, apperr.ErrInvalidState) {
				return apperr.InvalidState("request already processed")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return apperr.Normalize(err)
	}

	s.log.Info("swap request cancelled", map[string]any{
		"swap_request_id":    req.ID,
		"requester_id":       req.RequesterID,
		"target_user_id":     req.TargetUserID,
		"requester_event_id": req.RequesterEventID,
		"target_event_id":    req.TargetEventID,
	})
	return nil
}

// Get devuelve un request a cualquiera de sus dos partes.
func (s *Service) Get(ctx context.Context, requestID, callerID string) (Detail, error) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.load(tctx, strings.TrimSpace(requestID))
	if err != nil {
		return Detail{}, apperr.Normalize(err)
	}
	if !req.Involves(callerID) {
		return Detail{}, apperr.Authorization("not a participant of this swap request")
	}

	d, err := s.newComposer().compose(tctx, req)
	if err != nil {
		return Detail{}, apperr.Normalize(err)
	}
	return d, nil
}

func (s *Service) ListIncoming(ctx context.Context, userID string) ([]Detail, error) {
	return s.list(ctx, userID, s.repo.ListIncoming)
}

func (s *Service) ListOutgoing(ctx context.Context, userID string) ([]Detail, error) {
	return s.list(ctx, userID, s.repo.ListOutgoing)
}

func (s *Service) list(ctx context.Context, userID string, fetch func(context.Context, string) ([]SwapRequest, error)) ([]Detail, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("user id is required")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := fetch(tctx, userID)
	if err != nil {
		return nil, apperr.Normalize(err)
	}

	c := s.newComposer()
	out := make([]Detail, 0, len(items))
	for _, r := range items {
		d, err := c.compose(tctx, r)
		if err != nil {
			return nil, apperr.Normalize(err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id string) (SwapRequest, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return SwapRequest{}, apperr.NotFound("swap request not found")
		}
		return SwapRequest{}, err
	}
	return r, nil
}

func (s *Service) ensureOwnedBy(ctx context.Context, eventID, userID string) error {
	e, err := s.calendar.Find(ctx, eventID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.InvalidState("one or both events are no longer swappable")
		}
		return err
	}
	if e.OwnerUserID != userID {
		return apperr.InvalidState("one or both events are no longer swappable")
	}
	return nil
}

func (s *Service) findEvent(ctx context.Context, id, notFoundMsg string) (events.Event, error) {
	e, err := s.calendar.Find(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return events.Event{}, apperr.NotFound(notFoundMsg)
		}
		return events.Event{}, err
	}
	return e, nil
}

func (s *Service) transition(ctx context.Context, id string, to Status, at time.Time) error {
	if err := s.repo.UpdateStatus(ctx, id, StatusPending, to, at); err != nil {
		if errors.Is(err, apperr.ErrInvalidState) {
			return apperr.InvalidState("request already processed")
		}
		return err
	}
	return nil
}

// lookupProfile nunca falla: sin directorio (o si el lookup falla) queda solo el id.
func (s *Service) lookupProfile(ctx context.Context, userID string) users.Profile {
	if s.dir == nil {
		return users.Profile{ID: userID}
	}
	p, err := s.dir.Lookup(ctx, userID)
	if err != nil {
		s.log.Debug("profile lookup failed", map[string]any{"user_id": userID, "error": err.Error()})
		return users.Profile{ID: userID}
	}
	p.ID = userID
	return p
}

func (s *Service) publish(ctx context.Context, userID string, t notify.EventType, payload any) {
	n := s.pub.Publish(ctx, userID, t, payload)
	s.log.Debug("notification published", map[string]any{"user_id": userID, "type": string(t), "delivered": n})
}

// email es best-effort: los errores se loguean y no cambian el resultado de la operación.
func (s *Service) email(ctx context.Context, kind emailKind, to users.Profile, data emailData) {
	if s.mailer == nil {
		return
	}
	if strings.TrimSpace(to.Email) == "" {
		s.log.Debug("email skipped, recipient without address", map[string]any{"user_id": to.ID})
		return
	}

	data.RecipientName = to.DisplayName()
	subject, html, err := renderEmail(kind, data)
	if err != nil {
		s.log.Warn("render email failed", map[string]any{"user_id": to.ID, "error": err.Error()})
		return
	}
	if err := s.mailer.Send(ctx, mail.Message{To: to.Email, Subject: subject, HTML: html}); err != nil {
		s.log.Warn("send email failed", map[string]any{"user_id": to.ID, "error": err.Error()})
	}
}

func bareDetail(r SwapRequest) Detail {
	return Detail{
		ID:         r.ID,
		Status:     r.Status,
		Requester:  users.Profile{ID: r.RequesterID},
		TargetUser: users.Profile{ID: r.TargetUserID},
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func ownerSnapshot(p users.Profile) events.OwnerSnapshot {
	return events.OwnerSnapshot{ID: p.ID, Name: p.Name, Email: p.Email}
}

func formatWhen(e events.Event) string {
	return e.StartTime.UTC().Format("Mon 02 Jan 2006 15:04") + " - " + e.EndTime.UTC().Format("15:04") + " UTC"
}
