package fanout

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"slot-swapper/internal/platform/logger"
	"slot-swapper/internal/ports/notify"

	"github.com/google/uuid"
)

// Channel es una conexión de entrega (p.ej. una pestaña con websocket abierto).
type Channel interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
	// Alive hace un chequeo de liveness barato (ping). false => la conexión murió.
	Alive() bool
	Close() error
}

const shardCount = 32

type shard struct {
	mu sync.RWMutex
	// userID -> channelID -> Channel
	conns map[string]map[string]Channel
}

// Registry mapea userID -> conexiones vivas.
// Está particionado por usuario: publicar a un usuario nunca espera a otro,
// y los envíos se hacen fuera del lock.
type Registry struct {
	shards [shardCount]*shard
	log    logger.Logger
	now    func() time.Time
}

func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	r := &Registry{log: log, now: time.Now}
	for i := range r.shards {
		r.shards[i] = &shard{conns: make(map[string]map[string]Channel)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

func (r *Registry) Register(userID string, ch Channel) {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.conns[userID]
	if !ok {
		set = make(map[string]Channel)
		sh.conns[userID] = set
	}
	set[ch.ID()] = ch
}

// Unregister devuelve false si el canal ya no estaba (p.ej. lo sacó el sweep).
func (r *Registry) Unregister(userID string, ch Channel) bool {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.remove(userID, ch.ID())
}

func (sh *shard) remove(userID, channelID string) bool {
	set, ok := sh.conns[userID]
	if !ok {
		return false
	}
	if _, ok := set[channelID]; !ok {
		return false
	}
	delete(set, channelID)
	if len(set) == 0 {
		delete(sh.conns, userID)
	}
	return true
}

func (r *Registry) Connections(userID string) int {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.conns[userID])
}

func (r *Registry) channels(userID string) []Channel {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	set := sh.conns[userID]
	out := make([]Channel, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	return out
}

// Publish implementa notify.Publisher. Sin conexiones el evento se descarta:
// el cliente se resincroniza con un refresh al reconectar.
func (r *Registry) Publish(ctx context.Context, userID string, t notify.EventType, payload any) int {
	chans := r.channels(userID)
	if len(chans) == 0 {
		return 0
	}

	msg, err := json.Marshal(notify.Envelope{
		ID:     uuid.NewString(),
		Type:   t,
		Data:   payload,
		SentAt: r.now().UTC(),
	})
	if err != nil {
		r.log.Warn("encode notification failed", map[string]any{"user_id": userID, "type": string(t), "error": err.Error()})
		return 0
	}

	delivered := 0
	for _, ch := range chans {
		if err := ch.Send(ctx, msg); err != nil {
			r.log.Debug("notification send failed, dropping channel", map[string]any{
				"user_id":    userID,
				"channel_id": ch.ID(),
				"error":      err.Error(),
			})
			r.drop(userID, ch)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Registry) drop(userID string, ch Channel) {
	if r.Unregister(userID, ch) {
		_ = ch.Close()
	}
}

// Sweep saca las conexiones cuyo Alive() falla. Devuelve cuántas removió.
func (r *Registry) Sweep() int {
	removed := 0
	for _, sh := range r.shards {
		type entry struct {
			userID string
			ch     Channel
		}

		sh.mu.RLock()
		all := make([]entry, 0)
		for uid, set := range sh.conns {
			for _, ch := range set {
				all = append(all, entry{userID: uid, ch: ch})
			}
		}
		sh.mu.RUnlock()

		for _, e := range all {
			if e.ch.Alive() {
				continue
			}
			sh.mu.Lock()
			ok := sh.remove(e.userID, e.ch.ID())
			sh.mu.Unlock()
			if ok {
				_ = e.ch.Close()
				removed++
			}
		}
	}
	return removed
}

// CloseAll cierra todas las conexiones (shutdown).
func (r *Registry) CloseAll() {
	for _, sh := range r.shards {
		sh.mu.Lock()
		conns := sh.conns
		sh.conns = make(map[string]map[string]Channel)
		sh.mu.Unlock()

		for _, set := range conns {
			for _, ch := range set {
				_ = ch.Close()
			}
		}
	}
}
