package registry

import (
	"context"
	crand "crypto/rand"
	"math/big"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/parlorgames/imposter-backend/internal/game"
	"github.com/parlorgames/imposter-backend/internal/room"
)

type Msg interface{ isRegistryMsg() }

type Create struct {
	OwnerName string
	OwnerID   string
	Reply     chan CreateReply
}

type CreateReply struct {
	Code string
	Room *room.Room
	Err  error
}

type Get struct {
	Code  string
	Reply chan *room.Room // nil when the code is unknown
}

type Remove struct{ Code string }

type Count struct{ Reply chan int }

type Shutdown struct{}

func (Create) isRegistryMsg()   {}
func (Get) isRegistryMsg()      {}
func (Remove) isRegistryMsg()   {}
func (Count) isRegistryMsg()    {}
func (Shutdown) isRegistryMsg() {}

type entry struct {
	room      *room.Room
	createdAt time.Time
}

// Registry owns the code -> room table. A single goroutine drains the
// inbox, so code generation is check-then-insert atomic and two creates can
// never collide. There is no background sweeper: stale sessions are evicted
// opportunistically on every create.
type Registry struct {
	inbox    chan Msg
	sessions map[string]entry
	maxAge   time.Duration
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, maxAge time.Duration, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:    make(chan Msg, 64),
		sessions: make(map[string]entry),
		maxAge:   maxAge,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Create:
				msg.Reply <- r.create(msg.OwnerName, msg.OwnerID)
			case Get:
				e, ok := r.sessions[msg.Code]
				if !ok {
					msg.Reply <- nil
					break
				}
				msg.Reply <- e.room
			case Remove:
				if e, ok := r.sessions[msg.Code]; ok {
					e.room.Inbox() <- room.Shutdown{}
					delete(r.sessions, msg.Code)
				}
			case Count:
				msg.Reply <- len(r.sessions)
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) shutdown() {
	for code, e := range r.sessions {
		e.room.Inbox() <- room.Shutdown{}
		delete(r.sessions, code)
	}
	r.cancel()
}

func (r *Registry) create(ownerName, ownerID string) CreateReply {
	r.evictStale(time.Now())

	var code string
	for {
		c, err := generateCode()
		if err != nil {
			return CreateReply{Err: err}
		}
		if _, taken := r.sessions[c]; !taken {
			code = c
			break
		}
		r.log.Warn("party code collision, regenerating", zap.String("code", c))
	}

	now := time.Now()
	sess := game.NewSession(code, now)
	if err := sess.AddParticipant(ownerName, ownerID); err != nil {
		return CreateReply{Err: err}
	}

	rng := rand.New(rand.NewSource(now.UnixNano()))
	rm := room.New(r.ctx, sess, rng, r.log)
	r.sessions[code] = entry{room: rm, createdAt: now}

	r.log.Info("session created", zap.String("code", code), zap.Int("active", len(r.sessions)))
	return CreateReply{Code: code, Room: rm}
}

// evictStale removes sessions older than maxAge. Called on create, not on a
// timer, so staleness has an acceptable window rather than a hard bound.
func (r *Registry) evictStale(now time.Time) {
	for code, e := range r.sessions {
		if now.Sub(e.createdAt) > r.maxAge {
			e.room.Inbox() <- room.Shutdown{}
			delete(r.sessions, code)
			r.log.Info("evicted stale session", zap.String("code", code))
		}
	}
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := crand.Int(crand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
