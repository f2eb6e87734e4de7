package room

import (
	"context"
	"errors"
	"math/rand"

	"go.uber.org/zap"

	"github.com/parlorgames/imposter-backend/internal/game"
)

type Msg interface{ isRoomMsg() }

// Subscribe binds a live connection to a participant. The room replies with
// game.ErrNotParticipant if the fingerprint has never joined; otherwise it
// marks the player connected, sends them a personalized snapshot, and
// broadcasts the roster.
type Subscribe struct {
	ConnID        string
	ParticipantID string
	Outbox        chan Outbound // where this connection receives events
	Reply         chan error
}

type Unsubscribe struct{ ConnID string }

// AddPlayer and RemovePlayer back the HTTP join/leave endpoints.
type AddPlayer struct {
	Name  string
	ID    string
	Reply chan error
}

type RemovePlayer struct {
	ID    string
	Reply chan error
}

type StartGame struct {
	ConnID   string
	From     string
	Settings *game.Settings
}

type SendChat struct {
	ConnID string
	From   string
	Text   string
}

type CastVote struct {
	ConnID string
	From   string
	Kind   game.VoteKind
	Choice string
}

type SendFinalStatement struct {
	ConnID string
	From   string
	Text   string
}

type NewGame struct {
	ConnID string
	From   string
}

type GetPublic struct{ Reply chan game.PublicView }

// GetView reflects internal state without data races; used by tests and the
// identity-resolution path.
type GetView struct {
	ID    string
	Reply chan ViewReply
}

type ViewReply struct {
	View    game.PlayerView
	Found   bool
	NumSubs int
}

type Shutdown struct{}

func (Subscribe) isRoomMsg()          {}
func (Unsubscribe) isRoomMsg()        {}
func (AddPlayer) isRoomMsg()          {}
func (RemovePlayer) isRoomMsg()       {}
func (StartGame) isRoomMsg()          {}
func (SendChat) isRoomMsg()           {}
func (CastVote) isRoomMsg()           {}
func (SendFinalStatement) isRoomMsg() {}
func (NewGame) isRoomMsg()            {}
func (GetPublic) isRoomMsg()          {}
func (GetView) isRoomMsg()            {}
func (Shutdown) isRoomMsg()           {}

// Outbound is a wire-ready event. Errors are addressed to the initiating
// connection only; everything else fans out to the whole room.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	EvtGameState           = "game-state"
	EvtPlayersUpdated      = "players-updated"
	EvtGameStarted         = "game-started"
	EvtNewChat             = "new-chat"
	EvtTurnUpdate          = "turn-update"
	EvtVotingPhase         = "voting-phase"
	EvtContinuePlaying     = "continue-playing"
	EvtVoteResults         = "vote-results"
	EvtFinalStatementPhase = "final-messages-phase"
	EvtNewFinalStatement   = "new-final-message"
	EvtGameEnded           = "game-ended"
	EvtGameReset           = "game-reset"
	EvtPlayerDisconnected  = "player-disconnected"
	EvtError               = "error"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type subscriber struct {
	participantID string
	outbox        chan Outbound
}

// Room serializes all mutation of one game session: a single goroutine
// drains the inbox and applies one action at a time, so the session never
// needs a lock. Broadcast is fire-and-forget; a subscriber that cannot keep
// up is dropped rather than allowed to stall the game.
type Room struct {
	inbox  chan Msg
	sess   *game.Session
	subs   map[string]subscriber
	rng    *rand.Rand
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, sess *game.Session, rng *rand.Rand, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:  make(chan Msg, 64),
		sess:   sess,
		subs:   make(map[string]subscriber),
		rng:    rng,
		log:    log.With(zap.String("code", sess.Code)),
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Subscribe:
				r.handleSubscribe(msg)
			case Unsubscribe:
				r.handleUnsubscribe(msg)
			case AddPlayer:
				err := r.sess.AddParticipant(msg.Name, msg.ID)
				msg.Reply <- err
				if err == nil {
					r.broadcast(Outbound{Type: EvtPlayersUpdated, Data: r.sess.Roster()})
				}
			case RemovePlayer:
				err := r.sess.RemoveParticipant(msg.ID)
				msg.Reply <- err
				if err == nil {
					r.broadcast(Outbound{Type: EvtPlayersUpdated, Data: r.sess.Roster()})
				}
			case StartGame:
				r.handleStart(msg)
			case SendChat:
				r.handleChat(msg)
			case CastVote:
				r.handleVote(msg)
			case SendFinalStatement:
				r.handleFinalStatement(msg)
			case NewGame:
				r.handleNewGame(msg)
			case GetPublic:
				msg.Reply <- r.sess.PublicView()
			case GetView:
				v, ok := r.sess.PlayerView(msg.ID)
				msg.Reply <- ViewReply{View: v, Found: ok, NumSubs: len(r.subs)}
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	for id, sub := range r.subs {
		close(sub.outbox)
		delete(r.subs, id)
	}
	r.cancel()
}

func (r *Room) broadcast(out Outbound) {
	for id, sub := range r.subs {
		select {
		case sub.outbox <- out:
		default:
			// Slow or dead connection - drop it so the room keeps moving.
			close(sub.outbox)
			delete(r.subs, id)
		}
	}
}

func (r *Room) sendTo(connID string, out Outbound) {
	sub, ok := r.subs[connID]
	if !ok {
		return
	}
	select {
	case sub.outbox <- out:
	default:
		close(sub.outbox)
		delete(r.subs, connID)
	}
}

func (r *Room) sendError(connID string, err error) {
	r.sendTo(connID, Outbound{Type: EvtError, Data: errorPayload{
		Code:    errCode(err),
		Message: err.Error(),
	}})
}

// errCode collapses the session's sentinel errors into the wire taxonomy.
func errCode(err error) string {
	switch {
	case errors.Is(err, game.ErrNotParticipant):
		return "not-found"
	case errors.Is(err, game.ErrNotOwner):
		return "forbidden"
	default:
		return "precondition-failed"
	}
}

func (r *Room) handleSubscribe(msg Subscribe) {
	if _, ok := r.sess.Participant(msg.ParticipantID); !ok {
		msg.Reply <- game.ErrNotParticipant
		return
	}
	r.subs[msg.ConnID] = subscriber{participantID: msg.ParticipantID, outbox: msg.Outbox}
	r.sess.SetConnected(msg.ParticipantID, true)
	msg.Reply <- nil

	view, _ := r.sess.PlayerView(msg.ParticipantID)
	r.sendTo(msg.ConnID, Outbound{Type: EvtGameState, Data: view})
	r.broadcast(Outbound{Type: EvtPlayersUpdated, Data: r.sess.Roster()})
}

func (r *Room) handleUnsubscribe(msg Unsubscribe) {
	sub, ok := r.subs[msg.ConnID]
	if !ok {
		return
	}
	delete(r.subs, msg.ConnID)
	// Deregistered, so the loop can never send here again; closing lets
	// the connection's writer goroutine exit.
	close(sub.outbox)

	// Another tab may still be bound to the same fingerprint.
	for _, other := range r.subs {
		if other.participantID == sub.participantID {
			return
		}
	}
	r.sess.SetConnected(sub.participantID, false)
	r.broadcast(Outbound{Type: EvtPlayerDisconnected, Data: map[string]string{
		"fingerprint": sub.participantID,
	}})
}

func (r *Room) handleStart(msg StartGame) {
	if !r.sess.IsOwner(msg.From) {
		r.sendError(msg.ConnID, game.ErrNotOwner)
		return
	}
	if err := r.sess.Start(msg.Settings, r.rng); err != nil {
		r.sendError(msg.ConnID, err)
		return
	}
	r.log.Info("game started",
		zap.Int("players", r.sess.Count()),
		zap.Int("imposters", r.sess.Settings.ImposterCount))

	// Personalized: each connection learns only its own role, and the word
	// only if it is a crewmate. Routed through sendTo so a full outbox
	// drops that connection instead of stalling the room.
	for connID, sub := range r.subs {
		view, ok := r.sess.PlayerView(sub.participantID)
		if !ok {
			continue
		}
		r.sendTo(connID, Outbound{Type: EvtGameStarted, Data: view})
	}
}

func (r *Room) handleChat(msg SendChat) {
	entry, err := r.sess.RecordChat(msg.From, msg.Text)
	if err != nil {
		r.sendError(msg.ConnID, err)
		return
	}
	r.broadcast(Outbound{Type: EvtNewChat, Data: entry})

	if r.sess.RoundComplete() {
		r.sess.BeginContinueVote()
		r.broadcast(Outbound{Type: EvtVotingPhase, Data: map[string]string{"voteType": string(game.VoteContinue)}})
		return
	}
	r.sess.AdvanceTurn()
	r.broadcast(Outbound{Type: EvtTurnUpdate, Data: map[string]string{
		"currentTurn": r.sess.CurrentTurnID(),
	}})
}

func (r *Room) handleVote(msg CastVote) {
	if err := r.sess.CastBallot(msg.From, msg.Kind, msg.Choice); err != nil {
		r.sendError(msg.ConnID, err)
		return
	}
	if !r.sess.BallotsComplete(msg.Kind) {
		return
	}

	switch {
	case msg.Kind == game.VoteContinue && r.sess.Phase == game.PhaseVoteContinue:
		r.resolveContinueVote()
	case msg.Kind == game.VoteImposter && r.sess.Phase == game.PhaseVoteImposter:
		r.resolveImposterVote()
	}
}

func (r *Room) resolveContinueVote() {
	res := r.sess.ResolveContinueBallots()
	if res.Decision == game.ChoiceContinue && r.sess.Round() < r.sess.Settings.MaxRounds {
		r.sess.NextRound()
		r.broadcastNextRound()
		return
	}
	// Either the room voted to accuse, or the rounds have run out.
	r.sess.BeginImposterVote()
	r.broadcast(Outbound{Type: EvtVotingPhase, Data: map[string]string{"voteType": string(game.VoteImposter)}})
}

func (r *Room) resolveImposterVote() {
	res := r.sess.ResolveImposterBallots()
	r.broadcast(Outbound{Type: EvtVoteResults, Data: res})

	if len(res.Caught) > 0 {
		r.sess.BeginFinalStatements()
		if r.sess.AllFinalStatementsIn() {
			// Every caught imposter already gave a statement in an earlier
			// round (a re-accusation adds nobody new), so there is no
			// eligible speaker to wait for.
			r.finishFinalStatements()
			return
		}
		r.broadcast(Outbound{Type: EvtFinalStatementPhase})
		return
	}

	if outcome, decided := r.sess.EvaluateOutcome(); decided {
		r.broadcast(Outbound{Type: EvtGameEnded, Data: outcome})
		return
	}
	if r.sess.Round() >= r.sess.Settings.MaxRounds {
		// Last accusation missed: the imposters have run out the clock.
		outcome := r.sess.Finish(game.WinnersImposters)
		r.broadcast(Outbound{Type: EvtGameEnded, Data: outcome})
		return
	}
	r.sess.NextRound()
	r.broadcastNextRound()
}

func (r *Room) handleFinalStatement(msg SendFinalStatement) {
	st, err := r.sess.RecordFinalStatement(msg.From, msg.Text)
	if err != nil {
		r.sendError(msg.ConnID, err)
		return
	}
	r.broadcast(Outbound{Type: EvtNewFinalStatement, Data: st})

	if !r.sess.AllFinalStatementsIn() {
		return
	}
	r.finishFinalStatements()
}

func (r *Room) finishFinalStatements() {
	if outcome, decided := r.sess.EvaluateOutcome(); decided {
		r.broadcast(Outbound{Type: EvtGameEnded, Data: outcome})
		return
	}
	// Imposters remain and rounds are left: play on.
	r.sess.NextRound()
	r.broadcastNextRound()
}

func (r *Room) broadcastNextRound() {
	r.broadcast(Outbound{Type: EvtContinuePlaying, Data: map[string]any{
		"round":       r.sess.Round(),
		"currentTurn": r.sess.CurrentTurnID(),
	}})
}

func (r *Room) handleNewGame(msg NewGame) {
	if !r.sess.IsOwner(msg.From) {
		r.sendError(msg.ConnID, game.ErrNotOwner)
		return
	}
	r.sess.Reset()
	r.broadcast(Outbound{Type: EvtGameReset, Data: map[string]any{
		"status":  r.sess.Phase,
		"players": r.sess.Roster(),
	}})
}
