package game

import (
	"errors"
	"math/rand"
	"slices"
	"time"
)

var ErrAlreadyStarted = errors.New("game already started")
var ErrInProgress = errors.New("game in progress")
var ErrFull = errors.New("game is full")
var ErrTooFewPlayers = errors.New("need at least 3 players to start")
var ErrNotParticipant = errors.New("player not found")
var ErrNotOwner = errors.New("only the party leader can do that")
var ErrNotYourTurn = errors.New("not your turn")
var ErrWrongPhase = errors.New("not allowed in this phase")
var ErrIneligible = errors.New("you cannot send a final message")
var ErrAlreadySubmitted = errors.New("final message already sent")

type Phase string

const (
	PhaseWaiting         Phase = "waiting"
	PhaseActive          Phase = "active"
	PhaseVoteContinue    Phase = "vote-continue"
	PhaseVoteImposter    Phase = "vote-imposter"
	PhaseFinalStatements Phase = "final-statements"
	PhaseEnded           Phase = "ended"
)

type Role string

const (
	RoleCrewmate Role = "crewmate"
	RoleImposter Role = "imposter"
)

type VoteKind string

const (
	VoteContinue VoteKind = "continue"
	VoteImposter VoteKind = "imposter"
)

// Choices for a continue-vote ballot. An imposter-vote ballot's choice is
// the target's fingerprint.
const (
	ChoiceContinue = "continue"
	ChoiceVote     = "vote"
)

const (
	WinnersCrewmates = "crewmates"
	WinnersImposters = "imposters"
)

const (
	MaxParticipants = 10
	MinParticipants = 3
)

type Settings struct {
	ImposterCount int `json:"imposterCount"`
	MaxRounds     int `json:"maxRounds"`
}

type Participant struct {
	ID        string `json:"fingerprint"`
	Name      string `json:"username"`
	IsOwner   bool   `json:"isLeader"`
	Connected bool   `json:"connected"`
	Role      Role   `json:"role,omitempty"`
}

type ChatEntry struct {
	ParticipantID string    `json:"fingerprint"`
	Name          string    `json:"username"`
	Text          string    `json:"message"`
	Round         int       `json:"round"`
	SentAt        time.Time `json:"sentAt"`
}

type FinalStatement struct {
	ParticipantID string    `json:"fingerprint"`
	Name          string    `json:"username"`
	Text          string    `json:"message"`
	SentAt        time.Time `json:"sentAt"`
}

type Outcome struct {
	Winners    string   `json:"winners"`
	Imposters  []string `json:"imposters"`
	SecretWord string   `json:"word"`
}

type ballotKey struct {
	kind  VoteKind
	voter string
}

// Session is one room's game. It is not safe for concurrent use: all
// mutation must be serialized by the owning room actor.
type Session struct {
	Code      string
	Phase     Phase
	Settings  Settings
	CreatedAt time.Time

	participants map[string]*Participant
	joinOrder    []string

	secretWord      string
	imposterIDs     []string
	turnOrder       []string
	currentTurn     int
	round           int
	transcript      []ChatEntry
	ballots         map[ballotKey]string
	caught          []string
	finalStatements []FinalStatement
	outcome         *Outcome
}

func NewSession(code string, now time.Time) *Session {
	return &Session{
		Code:         code,
		Phase:        PhaseWaiting,
		Settings:     Settings{ImposterCount: 1, MaxRounds: 3},
		CreatedAt:    now,
		participants: make(map[string]*Participant),
		round:        1,
		ballots:      make(map[ballotKey]string),
	}
}

// AddParticipant registers a player. Re-adding a known id is a no-op so
// rejoins are idempotent. The first player to join owns the session.
func (s *Session) AddParticipant(name, id string) error {
	if _, ok := s.participants[id]; ok {
		return nil
	}
	if s.Phase != PhaseWaiting {
		return ErrInProgress
	}
	if len(s.participants) >= MaxParticipants {
		return ErrFull
	}
	s.participants[id] = &Participant{
		ID:        id,
		Name:      name,
		IsOwner:   len(s.participants) == 0,
		Connected: true,
	}
	s.joinOrder = append(s.joinOrder, id)
	return nil
}

// RemoveParticipant drops a player before the game starts. If the owner
// leaves, ownership passes to the next player in join order.
func (s *Session) RemoveParticipant(id string) error {
	if s.Phase != PhaseWaiting {
		return ErrInProgress
	}
	p, ok := s.participants[id]
	if !ok {
		return nil
	}
	delete(s.participants, id)
	s.joinOrder = slices.DeleteFunc(s.joinOrder, func(v string) bool { return v == id })
	if p.IsOwner && len(s.joinOrder) > 0 {
		s.participants[s.joinOrder[0]].IsOwner = true
	}
	return nil
}

func (s *Session) SetConnected(id string, connected bool) bool {
	p, ok := s.participants[id]
	if !ok {
		return false
	}
	p.Connected = connected
	return true
}

func (s *Session) Participant(id string) (*Participant, bool) {
	p, ok := s.participants[id]
	return p, ok
}

// Participants returns players in join order.
func (s *Session) Participants() []*Participant {
	out := make([]*Participant, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		out = append(out, s.participants[id])
	}
	return out
}

func (s *Session) Count() int { return len(s.participants) }

func (s *Session) IsOwner(id string) bool {
	p, ok := s.participants[id]
	return ok && p.IsOwner
}

// UpdateSettings merges the positive fields of in. Settings are frozen once
// the game starts.
func (s *Session) UpdateSettings(in Settings) error {
	if s.Phase != PhaseWaiting {
		return ErrInProgress
	}
	if in.ImposterCount > 0 {
		s.Settings.ImposterCount = in.ImposterCount
	}
	if in.MaxRounds > 0 {
		s.Settings.MaxRounds = in.MaxRounds
	}
	return nil
}

// Start deals roles and the turn order and moves the session to the active
// phase. An imposter count above floor(n/2)-1 is clamped silently, never
// rejected, so imposters always stay strictly short of a majority.
func (s *Session) Start(override *Settings, rng *rand.Rand) error {
	if s.Phase != PhaseWaiting {
		return ErrAlreadyStarted
	}
	if len(s.participants) < MinParticipants {
		return ErrTooFewPlayers
	}
	if override != nil {
		if err := s.UpdateSettings(*override); err != nil {
			return err
		}
	}

	maxImposters := len(s.participants)/2 - 1
	if maxImposters < 1 {
		maxImposters = 1
	}
	if s.Settings.ImposterCount > maxImposters {
		s.Settings.ImposterCount = maxImposters
	}

	s.secretWord = Words[rng.Intn(len(Words))]

	shuffled := shuffledIDs(s.joinOrder, rng)
	s.imposterIDs = shuffled[:s.Settings.ImposterCount]
	for id, p := range s.participants {
		if slices.Contains(s.imposterIDs, id) {
			p.Role = RoleImposter
		} else {
			p.Role = RoleCrewmate
		}
	}

	// Independent shuffle: turn order must not correlate with roles.
	s.turnOrder = shuffledIDs(s.joinOrder, rng)
	s.currentTurn = 0
	s.round = 1
	s.transcript = nil
	clear(s.ballots)
	s.caught = nil
	s.finalStatements = nil
	s.outcome = nil
	s.Phase = PhaseActive
	return nil
}

func (s *Session) Round() int { return s.round }

func (s *Session) SecretWord() string { return s.secretWord }

func (s *Session) Imposters() []string { return slices.Clone(s.imposterIDs) }

func (s *Session) TurnOrder() []string { return slices.Clone(s.turnOrder) }

// CurrentTurnID returns the fingerprint whose turn it is, or "" outside the
// active lifetime.
func (s *Session) CurrentTurnID() string {
	if len(s.turnOrder) == 0 {
		return ""
	}
	return s.turnOrder[s.currentTurn]
}

// RecordChat appends a transcript entry for the current round. Only the
// participant at the current turn slot may speak, and only while active.
func (s *Session) RecordChat(id, text string) (ChatEntry, error) {
	p, ok := s.participants[id]
	if !ok {
		return ChatEntry{}, ErrNotParticipant
	}
	if s.Phase != PhaseActive {
		return ChatEntry{}, ErrWrongPhase
	}
	if s.CurrentTurnID() != id {
		return ChatEntry{}, ErrNotYourTurn
	}
	entry := ChatEntry{
		ParticipantID: id,
		Name:          p.Name,
		Text:          text,
		Round:         s.round,
		SentAt:        time.Now(),
	}
	s.transcript = append(s.transcript, entry)
	return entry, nil
}

// RoundComplete reports whether everyone has spoken this round. Completion
// is counted by volume, not identity: the round ends once the transcript
// holds one entry per seat for the current round.
func (s *Session) RoundComplete() bool {
	n := 0
	for _, c := range s.transcript {
		if c.Round == s.round {
			n++
		}
	}
	return n >= len(s.participants)
}

// AdvanceTurn rotates to the next slot. Disconnected players are not
// skipped; the turn waits on them.
func (s *Session) AdvanceTurn() {
	s.currentTurn = (s.currentTurn + 1) % len(s.turnOrder)
}

func (s *Session) BeginContinueVote() { s.Phase = PhaseVoteContinue }

func (s *Session) BeginImposterVote() { s.Phase = PhaseVoteImposter }

func (s *Session) BeginFinalStatements() { s.Phase = PhaseFinalStatements }

// NextRound clears the round's ballots and hands the turn back to the first
// slot.
func (s *Session) NextRound() {
	s.round++
	s.currentTurn = 0
	clear(s.ballots)
	s.Phase = PhaseActive
}

// CastBallot records a vote, overwriting any earlier ballot of the same
// kind from the same voter.
func (s *Session) CastBallot(id string, kind VoteKind, choice string) error {
	if _, ok := s.participants[id]; !ok {
		return ErrNotParticipant
	}
	s.ballots[ballotKey{kind: kind, voter: id}] = choice
	return nil
}

// BallotsComplete reports whether every seat has voted. Disconnected
// players still count toward the quorum and can stall it.
func (s *Session) BallotsComplete(kind VoteKind) bool {
	n := 0
	for k := range s.ballots {
		if k.kind == kind {
			n++
		}
	}
	return n >= len(s.participants)
}

type ContinueResult struct {
	Decision      string `json:"decision"`
	ContinueVotes int    `json:"continueVotes"`
	StopVotes     int    `json:"stopVotes"`
}

// ResolveContinueBallots tallies the continue vote. Ties go to "vote":
// continuing requires a strict majority.
func (s *Session) ResolveContinueBallots() ContinueResult {
	res := ContinueResult{Decision: ChoiceVote}
	for k, choice := range s.ballots {
		if k.kind != VoteContinue {
			continue
		}
		if choice == ChoiceContinue {
			res.ContinueVotes++
		} else {
			res.StopVotes++
		}
	}
	if res.ContinueVotes > res.StopVotes {
		res.Decision = ChoiceContinue
	}
	return res
}

type ImposterResult struct {
	Votes     map[string]int `json:"votes"`
	Imposters []string       `json:"imposters"`
	Caught    []string       `json:"caught"`
	VotedOut  []string       `json:"votedOut"`
}

// ResolveImposterBallots tallies the accusation vote. Every target sharing
// the maximum count is voted out; a tie never picks randomly. The caught
// subset accumulates into the session's caught set. The full imposter list
// is part of the result and is revealed after every accusation round,
// successful or not.
func (s *Session) ResolveImposterBallots() ImposterResult {
	counts := make(map[string]int)
	for k, target := range s.ballots {
		if k.kind == VoteImposter {
			counts[target]++
		}
	}

	max := 0
	var votedOut []string
	for target, n := range counts {
		if n > max {
			max = n
			votedOut = []string{target}
		} else if n == max {
			votedOut = append(votedOut, target)
		}
	}
	slices.Sort(votedOut)

	var caught []string
	for _, id := range votedOut {
		if slices.Contains(s.imposterIDs, id) {
			caught = append(caught, id)
			if !slices.Contains(s.caught, id) {
				s.caught = append(s.caught, id)
			}
		}
	}

	return ImposterResult{
		Votes:     counts,
		Imposters: slices.Clone(s.imposterIDs),
		Caught:    caught,
		VotedOut:  votedOut,
	}
}

func (s *Session) CaughtImposters() []string { return slices.Clone(s.caught) }

// RecordFinalStatement takes a caught imposter's last words, once each.
func (s *Session) RecordFinalStatement(id, text string) (FinalStatement, error) {
	p, ok := s.participants[id]
	if !ok {
		return FinalStatement{}, ErrNotParticipant
	}
	if s.Phase != PhaseFinalStatements {
		return FinalStatement{}, ErrWrongPhase
	}
	if !slices.Contains(s.caught, id) {
		return FinalStatement{}, ErrIneligible
	}
	for _, st := range s.finalStatements {
		if st.ParticipantID == id {
			return FinalStatement{}, ErrAlreadySubmitted
		}
	}
	st := FinalStatement{
		ParticipantID: id,
		Name:          p.Name,
		Text:          text,
		SentAt:        time.Now(),
	}
	s.finalStatements = append(s.finalStatements, st)
	return st, nil
}

func (s *Session) AllFinalStatementsIn() bool {
	return len(s.finalStatements) >= len(s.caught)
}

// EvaluateOutcome decides the game if it can: crewmates win once every
// imposter is caught, imposters win once the round count has run past the
// limit. Otherwise it decides nothing and the caller routes to the next
// round.
func (s *Session) EvaluateOutcome() (*Outcome, bool) {
	remaining := 0
	for _, id := range s.imposterIDs {
		if !slices.Contains(s.caught, id) {
			remaining++
		}
	}
	switch {
	case remaining == 0:
		return s.Finish(WinnersCrewmates), true
	case s.round > s.Settings.MaxRounds:
		return s.Finish(WinnersImposters), true
	default:
		return nil, false
	}
}

// Finish ends the game with the given winning side.
func (s *Session) Finish(winners string) *Outcome {
	s.Phase = PhaseEnded
	s.outcome = &Outcome{
		Winners:    winners,
		Imposters:  slices.Clone(s.imposterIDs),
		SecretWord: s.secretWord,
	}
	return s.outcome
}

func (s *Session) Outcome() *Outcome { return s.outcome }

// Reset clears everything game-specific and returns to the waiting phase.
// Players keep their seats and connection flags.
func (s *Session) Reset() {
	s.Phase = PhaseWaiting
	s.secretWord = ""
	s.imposterIDs = nil
	s.turnOrder = nil
	s.currentTurn = 0
	s.round = 1
	s.transcript = nil
	clear(s.ballots)
	s.caught = nil
	s.finalStatements = nil
	s.outcome = nil
	for _, p := range s.participants {
		p.Role = ""
	}
}
