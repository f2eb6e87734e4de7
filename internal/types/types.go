package types

import "github.com/parlorgames/imposter-backend/internal/game"

// ClientMessage is what a connected player sends over the websocket. The
// session code and fingerprint are bound at connect time, so messages only
// carry the action.
type ClientMessage struct {
	Type     string         `json:"type"` // "start-game" | "send-chat" | "submit-vote" | "send-final-message" | "new-game"
	Settings *game.Settings `json:"settings,omitempty"`
	Message  string         `json:"message,omitempty"`
	VoteType string         `json:"voteType,omitempty"`
	Vote     string         `json:"vote,omitempty"`
}

type CreateGameRequest struct {
	Username    string `json:"username"`
	Fingerprint string `json:"fingerprint"`
}

type CreateGameResponse struct {
	Success   bool   `json:"success"`
	PartyCode string `json:"partyCode"`
	PlayerID  string `json:"playerId"`
}

type JoinGameRequest struct {
	Username    string `json:"username"`
	Fingerprint string `json:"fingerprint"`
}

type JoinGameResponse struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"playerId"`
}

type LeaveGameRequest struct {
	Fingerprint string `json:"fingerprint"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
