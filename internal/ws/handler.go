package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parlorgames/imposter-backend/internal/game"
	"github.com/parlorgames/imposter-backend/internal/registry"
	"github.com/parlorgames/imposter-backend/internal/room"
	"github.com/parlorgames/imposter-backend/internal/types"
)

// Handler upgrades /ws?code=X&fingerprint=F into a room subscription. The
// fingerprint must already be a participant (via the HTTP create/join
// endpoints); the socket only resolves identity and relays actions.
func Handler(reg *registry.Registry, originPatterns []string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		fingerprint := r.URL.Query().Get("fingerprint")
		if code == "" || fingerprint == "" {
			http.Error(w, "missing code or fingerprint", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		reg.Inbox() <- registry.Get{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan room.Outbound, 16)
		connID := uuid.NewString()

		subReply := make(chan error, 1)
		rm.Inbox() <- room.Subscribe{ConnID: connID, ParticipantID: fingerprint, Outbox: out, Reply: subReply}
		if err := <-subReply; err != nil {
			payload, _ := json.Marshal(room.Outbound{Type: "player-not-found", Data: map[string]string{
				"message":   "please join the game first",
				"partyCode": code,
			}})
			_ = conn.Write(r.Context(), websocket.MessageText, payload)
			return
		}
		defer func() { rm.Inbox() <- room.Unsubscribe{ConnID: connID} }()

		log.Debug("socket joined",
			zap.String("code", code),
			zap.String("fingerprint", fingerprint))

		// Writer goroutine: drains the room's outbox for this connection.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ob := range out {
				payload, err := json.Marshal(ob)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 5*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop. No idle deadline: a player may sit through several
		// turns without acting, and the registry's eviction is the only
		// reaper.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			msg, ok := toRoomMsg(cm, connID, fingerprint)
			if !ok {
				writeError(r.Context(), conn, "unknown message type")
				continue
			}
			rm.Inbox() <- msg
		}
	}
}

func toRoomMsg(cm types.ClientMessage, connID, fingerprint string) (room.Msg, bool) {
	switch cm.Type {
	case "start-game":
		return room.StartGame{ConnID: connID, From: fingerprint, Settings: cm.Settings}, true
	case "send-chat":
		return room.SendChat{ConnID: connID, From: fingerprint, Text: cm.Message}, true
	case "submit-vote":
		kind, ok := parseVoteKind(cm.VoteType)
		if !ok {
			return nil, false
		}
		return room.CastVote{ConnID: connID, From: fingerprint, Kind: kind, Choice: cm.Vote}, true
	case "send-final-message":
		return room.SendFinalStatement{ConnID: connID, From: fingerprint, Text: cm.Message}, true
	case "new-game":
		return room.NewGame{ConnID: connID, From: fingerprint}, true
	default:
		return nil, false
	}
}

func parseVoteKind(kind string) (game.VoteKind, bool) {
	switch kind {
	case string(game.VoteContinue):
		return game.VoteContinue, true
	case string(game.VoteImposter):
		return game.VoteImposter, true
	default:
		return "", false
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, message string) {
	payload, _ := json.Marshal(room.Outbound{Type: room.EvtError, Data: map[string]string{
		"code":    "bad-request",
		"message": message,
	}})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
