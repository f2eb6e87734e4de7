package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/parlorgames/imposter-backend/internal/game"
	"github.com/parlorgames/imposter-backend/internal/registry"
	"github.com/parlorgames/imposter-backend/internal/room"
	"github.com/parlorgames/imposter-backend/internal/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

// statusFor maps the session's sentinel errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotParticipant):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, game.ErrFull), errors.Is(err, game.ErrInProgress),
		errors.Is(err, game.ErrAlreadyStarted):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func getRoom(reg *registry.Registry, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	reg.Inbox() <- registry.Get{Code: code, Reply: reply}
	return <-reply
}

func CreateGame(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Fingerprint == "" {
			writeError(w, http.StatusBadRequest, "username and fingerprint are required")
			return
		}

		reply := make(chan registry.CreateReply, 1)
		reg.Inbox() <- registry.Create{OwnerName: req.Username, OwnerID: req.Fingerprint, Reply: reply}
		res := <-reply
		if res.Err != nil {
			log.Error("create game failed", zap.Error(res.Err))
			writeError(w, http.StatusInternalServerError, "failed to create game")
			return
		}

		writeJSON(w, http.StatusCreated, types.CreateGameResponse{
			Success:   true,
			PartyCode: res.Code,
			PlayerID:  req.Fingerprint,
		})
	}
}

func JoinGame(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		var req types.JoinGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Fingerprint == "" {
			writeError(w, http.StatusBadRequest, "username and fingerprint are required")
			return
		}

		rm := getRoom(reg, code)
		if rm == nil {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}

		reply := make(chan error, 1)
		rm.Inbox() <- room.AddPlayer{Name: req.Username, ID: req.Fingerprint, Reply: reply}
		if err := <-reply; err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, types.JoinGameResponse{Success: true, PlayerID: req.Fingerprint})
	}
}

func LeaveGame(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		var req types.LeaveGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Fingerprint == "" {
			writeError(w, http.StatusBadRequest, "fingerprint is required")
			return
		}

		rm := getRoom(reg, code)
		if rm == nil {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}

		reply := make(chan error, 1)
		rm.Inbox() <- room.RemovePlayer{ID: req.Fingerprint, Reply: reply}
		if err := <-reply; err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func GameState(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		rm := getRoom(reg, code)
		if rm == nil {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}

		reply := make(chan game.PublicView, 1)
		rm.Inbox() <- room.GetPublic{Reply: reply}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "game": <-reply})
	}
}

func GameExists(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		writeJSON(w, http.StatusOK, map[string]bool{"exists": getRoom(reg, code) != nil})
	}
}

// GameQR renders a PNG QR code pointing at the join URL, for sharing a
// party across the room with phone cameras.
func GameQR(reg *registry.Registry, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		if getRoom(reg, code) == nil {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}

		png, err := qrcode.Encode(publicURL+"/join/"+code, qrcode.Medium, 256)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to render qr code")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
