package httpapi

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parlorgames/imposter-backend/internal/config"
	"github.com/parlorgames/imposter-backend/internal/registry"
	"github.com/parlorgames/imposter-backend/internal/ws"
)

func SetupRoutes(reg *registry.Registry, cfg *config.Config, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(cors(cfg.AllowedOrigin))

	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", CreateGame(reg, log))
		r.Post("/{code}/join", JoinGame(reg))
		r.Post("/{code}/leave", LeaveGame(reg))
		r.Get("/{code}", GameState(reg))
		r.Get("/{code}/exists", GameExists(reg))
		r.Get("/{code}/qr", GameQR(reg, cfg.PublicURL))
	})

	r.Get("/health", Health)
	r.Get("/ws", ws.Handler(reg, originPatterns(cfg.AllowedOrigin), log))
	return r
}

// originPatterns converts the CORS origin URL into the host pattern the
// websocket accept check expects.
func originPatterns(origin string) []string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return []string{origin}
	}
	return []string{u.Host}
}

func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
