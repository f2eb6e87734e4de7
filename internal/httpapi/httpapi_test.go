package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parlorgames/imposter-backend/internal/config"
	"github.com/parlorgames/imposter-backend/internal/registry"
	"github.com/parlorgames/imposter-backend/internal/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := registry.New(ctx, 4*time.Hour, zap.NewNop())
	cfg := &config.Config{
		Port:          0,
		AllowedOrigin: "http://localhost:5173",
		PublicURL:     "http://localhost:5173",
		SessionMaxAge: 4 * time.Hour,
	}
	srv := httptest.NewServer(SetupRoutes(reg, cfg, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func createParty(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/games", types.CreateGameRequest{Username: "alice", Fingerprint: "fp-a"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	res := decode[types.CreateGameResponse](t, resp)
	if !res.Success || len(res.PartyCode) != 6 {
		t.Fatalf("create response: %+v", res)
	}
	return res.PartyCode
}

func TestCreateAndJoinFlow(t *testing.T) {
	srv := newTestServer(t)
	code := createParty(t, srv)

	resp := postJSON(t, srv.URL+"/api/games/"+code+"/join", types.JoinGameRequest{Username: "bob", Fingerprint: "fp-b"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: status %d", resp.StatusCode)
	}
	join := decode[types.JoinGameResponse](t, resp)
	if !join.Success || join.PlayerID != "fp-b" {
		t.Fatalf("join response: %+v", join)
	}

	resp, err := http.Get(srv.URL + "/api/games/" + code)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	state := decode[struct {
		Success bool `json:"success"`
		Game    struct {
			PlayerCount int    `json:"playerCount"`
			Status      string `json:"status"`
		} `json:"game"`
	}](t, resp)
	if state.Game.PlayerCount != 2 || state.Game.Status != "waiting" {
		t.Fatalf("public state: %+v", state)
	}
}

func TestJoinUnknownCode(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/games/NOPE99/join", types.JoinGameRequest{Username: "bob", Fingerprint: "fp-b"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestJoinFullParty(t *testing.T) {
	srv := newTestServer(t)
	code := createParty(t, srv)

	for i := 1; i < 10; i++ {
		resp := postJSON(t, srv.URL+"/api/games/"+code+"/join",
			types.JoinGameRequest{Username: fmt.Sprintf("p%d", i), Fingerprint: fmt.Sprintf("fp%d", i)})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("join %d: status %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := postJSON(t, srv.URL+"/api/games/"+code+"/join", types.JoinGameRequest{Username: "late", Fingerprint: "fp-late"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409 for full party, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLeaveBeforeStart(t *testing.T) {
	srv := newTestServer(t)
	code := createParty(t, srv)

	resp := postJSON(t, srv.URL+"/api/games/"+code+"/join", types.JoinGameRequest{Username: "bob", Fingerprint: "fp-b"})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/games/"+code+"/leave", types.LeaveGameRequest{Fingerprint: "fp-b"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leave: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/games/" + code)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	state := decode[struct {
		Game struct {
			PlayerCount int `json:"playerCount"`
		} `json:"game"`
	}](t, resp)
	if state.Game.PlayerCount != 1 {
		t.Fatalf("want 1 player after leave, got %d", state.Game.PlayerCount)
	}
}

func TestExistsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	code := createParty(t, srv)

	for path, want := range map[string]bool{
		"/api/games/" + code + "/exists": true,
		"/api/games/ZZZZZZ/exists":       false,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		res := decode[map[string]bool](t, resp)
		if res["exists"] != want {
			t.Fatalf("%s: exists=%v, want %v", path, res["exists"], want)
		}
	}
}

func TestQRCodeEndpoint(t *testing.T) {
	srv := newTestServer(t)
	code := createParty(t, srv)

	resp, err := http.Get(srv.URL + "/api/games/" + code + "/qr")
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("qr: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("qr content type: %q", ct)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/games", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight: status %d", resp.StatusCode)
	}
	if o := resp.Header.Get("Access-Control-Allow-Origin"); o != "http://localhost:5173" {
		t.Fatalf("allow-origin: %q", o)
	}
}
