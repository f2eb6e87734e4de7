package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parlorgames/imposter-backend/internal/room"
)

func create(t *testing.T, reg *Registry, name, id string) CreateReply {
	t.Helper()
	reply := make(chan CreateReply, 1)
	reg.Inbox() <- Create{OwnerName: name, OwnerID: id, Reply: reply}
	select {
	case res := <-reply:
		if res.Err != nil {
			t.Fatalf("create: %v", res.Err)
		}
		return res
	case <-time.After(time.Second):
		t.Fatalf("timed out creating session")
		return CreateReply{} // unreachable
	}
}

func lookup(t *testing.T, reg *Registry, code string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	reg.Inbox() <- Get{Code: code, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out looking up session")
		return nil // unreachable
	}
}

func TestRegistry_CreateThenGetSamePointer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := New(ctx, time.Hour, zap.NewNop())

	res := create(t, reg, "alice", "fp-a")
	if rm := lookup(t, reg, res.Code); rm != res.Room {
		t.Fatalf("expected the same room pointer")
	}
	if lookup(t, reg, "NOPE99") != nil {
		t.Fatalf("unknown code should resolve to nil")
	}
}

func TestRegistry_CodeFormat(t *testing.T) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := New(ctx, time.Hour, zap.NewNop())

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		res := create(t, reg, "alice", "fp-a")
		if len(res.Code) != 6 {
			t.Fatalf("code %q is not 6 chars", res.Code)
		}
		for _, c := range res.Code {
			if !strings.ContainsRune(charset, c) {
				t.Fatalf("code %q contains %q", res.Code, c)
			}
		}
		if seen[res.Code] {
			t.Fatalf("duplicate code %q", res.Code)
		}
		seen[res.Code] = true
	}
}

func TestRegistry_OwnerSeatedOnCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := New(ctx, time.Hour, zap.NewNop())

	res := create(t, reg, "alice", "fp-a")

	reply := make(chan room.ViewReply, 1)
	res.Room.Inbox() <- room.GetView{ID: "fp-a", Reply: reply}
	v := <-reply
	if !v.Found || !v.View.IsLeader {
		t.Fatalf("creator should be seated as leader: %+v", v)
	}
}

func TestRegistry_EvictsStaleOnCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := New(ctx, time.Millisecond, zap.NewNop())

	old := create(t, reg, "alice", "fp-a")
	time.Sleep(10 * time.Millisecond)

	fresh := create(t, reg, "bob", "fp-b")
	if lookup(t, reg, old.Code) != nil {
		t.Fatalf("stale session %q survived the create sweep", old.Code)
	}
	if lookup(t, reg, fresh.Code) == nil {
		t.Fatalf("fresh session missing")
	}
}

func TestRegistry_RemoveShutsDownRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := New(ctx, time.Hour, zap.NewNop())

	res := create(t, reg, "alice", "fp-a")
	reg.Inbox() <- Remove{Code: res.Code}

	if lookup(t, reg, res.Code) != nil {
		t.Fatalf("removed session still resolvable")
	}

	countReply := make(chan int, 1)
	reg.Inbox() <- Count{Reply: countReply}
	if n := <-countReply; n != 0 {
		t.Fatalf("want 0 active sessions, got %d", n)
	}
}
