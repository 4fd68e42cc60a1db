package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/stockroom/internal/core"
)

func TestSessionStore(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	st := newSessionStore(time.Hour)
	st.now = func() time.Time { return now }

	ana := core.Actor{ID: 1, Username: "ana"}
	token := st.Create(ana)
	if token == "" {
		t.Fatal("empty token")
	}

	got, ok := st.Lookup(token)
	if !ok || got != ana {
		t.Fatalf("Lookup = %+v, %v; want ana", got, ok)
	}
	if _, ok := st.Lookup("unknown"); ok {
		t.Error("unknown token accepted")
	}

	now = now.Add(61 * time.Minute)
	if _, ok := st.Lookup(token); ok {
		t.Error("expired session accepted")
	}
	if st.Len() != 0 {
		t.Errorf("Len = %d, want expired session removed", st.Len())
	}
}

func TestSessionStoreSweepsOnCreate(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	st := newSessionStore(time.Minute)
	st.now = func() time.Time { return now }

	st.Create(core.Actor{ID: 1})
	st.Create(core.Actor{ID: 2})
	now = now.Add(2 * time.Minute)
	st.Create(core.Actor{ID: 3})

	if st.Len() != 1 {
		t.Errorf("Len = %d, want only the fresh session", st.Len())
	}
}

func TestSessionStoreDelete(t *testing.T) {
	st := newSessionStore(0)
	if st.ttl != 12*time.Hour {
		t.Errorf("default ttl = %v, want 12h", st.ttl)
	}
	token := st.Create(core.Actor{ID: 1})
	st.Delete(token)
	if _, ok := st.Lookup(token); ok {
		t.Error("deleted session accepted")
	}
}

type fakeAccounts map[int]*core.User

func (f fakeAccounts) UserByID(_ context.Context, id int) (*core.User, error) {
	if id == 99 {
		return nil, errors.New("connection refused")
	}
	u, ok := f[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func TestLookupSessionReloadsAccount(t *testing.T) {
	s := newTestServer(t)
	accounts := fakeAccounts{
		1: {ID: 1, Username: "ana", FullName: "Ana", Role: core.RoleUser, Active: true},
		2: {ID: 2, Username: "luis", Role: core.RoleAdmin, Active: false},
	}
	s.accounts = accounts
	ctx := context.Background()

	// Role was admin at login and has since been lowered.
	token := s.sessions.Create(core.Actor{ID: 1, Username: "ana", Role: core.RoleAdmin})
	got, ok := s.lookupSession(ctx, token)
	if !ok || got.Role != core.RoleUser || got.Name != "Ana" {
		t.Fatalf("lookupSession = %+v, %v; want reloaded usuario actor", got, ok)
	}

	tests := []struct {
		name     string
		actor    core.Actor
		wantKept bool
	}{
		{"deactivated account", core.Actor{ID: 2, Username: "luis", Role: core.RoleAdmin}, false},
		{"deleted account", core.Actor{ID: 7, Username: "gone"}, false},
		{"database error keeps the session", core.Actor{ID: 99, Username: "ana"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := s.sessions.Create(tt.actor)
			if _, ok := s.lookupSession(ctx, token); ok {
				t.Fatal("session accepted")
			}
			if _, kept := s.sessions.Lookup(token); kept != tt.wantKept {
				t.Errorf("session kept = %v, want %v", kept, tt.wantKept)
			}
		})
	}
}

func TestDeactivatedUserLosesAccess(t *testing.T) {
	s := newTestServer(t)
	s.accounts = fakeAccounts{2: {ID: 2, Username: "luis", Role: core.RoleAdmin, Active: false}}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	s.loginAs(req, core.Actor{ID: 2, Username: "luis", Role: core.RoleAdmin})
	if rec := serve(s, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
