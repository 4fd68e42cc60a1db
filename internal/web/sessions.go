package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/google/uuid"
)

// sessionStore keeps browser sessions in memory. Tokens are random uuids;
// a restart logs everybody out.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]session
	now      func() time.Time
}

type session struct {
	actor   core.Actor
	expires time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &sessionStore{
		ttl:      ttl,
		sessions: make(map[string]session),
		now:      time.Now,
	}
}

// Create starts a session for a and returns its token. Expired sessions
// are swept on the way.
func (st *sessionStore) Create(a core.Actor) string {
	token := uuid.NewString()

	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	for t, sess := range st.sessions {
		if now.After(sess.expires) {
			delete(st.sessions, t)
		}
	}
	st.sessions[token] = session{actor: a, expires: now.Add(st.ttl)}
	return token
}

// Lookup returns the actor of a live session.
func (st *sessionStore) Lookup(token string) (core.Actor, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[token]
	if !ok {
		return core.Actor{}, false
	}
	if st.now().After(sess.expires) {
		delete(st.sessions, token)
		return core.Actor{}, false
	}
	return sess.actor, true
}

// Delete ends a session.
func (st *sessionStore) Delete(token string) {
	st.mu.Lock()
	delete(st.sessions, token)
	st.mu.Unlock()
}

// Len returns the number of stored sessions, expired ones included.
func (st *sessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// accountSource reloads the account behind a session.
type accountSource interface {
	UserByID(ctx context.Context, id int) (*core.User, error)
}

// lookupSession resolves a session cookie and reloads its account, so a
// deactivation or role change applies on the next request instead of
// when the session expires. Sessions of missing or inactive accounts are
// ended.
func (s *Server) lookupSession(ctx context.Context, token string) (core.Actor, bool) {
	a, ok := s.sessions.Lookup(token)
	if !ok || s.accounts == nil {
		return a, ok
	}

	u, err := s.accounts.UserByID(ctx, a.ID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		s.sessions.Delete(token)
		return core.Actor{}, false
	case err != nil:
		slog.Warn("session account reload failed", "user_id", a.ID, "error", err)
		return core.Actor{}, false
	case !u.Active:
		slog.Info("session ended for inactive account", "user_id", a.ID)
		s.sessions.Delete(token)
		return core.Actor{}, false
	}
	return u.Actor(), true
}
