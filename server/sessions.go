package server

import (
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"blog_visual_assistant/workflow"
)

// Workflow progress is in-memory only; a session that goes idle for two
// hours is dropped together with its engine.
const (
	sessionTTL     = 2 * time.Hour
	sessionCleanup = 10 * time.Minute
)

type sessionStore struct {
	c *cache.Cache
}

func newStore() *sessionStore {
	return &sessionStore{c: cache.New(sessionTTL, sessionCleanup)}
}

func newSessionID() string {
	return uuid.NewString()
}

func (s *sessionStore) set(id string, eng *workflow.Engine) {
	s.c.SetDefault(id, eng)
}

// get also slides the expiry so an active session stays alive.
func (s *sessionStore) get(id string) (*workflow.Engine, bool) {
	v, ok := s.c.Get(id)
	if !ok {
		return nil, false
	}
	s.c.SetDefault(id, v)
	return v.(*workflow.Engine), true
}
