package sync

import (
	stdsync "sync"
	"time"
)

// State is the per-session sync context: the cached user identity and the
// snapshot currently shown to the user. Identity is mutated only through the
// authentication lifecycle hooks; nothing else may infer it.
type State struct {
	mu        stdsync.RWMutex
	userID    string
	displayed snapshot
}

type snapshot struct {
	content   string
	updatedAt time.Time
}

func NewState() *State {
	return &State{}
}

func (s *State) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

func (s *State) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Clear drops the cached identity and the displayed snapshot. A new sign-in
// must never reuse a stale identity to reach another account's data.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.displayed = snapshot{}
}

func (s *State) Displayed() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayed.content, s.displayed.updatedAt
}

func (s *State) SetDisplayed(content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayed = snapshot{content: content, updatedAt: at}
}
