package memory

import (
	"sync"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// Registry is an in-memory implementation of app.DuelRegistry.
type Registry struct {
	mu            sync.RWMutex
	duels         map[string]*app.Session
	byParticipant map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		duels:         make(map[string]*app.Session),
		byParticipant: make(map[string]string),
	}
}

func (r *Registry) Create(session *app.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	players := session.Players()
	for _, p := range players {
		if _, busy := r.byParticipant[p.ID]; busy {
			return domain.ErrParticipantBusy
		}
	}
	r.duels[session.ID()] = session
	for _, p := range players {
		r.byParticipant[p.ID] = session.ID()
	}
	return nil
}

func (r *Registry) Get(duelID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.duels[duelID]
	return session, ok
}

func (r *Registry) LookupByParticipant(participantID string) (*app.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	duelID, ok := r.byParticipant[participantID]
	if !ok {
		return nil, domain.ErrNotInDuel
	}
	return r.duels[duelID], nil
}

func (r *Registry) Busy(participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byParticipant[participantID]
	return ok
}

// Remove drops the duel and both participant entries. Removing twice is a no-op.
func (r *Registry) Remove(duelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.duels[duelID]
	if !ok {
		return
	}
	delete(r.duels, duelID)
	for _, p := range session.Players() {
		if r.byParticipant[p.ID] == duelID {
			delete(r.byParticipant, p.ID)
		}
	}
}

// Touch is a no-op; in-process entries do not expire.
func (r *Registry) Touch(string) {}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.duels)
}
