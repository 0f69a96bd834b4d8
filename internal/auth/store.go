package auth

import (
	"sync"

	"github.com/agentdesk/chatlink/internal/model"
)

// Store is the injected credential cache capability. An absent credential is
// a valid state requiring re-authentication, not an error.
type Store interface {
	// Get returns the cached credential for a subject, ok=false when absent.
	Get(subjectID string) (model.Credential, bool, error)

	// Put caches a credential, replacing any previous one for the subject.
	Put(cred model.Credential) error

	// Clear discards the cached credential for a subject (sign-out).
	Clear(subjectID string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]model.Credential
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]model.Credential)}
}

func (s *MemoryStore) Get(subjectID string) (model.Credential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[subjectID]
	return cred, ok, nil
}

func (s *MemoryStore) Put(cred model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.SubjectID] = cred
	return nil
}

func (s *MemoryStore) Clear(subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, subjectID)
	return nil
}
