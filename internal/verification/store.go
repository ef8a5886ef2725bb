package verification

import "sync"

// PendingSignup is the signup payload parked until its code is confirmed.
// The password is held in plaintext only inside the transient store.
type PendingSignup struct {
	Email    string
	Username string
	Password string
}

// CodeStore keeps the transient email→code and email→pending-signup mappings
// for the code strategy. Implementations must be safe for concurrent use.
type CodeStore interface {
	SetCode(email, code string)
	SetPending(email string, p PendingSignup)
	Code(email string) (string, bool)
	Pending(email string) (PendingSignup, bool)
	// Delete removes both mappings for the email.
	Delete(email string)
	// ScanCodes visits every stored (email, code) pair until fn returns false.
	ScanCodes(fn func(email, code string) bool)
}

// MemoryStore is the in-process CodeStore. Entries live only for the process
// lifetime and are not shared across instances; a multi-instance deployment
// needs an external store behind the same interface.
type MemoryStore struct {
	mu      sync.Mutex
	codes   map[string]string
	pending map[string]PendingSignup
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes:   make(map[string]string),
		pending: make(map[string]PendingSignup),
	}
}

func (s *MemoryStore) SetCode(email, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = code
}

func (s *MemoryStore) SetPending(email string, p PendingSignup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[email] = p
}

func (s *MemoryStore) Code(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[email]
	return code, ok
}

func (s *MemoryStore) Pending(email string) (PendingSignup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[email]
	return p, ok
}

func (s *MemoryStore) Delete(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, email)
	delete(s.pending, email)
}

func (s *MemoryStore) ScanCodes(fn func(email, code string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, code := range s.codes {
		if !fn(email, code) {
			return
		}
	}
}
