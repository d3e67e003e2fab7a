package stratum

import "sync"

// session holds the mutable state of one pool connection. extranonce1
// and extranonce2Size are fixed by the subscribe response and only
// change on resubscribe (spec §3 Session invariant).
type session struct {
	mu sync.RWMutex

	extraNonce1     []byte
	extraNonce2Size uint
	difficulty      float64
	authorized      bool
	nextRequestID   uint64
}

func (s *session) setSubscription(extraNonce1 []byte, extraNonce2Size uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extraNonce1 = extraNonce1
	s.extraNonce2Size = extraNonce2Size
}

func (s *session) subscription() ([]byte, uint) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extraNonce1, s.extraNonce2Size
}

func (s *session) setAuthorized(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized = ok
}

func (s *session) isAuthorized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorized
}

func (s *session) setDifficulty(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.difficulty = d
}

func (s *session) currentDifficulty() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.difficulty == 0 {
		return 1
	}
	return s.difficulty
}

// allocateRequestID returns the next monotonic request ID.
func (s *session) allocateRequestID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextRequestID
	s.nextRequestID++
	return id
}

// reset clears subscription and auth state on reconnect, without
// disturbing the mutex or the monotonic request ID counter.
func (s *session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extraNonce1 = nil
	s.extraNonce2Size = 0
	s.difficulty = 0
	s.authorized = false
}
