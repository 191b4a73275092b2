package session

import (
	"sync"

	"groupplay/internal/domain"
)

// lockedRand serializes access to a Rand that is not safe for concurrent use
type lockedRand struct {
	mu *sync.Mutex
	r  domain.Rand
}

func (l lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}
