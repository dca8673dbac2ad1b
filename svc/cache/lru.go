package cache

import (
	"errors"

	"codebin/pkg/domain"

	lru "github.com/hashicorp/golang-lru/v2"
)

const maxSize = 100000

// LRU keeps recently read pastes in process. Entries need no expiry because
// pastes are immutable and never deleted.
type LRU struct {
	c *lru.Cache[string, *domain.Paste]
}

func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if size > maxSize {
		return nil, errors.New("cache size too large")
	}
	c, err := lru.New[string, *domain.Paste](size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

func (l *LRU) Get(id string) (*domain.Paste, bool) {
	return l.c.Get(id)
}

func (l *LRU) Add(p *domain.Paste) {
	l.c.Add(p.ID, p)
}

func (l *LRU) Len() int {
	return l.c.Len()
}
