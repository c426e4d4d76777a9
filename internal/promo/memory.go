package promo

import (
	"context"
	"sync"
)

type memoryCode struct {
	amount   int64
	usesLeft int
	redeemed map[int64]struct{}
}

// MemoryStore keeps promo codes in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]*memoryCode
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]*memoryCode)}
}

func (s *MemoryStore) Create(_ context.Context, code string, amount int64, uses int) error {
	code, err := validateNew(code, amount, uses)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[code]; exists {
		return ErrCodeExists
	}
	s.codes[code] = &memoryCode{amount: amount, usesLeft: uses, redeemed: make(map[int64]struct{})}
	return nil
}

func (s *MemoryStore) Redeem(_ context.Context, code string, userID int64) (int64, error) {
	code, err := Normalize(code)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[code]
	switch {
	case !ok:
		return 0, ErrNotFound
	case hasRedeemed(c, userID):
		return 0, ErrAlreadyRedeemed
	case c.usesLeft <= 0:
		return 0, ErrExhausted
	}

	c.usesLeft--
	c.redeemed[userID] = struct{}{}
	return c.amount, nil
}

func (s *MemoryStore) Release(_ context.Context, code string, userID int64) error {
	code, err := Normalize(code)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[code]
	if !ok {
		return ErrNotFound
	}
	if hasRedeemed(c, userID) {
		delete(c.redeemed, userID)
		c.usesLeft++
	}
	return nil
}

func hasRedeemed(c *memoryCode, userID int64) bool {
	_, ok := c.redeemed[userID]
	return ok
}
