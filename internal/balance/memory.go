package balance

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

// MemoryStore is an in-process Store. A single mutex linearizes all mutations.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[int64]*domain.Account
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[int64]*domain.Account),
		now:      time.Now,
	}
}

func (s *MemoryStore) Balance(_ context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acc, ok := s.accounts[userID]; ok {
		return acc.Balance, nil
	}
	return 0, nil
}

func (s *MemoryStore) Adjust(_ context.Context, userID int64, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	current := int64(0)
	if ok {
		current = acc.Balance
	}

	if delta > 0 && current > math.MaxInt64-delta {
		return current, ErrBalanceOverflow
	}
	next := current + delta
	if next < 0 {
		return current, ErrInsufficientFunds
	}

	if !ok {
		now := s.now().UTC()
		acc = &domain.Account{UserID: userID, JoinedAt: now, LastSeenAt: now}
		s.accounts[userID] = acc
	}
	acc.Balance = next
	return next, nil
}

func (s *MemoryStore) Upsert(_ context.Context, profile domain.Profile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if acc, ok := s.accounts[profile.UserID]; ok {
		acc.Username = profile.Username
		acc.FirstName = profile.FirstName
		acc.LastSeenAt = now
		return false, nil
	}

	referredBy := profile.ReferredBy
	if referredBy == profile.UserID {
		referredBy = 0
	}
	s.accounts[profile.UserID] = &domain.Account{
		UserID:     profile.UserID,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		ReferredBy: referredBy,
		JoinedAt:   now,
		LastSeenAt: now,
	}
	return true, nil
}

func (s *MemoryStore) Account(_ context.Context, userID int64) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	return *acc, nil
}

func (s *MemoryStore) CountReferrals(_ context.Context, referrerID int64) (int64, error) {
	if referrerID == 0 {
		return 0, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, acc := range s.accounts {
		if acc.ReferredBy == referrerID {
			n++
		}
	}
	return n, nil
}
