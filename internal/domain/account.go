package domain

import "time"

// Account is the flat per-user record holding the in-app balance.
type Account struct {
	UserID     int64
	Username   string
	FirstName  string
	Balance    int64
	ReferredBy int64
	JoinedAt   time.Time
	LastSeenAt time.Time
}

// Profile is what the bot learns about a user on contact.
type Profile struct {
	UserID     int64
	Username   string
	FirstName  string
	ReferredBy int64
}

// DisplayName returns the @username when present, the first name otherwise.
func (p Profile) DisplayName() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	return p.FirstName
}
