// Package promo stores promo codes that credit the balance once per user.
package promo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidCode     = errors.New("promo: invalid code")
	ErrCodeExists      = errors.New("promo: code already exists")
	ErrNotFound        = errors.New("promo: code not found")
	ErrAlreadyRedeemed = errors.New("promo: code already redeemed by this user")
	ErrExhausted       = errors.New("promo: code has no uses left")
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// Store keeps promo codes. Redeem is atomic: a user redeems a code at most
// once and a code is never redeemed more times than it allows.
type Store interface {
	Create(ctx context.Context, code string, amount int64, uses int) error
	// Redeem consumes one use of code for userID and returns the amount to credit.
	Redeem(ctx context.Context, code string, userID int64) (int64, error)
	// Release gives back a redemption whose credit could not be applied.
	Release(ctx context.Context, code string, userID int64) error
}

// Normalize upper-cases and trims a user supplied code.
func Normalize(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(code) {
		return "", ErrInvalidCode
	}
	return code, nil
}

func validateNew(code string, amount int64, uses int) (string, error) {
	normalized, err := Normalize(code)
	if err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("promo: non-positive amount %d", amount)
	}
	if uses <= 0 {
		return "", fmt.Errorf("promo: non-positive uses %d", uses)
	}
	return normalized, nil
}
