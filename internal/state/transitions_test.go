package state

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "idle to awaiting target", from: StateIdle, to: StateAwaitingTarget, expected: true},
		{name: "empty state behaves as idle", from: "", to: StateAwaitingAmount, expected: true},
		{name: "awaiting target to awaiting target", from: StateAwaitingTarget, to: StateAwaitingTarget, expected: true},
		{name: "promo superseded by top-up", from: StateAwaitingPromo, to: StateAwaitingAmount, expected: true},
		{name: "admin edit superseded by purchase", from: StateAwaitingAdminEdit, to: StateAwaitingTarget, expected: true},
		{name: "awaiting target back to idle", from: StateAwaitingTarget, to: StateIdle, expected: true},
		{name: "error to flow invalid", from: StateError, to: StateAwaitingTarget, expected: false},
		{name: "unknown state to flow invalid", from: State("unknown"), to: StateAwaitingPromo, expected: false},
		{name: "any state to idle emergency", from: State("whatever"), to: StateIdle, expected: true},
		{name: "any state to error emergency", from: StateAwaitingAmount, to: StateError, expected: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}
