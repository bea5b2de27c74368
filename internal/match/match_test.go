package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestEligible(t *testing.T) {
	tests := []struct {
		name         string
		requirements []string
		capabilities []string
		want         bool
	}{
		{name: "no requirements match any node", requirements: nil, capabilities: nil, want: true},
		{name: "no requirements match capable node", requirements: nil, capabilities: []string{"Maya"}, want: true},
		{name: "exact match", requirements: []string{"Maya"}, capabilities: []string{"Maya"}, want: true},
		{name: "superset capabilities", requirements: []string{"Maya"}, capabilities: []string{"Maya", "Redshift", "GPU"}, want: true},
		{name: "all requirements needed", requirements: []string{"Maya", "Redshift"}, capabilities: []string{"Maya"}, want: false},
		{name: "bare node fails any requirement", requirements: []string{"Maya"}, capabilities: nil, want: false},
		{name: "case-sensitive", requirements: []string{"maya"}, capabilities: []string{"Maya"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(tt.requirements, tt.capabilities))
		})
	}
}

func TestEligible_Properties(t *testing.T) {
	token := rapid.StringMatching(`[A-Za-z][A-Za-z0-9_-]{0,11}`)

	rapid.Check(t, func(t *rapid.T) {
		requirements := rapid.SliceOfN(token, 0, 8).Draw(t, "requirements")
		extra := rapid.SliceOfN(token, 0, 8).Draw(t, "extra")

		// A node holding every requirement is always eligible, and stays
		// eligible with extra capabilities.
		capabilities := append(append([]string{}, requirements...), extra...)
		if !Eligible(requirements, capabilities) {
			t.Fatalf("node with all requirements rejected: req=%v caps=%v", requirements, capabilities)
		}

		// Dropping any one requirement from the capability set makes the
		// node ineligible, unless a duplicate of it remains.
		if len(requirements) == 0 {
			return
		}
		drop := rapid.IntRange(0, len(requirements)-1).Draw(t, "drop")
		remaining := make([]string, 0, len(requirements)-1)
		stillCovered := false
		for i, r := range requirements {
			if i == drop {
				continue
			}
			remaining = append(remaining, r)
			if r == requirements[drop] {
				stillCovered = true
			}
		}
		for _, e := range extra {
			if e == requirements[drop] {
				stillCovered = true
			}
		}
		got := Eligible(requirements, append(remaining, extra...))
		if got != stillCovered {
			t.Fatalf("eligibility %v after dropping %q, want %v", got, requirements[drop], stillCovered)
		}
	})
}
