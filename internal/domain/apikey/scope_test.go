package apikey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeValid(t *testing.T) {
	assert.True(t, ScopeValidate.Valid())
	assert.True(t, ScopeActivate.Valid())
	assert.True(t, ScopeFull.Valid())
	assert.False(t, Scope("admin").Valid())
	assert.False(t, Scope("").Valid())
}

func TestScopeAllows(t *testing.T) {
	cases := []struct {
		held     Scope
		required Scope
		want     bool
	}{
		{ScopeFull, ScopeValidate, true},
		{ScopeFull, ScopeActivate, true},
		{ScopeFull, ScopeFull, true},
		{ScopeActivate, ScopeValidate, true},
		{ScopeActivate, ScopeActivate, true},
		{ScopeActivate, ScopeFull, false},
		{ScopeValidate, ScopeValidate, true},
		{ScopeValidate, ScopeActivate, false},
		{Scope(""), ScopeValidate, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.held.Allows(tc.required),
			"held %q required %q", tc.held, tc.required)
	}
}
