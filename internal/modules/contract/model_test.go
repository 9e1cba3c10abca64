package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		current ContractStatus
		next    ContractStatus
		want    bool
	}{
		{"active to paused", StatusActive, StatusPaused, true},
		{"active to cancelled", StatusActive, StatusCancelled, true},
		{"active to failed", StatusActive, StatusFailed, true},
		{"active to expired", StatusActive, StatusExpired, true},
		{"active to stale", StatusActive, StatusStale, true},
		{"paused to active", StatusPaused, StatusActive, true},
		{"paused to cancelled", StatusPaused, StatusCancelled, true},
		{"paused to paused", StatusPaused, StatusPaused, false},
		{"paused to expired", StatusPaused, StatusExpired, false},
		{"failed to active", StatusFailed, StatusActive, true},
		{"failed to cancelled", StatusFailed, StatusCancelled, true},
		{"failed to paused", StatusFailed, StatusPaused, false},
		{"cancelled has no exits", StatusCancelled, StatusActive, false},
		{"expired has no exits", StatusExpired, StatusActive, false},
		{"stale has no exits", StatusStale, StatusActive, false},
		{"unknown status", ContractStatus("BOGUS"), StatusActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.current, tt.next))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusCancelled))
	assert.True(t, IsTerminal(StatusExpired))
	assert.False(t, IsTerminal(StatusFailed))
	assert.False(t, IsTerminal(StatusStale))
	assert.False(t, IsTerminal(StatusActive))
	assert.False(t, IsTerminal(StatusPaused))
}
