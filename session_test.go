package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionState_Decisions(t *testing.T) {
	tests := []struct {
		state  SessionState
		logon  bool
		logout bool
	}{
		{SessionState{WithinWindow: false, LoggedIn: false}, false, false},
		{SessionState{WithinWindow: true, LoggedIn: false}, true, false},
		{SessionState{WithinWindow: true, LoggedIn: true}, false, false},
		{SessionState{WithinWindow: false, LoggedIn: true}, false, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.logon, tt.state.ShouldLogon(), "%+v", tt.state)
		assert.Equal(t, tt.logout, tt.state.ShouldLogout(), "%+v", tt.state)
	}
}

func TestSessionGate_Lifecycle(t *testing.T) {
	w, err := NewTradingWindow("10:00", "15:30", "UTC")
	require.NoError(t, err)
	g := NewSessionGate(w)

	before := at(9, 0)
	inside := at(11, 0)
	after := at(16, 0)

	assert.False(t, g.IsLoggedIn())
	assert.False(t, g.Evaluate(before).ShouldLogon())

	state := g.Evaluate(inside)
	assert.True(t, state.ShouldLogon())
	assert.False(t, g.IsTradingActive(inside))

	// the gate only reports; nothing changes until the flag is set
	assert.True(t, g.Evaluate(inside).ShouldLogon())

	g.SetLoggedIn(true)
	assert.True(t, g.IsTradingActive(inside))
	assert.False(t, g.Evaluate(inside).ShouldLogon())

	assert.False(t, g.IsTradingActive(after))
	assert.True(t, g.Evaluate(after).ShouldLogout())

	g.SetLoggedIn(false)
	assert.False(t, g.Evaluate(after).ShouldLogout())
	assert.Same(t, w, g.Window())
}
