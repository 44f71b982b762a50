package gate

import "time"

// SessionGate combines the trading window with the logged-in flag.
// It only reports intent; the Dispatcher performs logon/logout and confirms the result
// with SetLoggedIn.
type SessionGate struct {
	window   *TradingWindow
	loggedIn bool
}

// NewSessionGate creates a gate in the LoggedOut state.
func NewSessionGate(window *TradingWindow) *SessionGate {
	return &SessionGate{window: window}
}

// Evaluate computes the session state at now.
func (g *SessionGate) Evaluate(now time.Time) SessionState {
	return SessionState{
		WithinWindow: g.window.IsWithinWindow(now),
		LoggedIn:     g.loggedIn,
	}
}

// SetLoggedIn records the outcome of a logon or logout.
func (g *SessionGate) SetLoggedIn(loggedIn bool) {
	g.loggedIn = loggedIn
}

// IsLoggedIn reports the current flag.
func (g *SessionGate) IsLoggedIn() bool {
	return g.loggedIn
}

// IsTradingActive is true only while logged in and inside the window.
func (g *SessionGate) IsTradingActive(now time.Time) bool {
	return g.loggedIn && g.window.IsWithinWindow(now)
}

// Window returns the underlying trading window.
func (g *SessionGate) Window() *TradingWindow {
	return g.window
}
