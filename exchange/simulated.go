package exchange

import (
	"sync"
	"time"

	gate "github.com/0x5487/order-gate"
	"github.com/benbjohnson/clock"
)

// Simulated is an in-process exchange. It acknowledges every order sent during a
// session after a fixed latency and rejects orders sent while logged out.
type Simulated struct {
	mu       sync.Mutex
	clock    clock.Clock
	latency  time.Duration
	handler  ResponseHandler
	sent     []gate.OrderRequest
	loggedIn bool
	logons   int
	logouts  int
}

// NewSimulated creates a simulated exchange. handler may be nil.
func NewSimulated(handler ResponseHandler, latency time.Duration, clk clock.Clock) *Simulated {
	if clk == nil {
		clk = clock.New()
	}
	return &Simulated{
		clock:   clk,
		latency: latency,
		handler: handler,
	}
}

func (s *Simulated) Send(order gate.OrderRequest) {
	s.mu.Lock()
	s.sent = append(s.sent, order)
	loggedIn := s.loggedIn
	s.mu.Unlock()

	if s.handler == nil {
		return
	}

	resp := Response{OrderID: order.OrderID, Status: StatusAck}
	if !loggedIn {
		resp.Status = StatusReject
		resp.Message = "no active session"
	}

	s.clock.AfterFunc(s.latency, func() {
		resp.ReceivedAt = s.clock.Now()
		s.handler.OnResponse(resp)
	})
}

func (s *Simulated) Logon(gate.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = true
	s.logons++
}

func (s *Simulated) Logout(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = false
	s.logouts++
}

// Sent returns a copy of every order received, in arrival order.
func (s *Simulated) Sent() []gate.OrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gate.OrderRequest, len(s.sent))
	copy(out, s.sent)
	return out
}

// LoggedIn reports whether a session is open.
func (s *Simulated) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// SessionCounts returns how many logons and logouts were received.
func (s *Simulated) SessionCounts() (logons, logouts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logons, s.logouts
}
