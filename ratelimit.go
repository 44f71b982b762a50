package gate

import "time"

// rateCounter counts sends per wall-clock second.
// sent is only meaningful for the epoch second named by bucket; the reset is lazy and
// happens on the first check after a boundary. Two bursts on either side of a boundary
// are both admitted.
type rateCounter struct {
	limit  int
	bucket int64
	sent   int
}

func newRateCounter(limit int) *rateCounter {
	return &rateCounter{limit: limit}
}

// roll moves the bucket to now's second, resetting the count on a change.
func (c *rateCounter) roll(now time.Time) {
	sec := now.Unix()
	if sec != c.bucket {
		c.bucket = sec
		c.sent = 0
	}
}

// allow reports whether one more send fits in now's second.
func (c *rateCounter) allow(now time.Time) bool {
	c.roll(now)
	return c.sent < c.limit
}

func (c *rateCounter) record() {
	c.sent++
}

// sentAt returns the count for now's second without mutating the counter.
func (c *rateCounter) sentAt(now time.Time) int {
	if now.Unix() != c.bucket {
		return 0
	}
	return c.sent
}
