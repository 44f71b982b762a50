package metrics

import (
	"time"

	"github.com/huandu/skiplist"
)

type pendingKey struct {
	sentAt  int64 // unix nano
	orderID int64
}

// PendingTracker holds orders that were sent but not yet answered, oldest first.
type PendingTracker struct {
	list  *skiplist.SkipList
	index map[int64]*skiplist.Element
}

// NewPendingTracker creates an empty tracker ordered by send time, then order id.
func NewPendingTracker() *PendingTracker {
	return &PendingTracker{
		list: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			k1, _ := lhs.(pendingKey)
			k2, _ := rhs.(pendingKey)

			switch {
			case k1.sentAt > k2.sentAt:
				return 1
			case k1.sentAt < k2.sentAt:
				return -1
			case k1.orderID > k2.orderID:
				return 1
			case k1.orderID < k2.orderID:
				return -1
			}
			return 0
		})),
		index: make(map[int64]*skiplist.Element),
	}
}

// Add starts tracking rec. A second Add for the same order replaces the first.
func (p *PendingTracker) Add(rec *LatencyRecord) {
	p.Remove(rec.OrderID)

	el := p.list.Set(pendingKey{sentAt: rec.SentAt.UnixNano(), orderID: rec.OrderID}, rec)
	p.index[rec.OrderID] = el
}

// Remove stops tracking an order and returns its record.
func (p *PendingTracker) Remove(orderID int64) (*LatencyRecord, bool) {
	el, ok := p.index[orderID]
	if !ok {
		return nil, false
	}

	p.list.RemoveElement(el)
	delete(p.index, orderID)

	rec, _ := el.Value.(*LatencyRecord)
	return rec, true
}

// Stale returns the records sent at or before now-after, oldest first.
func (p *PendingTracker) Stale(now time.Time, after time.Duration) []*LatencyRecord {
	cutoff := now.Add(-after).UnixNano()

	var out []*LatencyRecord
	for el := p.list.Front(); el != nil; el = el.Next() {
		key, _ := el.Key().(pendingKey)
		if key.sentAt > cutoff {
			break
		}
		rec, _ := el.Value.(*LatencyRecord)
		out = append(out, rec)
	}
	return out
}

// Len returns the number of orders awaiting a response.
func (p *PendingTracker) Len() int {
	return len(p.index)
}
