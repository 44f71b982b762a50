package metrics

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// keys: o:<8-byte big-endian order id>
const prefixOrder = "o:"

func orderKey(orderID int64) []byte {
	key := make([]byte, len(prefixOrder)+8)
	copy(key, prefixOrder)
	binary.BigEndian.PutUint64(key[len(prefixOrder):], uint64(orderID))
	return key
}

// keyUpperBound returns the smallest key greater than every key with prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// AuditStore keeps latency records for post-session analysis.
type AuditStore struct {
	db *pebble.DB
}

// OpenAuditStore opens a Pebble database in dir.
func OpenAuditStore(dir string) (*AuditStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dir, err)
	}
	return &AuditStore{db: db}, nil
}

// OpenMemAuditStore opens a store backed by an in-memory filesystem.
func OpenMemAuditStore() (*AuditStore, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &AuditStore{db: db}, nil
}

func (s *AuditStore) Close() error { return s.db.Close() }

// Put stores rec, replacing any earlier record for the same order.
func (s *AuditStore) Put(rec *LatencyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.db.Set(orderKey(rec.OrderID), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save record %d: %w", rec.OrderID, err)
	}
	return nil
}

// Get returns nil, nil when the order has no record.
func (s *AuditStore) Get(orderID int64) (*LatencyRecord, error) {
	data, closer, err := s.db.Get(orderKey(orderID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %d: %w", orderID, err)
	}
	defer closer.Close()

	var rec LatencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %d: %w", orderID, err)
	}
	return &rec, nil
}

// Range calls fn for every record in order id order until fn returns false.
func (s *AuditStore) Range(fn func(rec *LatencyRecord) bool) error {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var rec LatencyRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // skip invalid entries
		}
		if !fn(&rec) {
			break
		}
	}
	return iter.Error()
}
