package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{
	"event", "order_id", "symbol_id", "side", "price", "quantity",
	"submitted_at", "event_at", "latency_ms",
}

// CSVWriter appends one row per sent order and per exchange response.
type CSVWriter struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter writes the header to w.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{w: csv.NewWriter(w)}
	if err := cw.w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	cw.w.Flush()
	return cw, cw.w.Error()
}

// OpenCSVFile creates (or truncates) the file at path and writes the header.
func OpenCSVFile(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv %s: %w", path, err)
	}

	cw, err := NewCSVWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	cw.closer = f
	return cw, nil
}

// Write appends a row for rec at eventAt. latency is the age of the order at that moment.
func (c *CSVWriter) Write(event string, rec *LatencyRecord, eventAt time.Time, latency time.Duration) error {
	row := []string{
		event,
		strconv.FormatInt(rec.OrderID, 10),
		strconv.FormatInt(rec.SymbolID, 10),
		rec.Side,
		rec.Price,
		rec.Quantity,
		rec.SubmittedAt.UTC().Format(time.RFC3339Nano),
		eventAt.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(latencyMs(latency), 'f', 3, 64),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the underlying file, if any.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.w.Flush()
	if c.closer != nil {
		return c.closer.Close()
	}
	return c.w.Error()
}
