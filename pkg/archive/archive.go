// Package archive exports the component store to blob storage as gzipped JSON lines.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/pipeforge/pkg/blob"
	"github.com/rmax-ai/pipeforge/pkg/ctxlog"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

// DefaultMaxRecords caps how many records one export reads.
const DefaultMaxRecords = 100000

// Exporter writes snapshots of a component store to a blob store.
type Exporter struct {
	store      store.ComponentStore
	blobs      blob.BlobStore
	maxRecords int
	now        func() time.Time
}

// NewExporter creates an Exporter. A non-positive maxRecords means DefaultMaxRecords.
func NewExporter(s store.ComponentStore, b blob.BlobStore, maxRecords int) *Exporter {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Exporter{store: s, blobs: b, maxRecords: maxRecords, now: time.Now}
}

// SetClock overrides the clock used for export keys.
func (e *Exporter) SetClock(clock func() time.Time) {
	e.now = clock
}

// Result describes a finished export.
type Result struct {
	Key     string `json:"key"`
	Records int    `json:"records"`
}

// Export writes every record, newest first, one JSON object per line, under
// components/YYYY/MM/DD/<unix>_<uuid>.jsonl.gz.
func (e *Exporter) Export(ctx context.Context) (*Result, error) {
	records, err := e.store.List(ctx, e.maxRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			gz.Close()
			return nil, fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	now := e.now().UTC()
	year, month, day := now.Date()
	key := fmt.Sprintf("components/%04d/%02d/%02d/%d_%s.jsonl.gz",
		year, month, day,
		now.Unix(),
		uuid.New().String(),
	)
	if err := e.blobs.Put(ctx, key, &buf); err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}
	return &Result{Key: key, Records: len(records)}, nil
}

// Run exports every interval until ctx is done. Failures are logged and the
// next tick tries again.
func (e *Exporter) Run(ctx context.Context, interval time.Duration) {
	logger := ctxlog.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := e.Export(ctx)
			if err != nil {
				logger.Error("component_export_failed", "error", err.Error())
				continue
			}
			logger.Info("component_export_written", "key", res.Key, "records", res.Records)
		}
	}
}
