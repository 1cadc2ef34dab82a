package archive

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/pipeforge/pkg/blob"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

func TestExporter_Export(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	base := time.UnixMilli(1700000000000)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	require.NoError(t, s.Save(ctx, store.Record{ID: "component-a", URL: "https://example.com/a.yaml", Data: "name: A"}))
	require.NoError(t, s.Save(ctx, store.Record{ID: "component-b", Data: "name: B", Extra: map[string]any{"favorite": true}}))

	blobs := blob.NewLocalBlobStore(t.TempDir())
	e := NewExporter(s, blobs, 0)
	e.SetClock(func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) })

	res, err := e.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Regexp(t, regexp.MustCompile(`^components/2026/10/18/\d+_[0-9a-f-]{36}\.jsonl\.gz$`), res.Key)

	rc, err := blobs.Get(ctx, res.Key)
	require.NoError(t, err)
	defer rc.Close()
	gz, err := gzip.NewReader(rc)
	require.NoError(t, err)

	var got []store.Record
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		var rec store.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		got = append(got, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, got, 2)
	assert.Equal(t, "component-b", got[0].ID)
	assert.Equal(t, true, got[0].Extra["favorite"])
	assert.Equal(t, "component-a", got[1].ID)
	assert.Equal(t, "https://example.com/a.yaml", got[1].URL)
}

func TestExporter_Run(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Save(context.Background(), store.Record{ID: "component-a", Data: "x"}))
	blobs := blob.NewLocalBlobStore(t.TempDir())
	e := NewExporter(s, blobs, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		keys, err := blobs.List(context.Background(), "components")
		return err == nil && len(keys) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
