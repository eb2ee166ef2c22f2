package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

type fakeWriter struct {
	objects map[string][]byte
	err     error
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.err != nil {
		return w.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return err
	}
	if w.objects == nil {
		w.objects = make(map[string][]byte)
	}
	w.objects[path] = buf.Bytes()
	return nil
}

type fakeArbStore struct {
	rows    []domain.ArbOpportunity
	deleted bool
}

func (s *fakeArbStore) Insert(context.Context, domain.ArbOpportunity) error { return nil }

func (s *fakeArbStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.ArbOpportunity, error) {
	var out []domain.ArbOpportunity
	for _, r := range s.rows {
		if r.DetectedAt.Before(cutoff) {
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeArbStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []domain.ArbOpportunity
	var n int64
	for _, r := range s.rows {
		if r.DetectedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	s.deleted = n > 0
	return n, nil
}

func TestArchiverUploadsThenPrunes(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeArbStore{rows: []domain.ArbOpportunity{
		{ID: "old-1", Route: domain.RoutePolyNoOpinionYes, DetectedAt: cutoff.Add(-48 * time.Hour)},
		{ID: "old-2", Route: domain.RoutePolyYesOpinionNo, DetectedAt: cutoff.Add(-24 * time.Hour)},
		{ID: "fresh", DetectedAt: cutoff.Add(time.Hour)},
	}}
	writer := &fakeWriter{}
	arch := NewArchiver(writer, store, nil, nil, slog.New(slog.DiscardHandler))

	n, err := arch.ArchiveAll(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// The object is named after the newest row in the batch.
	data, ok := writer.objects["archive/arb_history/2026-07-31T000000Z.jsonl"]
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "old-1")

	require.Len(t, store.rows, 1, "only aged rows are pruned")
	assert.Equal(t, "fresh", store.rows[0].ID)
}

func TestArchiverDrainsBeyondOneBatch(t *testing.T) {
	// More aged rows than one batch holds: every row must be uploaded
	// before it is pruned, batch by batch, with distinct object keys.
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	const rows = archiveBatchSize + 500

	store := &fakeArbStore{}
	for i := 0; i < rows; i++ {
		store.rows = append(store.rows, domain.ArbOpportunity{
			ID:         "arb-" + strconv.Itoa(i),
			DetectedAt: cutoff.Add(-time.Duration(rows-i) * time.Second),
		})
	}
	writer := &fakeWriter{}
	arch := NewArchiver(writer, store, nil, nil, slog.New(slog.DiscardHandler))

	n, err := arch.ArchiveAll(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(rows), n)
	assert.Empty(t, store.rows, "every aged row pruned")
	require.Len(t, writer.objects, 2)

	uploaded := 0
	for _, data := range writer.objects {
		uploaded += len(strings.Split(strings.TrimSpace(string(data)), "\n"))
	}
	// A full batch keeps its boundary row for the next batch, so that one
	// row appears in both objects.
	assert.Equal(t, rows+1, uploaded)
}

func TestArchiverKeepsRowsWhenUploadFails(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeArbStore{rows: []domain.ArbOpportunity{
		{ID: "old-1", DetectedAt: cutoff.Add(-time.Hour)},
	}}
	writer := &fakeWriter{err: errors.New("bucket unavailable")}
	arch := NewArchiver(writer, store, nil, nil, slog.New(slog.DiscardHandler))

	n, err := arch.ArchiveAll(context.Background(), cutoff)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.False(t, store.deleted, "prune must not run after a failed upload")
	require.Len(t, store.rows, 1)
}

func TestArchiverSkipsEmptyKinds(t *testing.T) {
	writer := &fakeWriter{}
	arch := NewArchiver(writer, &fakeArbStore{}, nil, nil, slog.New(slog.DiscardHandler))

	n, err := arch.ArchiveAll(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.objects)
}
