package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// archiveBatchSize bounds how many rows are pulled from a history store per
// archive cycle. Anything left behind is picked up on the next cycle.
const archiveBatchSize = 10000

// Archiver moves aged opportunity and signal history out of the hot store:
// rows older than the cutoff are serialized to JSONL, uploaded to cold
// storage, and then pruned. Pruning only happens after the upload succeeded,
// so a failed cycle leaves the rows in place for the next one.
type Archiver struct {
	writer    domain.BlobWriter
	arb       domain.ArbHistoryStore
	hedge     domain.HedgeHistoryStore
	rebalance domain.RebalanceHistoryStore
	logger    *slog.Logger
}

// NewArchiver creates an Archiver over the given writer and history stores.
// Any store may be nil, in which case that kind is skipped.
func NewArchiver(
	writer domain.BlobWriter,
	arb domain.ArbHistoryStore,
	hedge domain.HedgeHistoryStore,
	rebalance domain.RebalanceHistoryStore,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:    writer,
		arb:       arb,
		hedge:     hedge,
		rebalance: rebalance,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveAll archives every history kind in turn and returns the total
// number of rows moved. A failure in one kind does not stop the others; the
// first error is returned after all kinds were attempted.
func (a *Archiver) ArchiveAll(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	var firstErr error

	record := func(kind string, n int64, err error) {
		total += n
		if err != nil {
			a.logger.Error("archive failed",
				slog.String("kind", kind),
				slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		if n > 0 {
			a.logger.Info("archived history",
				slog.String("kind", kind),
				slog.Int64("rows", n))
		}
	}

	if a.arb != nil {
		n, err := archiveKind(ctx, a.writer, a.arb, "arb_history", before,
			func(o domain.ArbOpportunity) time.Time { return o.DetectedAt })
		record("arb_history", n, err)
	}
	if a.hedge != nil {
		n, err := archiveKind(ctx, a.writer, a.hedge, "hedge_history", before,
			func(o domain.HedgeOpportunity) time.Time { return o.DetectedAt })
		record("hedge_history", n, err)
	}
	if a.rebalance != nil {
		n, err := archiveKind(ctx, a.writer, a.rebalance, "rebalance_history", before,
			func(s domain.RebalanceSignal) time.Time { return s.DetectedAt })
		record("rebalance_history", n, err)
	}

	return total, firstErr
}

// historyStore is the slice of the domain store interfaces the archiver
// needs: time-ranged reads and pruning.
type historyStore[T any] interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]T, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// archiveKind drains one kind's aged rows in batches: each batch is
// serialized to JSONL, uploaded, and only then pruned. The prune cutoff of a
// full batch is the batch's newest detected-at, so rows beyond the batch
// limit stay in the store until their own batch has been uploaded. Returns
// the number of rows pruned.
func archiveKind[T any](ctx context.Context, writer domain.BlobWriter, store historyStore[T], kind string, before time.Time, detectedAt func(T) time.Time) (int64, error) {
	var total int64
	for {
		records, err := store.ListBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive %s query: %w", kind, err)
		}
		if len(records) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(records)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
		}

		last := detectedAt(records[len(records)-1])
		path := archivePath(kind, last)
		if err := writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
		}

		// A partial batch held everything older than the cutoff, so the
		// whole range can go. A full batch may share its newest timestamp
		// with unlisted rows; pruning strictly before it leaves those for
		// the next batch (re-uploading a duplicate beats losing a row).
		pruneCutoff := before
		full := len(records) == archiveBatchSize
		if full {
			pruneCutoff = last
		}
		deleted, err := store.DeleteBefore(ctx, pruneCutoff)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive %s prune: %w", kind, err)
		}
		total += deleted

		if !full {
			return total, nil
		}
		if deleted == 0 {
			// Over a full batch of rows with one identical timestamp;
			// cannot make progress without prune-by-id.
			return total, fmt.Errorf("s3blob: archive %s stalled: %d rows share detected_at %s", kind, len(records), last.Format(time.RFC3339))
		}
	}
}

// archivePath builds the object key for an archive file, named after the
// newest row in the batch so successive batches never collide.
//
//	archive/arb_history/2026-08-17T031500Z.jsonl
func archivePath(kind string, last time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, last.UTC().Format("2006-01-02T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element becomes one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
