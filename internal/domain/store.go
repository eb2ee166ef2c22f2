package domain

import (
	"context"
	"io"
	"time"
)

// ArbHistoryStore is the append-only record of scanned arbitrage
// opportunities. The core only writes and archives; nothing reads back into
// the scan path.
type ArbHistoryStore interface {
	Insert(ctx context.Context, opp ArbOpportunity) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]ArbOpportunity, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HedgeHistoryStore is the append-only record of hedge-edge observations.
type HedgeHistoryStore interface {
	Insert(ctx context.Context, opp HedgeOpportunity) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]HedgeOpportunity, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RebalanceHistoryStore is the append-only record of rebalance signals.
type RebalanceHistoryStore interface {
	Insert(ctx context.Context, sig RebalanceSignal) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]RebalanceSignal, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MarketCache caches venue market listings between re-listing cycles. The
// scope distinguishes differently filtered listings of the same platform
// (e.g. tag-scoped vs unscoped); pass "" for the unfiltered listing.
type MarketCache interface {
	SetMarkets(ctx context.Context, platform Platform, scope string, markets []Market, ttl time.Duration) error
	GetMarkets(ctx context.Context, platform Platform, scope string) ([]Market, error)
}

// SignalBus broadcasts freshly computed opportunities and signals to
// out-of-process consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads archive objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
