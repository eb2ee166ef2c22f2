// Package storage is the always-on persistence fallback: newline-delimited
// JSON files under a local data directory. Every opportunity and signal is
// appended here regardless of whether Postgres or Redis are configured.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// Default file names within the data directory.
const (
	ArbFile       = "opportunities.jsonl"
	HedgeFile     = "hedged_opportunities.jsonl"
	RebalanceFile = "rebalance_signals.jsonl"
	TailFile      = "tail_opportunities.jsonl"
	TradeFile     = "trades.jsonl"
)

// Sink appends structured records to JSONL files under a single data
// directory. Safe for concurrent use by the mode loops.
type Sink struct {
	mu      sync.Mutex
	dataDir string
}

// NewSink creates the data directory if needed and returns a sink rooted
// at it.
func NewSink(dataDir string) (*Sink, error) {
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	return &Sink{dataDir: dataDir}, nil
}

// Append marshals each record as one JSON line and appends them to the named
// file. A no-op when records is empty.
func (s *Sink) Append(fileName string, records []any) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dataDir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", fileName, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("storage: append %s: %w", fileName, err)
		}
	}
	return nil
}

// LogArbOpportunities appends one line per arbitrage opportunity.
func (s *Sink) LogArbOpportunities(opps []domain.ArbOpportunity) error {
	records := make([]any, 0, len(opps))
	for _, opp := range opps {
		records = append(records, map[string]any{
			"ts":         stamp(opp.DetectedAt),
			"id":         opp.ID,
			"route":      opp.Route,
			"pm_id":      opp.Pair.Polymarket.ID,
			"op_id":      opp.Pair.Opinion.ID,
			"similarity": opp.Pair.Similarity,
			"size":       opp.Size,
			"cost":       opp.Cost,
			"profit_pct": opp.ProfitPercent,
			"breakdown":  opp.PriceBreakdown,
		})
	}
	return s.Append(ArbFile, records)
}

// LogHedgeOpportunities appends one line per hedge-edge observation.
func (s *Sink) LogHedgeOpportunities(opps []domain.HedgeOpportunity) error {
	records := make([]any, 0, len(opps))
	for _, opp := range opps {
		rec := map[string]any{
			"ts":          stamp(opp.DetectedAt),
			"id":          opp.ID,
			"market_id":   opp.Market.ID,
			"title":       opp.Market.Title,
			"underlying":  opp.UnderlyingSymbol,
			"pm_yes":      opp.VenueYes,
			"implied_yes": opp.ImpliedYes,
			"edge_pct":    opp.EdgePercent,
			"strike":      opp.Strike,
			"expiry":      opp.Expiry,
			"prob_source": opp.ProbSource,
			"note":        opp.Note,
		}
		if opp.FundingRate != nil {
			rec["funding"] = *opp.FundingRate
		}
		records = append(records, rec)
	}
	return s.Append(HedgeFile, records)
}

// LogRebalanceSignals appends one line per rebalance signal.
func (s *Sink) LogRebalanceSignals(signals []domain.RebalanceSignal) error {
	records := make([]any, 0, len(signals))
	for _, sig := range signals {
		records = append(records, map[string]any{
			"ts":           stamp(sig.DetectedAt),
			"id":           sig.ID,
			"condition_id": sig.Market.ConditionID,
			"title":        sig.Market.Title,
			"direction":    sig.Direction,
			"current_yes":  sig.CurrentYes,
			"baseline_yes": sig.BaselineYes,
			"delta":        sig.Delta,
			"notional":     sig.TradeNotional,
			"window_sec":   sig.WindowSeconds,
			"reason":       sig.Reason,
		})
	}
	return s.Append(RebalanceFile, records)
}

// LogTailOpportunities appends one line per tail sweep candidate.
func (s *Sink) LogTailOpportunities(opps []domain.TailOpportunity) error {
	records := make([]any, 0, len(opps))
	for _, opp := range opps {
		records = append(records, map[string]any{
			"ts":             stamp(opp.DetectedAt),
			"id":             opp.ID,
			"market_id":      opp.Market.ID,
			"title":          opp.Market.Title,
			"yes_price":      opp.YesPrice,
			"sweep_size":     opp.MaxSweepSize,
			"notional":       opp.Notional,
			"yield_pct":      opp.ExpectedYieldPercent,
			"annualized_pct": opp.AnnualizedYieldPercent,
			"hours_left":     opp.HoursToResolve,
			"risk_flags":     opp.RiskFlags,
		})
	}
	return s.Append(TailFile, records)
}

// LogTrades appends one line per observed trade.
func (s *Sink) LogTrades(trades []domain.TradeEvent) error {
	records := make([]any, 0, len(trades))
	for _, tr := range trades {
		var ts time.Time
		if tr.Timestamp > 0 {
			ts = time.Unix(tr.Timestamp, 0)
		}
		rec := map[string]any{
			"ts":           stamp(ts),
			"condition_id": tr.ConditionID,
			"token_id":     tr.TokenID,
			"side":         tr.Side,
			"size":         tr.Size,
			"price":        tr.Price,
			"notional":     tr.Notional,
			"title":        tr.Title,
			"outcome":      tr.Outcome,
		}
		if tr.TxHash != "" {
			rec["tx_hash"] = tr.TxHash
		}
		if tr.Wallet != "" {
			rec["wallet"] = tr.Wallet
		}
		records = append(records, rec)
	}
	return s.Append(TradeFile, records)
}

// stamp formats the record timestamp, falling back to now for zero values.
func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
