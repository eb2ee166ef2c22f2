package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyscan/internal/cache/redis"
	"github.com/alanyoungcy/polyscan/internal/domain"
	"github.com/alanyoungcy/polyscan/internal/feed"
	"github.com/alanyoungcy/polyscan/internal/monitor"
	"github.com/alanyoungcy/polyscan/internal/notify"
	"github.com/alanyoungcy/polyscan/internal/scanner"
)

// runArbitrage runs the websocket feed and the cross-venue arbitrage scan
// loop until the context is cancelled.
func (a *App) runArbitrage(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	state := feed.NewState()
	pm, op, err := a.startFeed(ctx, g, state)
	if err != nil {
		return err
	}

	arb := scanner.NewArbScanner(pm, op, a.deps.Clob, a.deps.Opinion, state, scanner.ArbConfig{
		Limit:            a.cfg.Scan.Limit,
		TargetSize:       a.cfg.Scan.TargetSize,
		MinTradeSize:     a.cfg.Scan.MinTradeSize,
		MinProfitPercent: a.cfg.Scan.MinProfitPercent,
		MaxSlippageBps:   a.cfg.Scan.MaxSlippageBps,
		MatchThreshold:   a.cfg.Scan.MatchThreshold,
	}, a.logger)

	g.Go(func() error {
		return a.runLoop(ctx, "arb_scan", a.cfg.Scan.Interval.Duration, func(ctx context.Context) {
			opps, err := arb.Scan(ctx)
			if err != nil {
				a.logger.Error("arb scan failed", slog.Any("error", err))
				return
			}
			a.handleArb(ctx, opps)
		})
	})

	return waitGroup(g)
}

// runHedge runs the hedge scan loop. It does not need the websocket feed;
// quotes come from the REST book endpoints.
func (a *App) runHedge(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	a.spawnHedge(ctx, g)
	return waitGroup(g)
}

// runMonitor runs the websocket feed and the rebalance detection loop.
func (a *App) runMonitor(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	state := feed.NewState()
	pm, _, err := a.startFeed(ctx, g, state)
	if err != nil {
		return err
	}

	mon := monitor.NewRebalanceMonitor(state, monitor.RebalanceConfig{
		EMAAlpha:       a.cfg.Rebalance.EMAAlpha,
		MinAbsMove:     a.cfg.Rebalance.MinAbsMove,
		MinNotional:    a.cfg.Rebalance.MinNotional,
		MaxAgeSeconds:  a.cfg.Rebalance.MaxAgeSeconds,
		MinTradeEvents: a.cfg.Rebalance.MinTradeEvents,
	}, a.logger)

	g.Go(func() error {
		return a.runLoop(ctx, "rebalance", a.cfg.Rebalance.Interval.Duration, func(ctx context.Context) {
			markets, err := pm.ListActiveMarkets(ctx, a.cfg.Scan.Limit, "")
			if err != nil {
				a.logger.Error("list markets failed", slog.Any("error", err))
				return
			}
			a.handleRebalance(ctx, mon.Detect(markets, time.Now()))
		})
	})

	return waitGroup(g)
}

// runTail runs the websocket feed and the tail sweep scan loop.
func (a *App) runTail(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	state := feed.NewState()
	pm, _, err := a.startFeed(ctx, g, state)
	if err != nil {
		return err
	}

	a.spawnTail(ctx, g, pm, state)
	return waitGroup(g)
}

// runFull runs every scanner, the rebalance monitor, and the history
// archiver under a single errgroup sharing one websocket feed.
func (a *App) runFull(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	state := feed.NewState()
	pm, op, err := a.startFeed(ctx, g, state)
	if err != nil {
		return err
	}

	arb := scanner.NewArbScanner(pm, op, a.deps.Clob, a.deps.Opinion, state, scanner.ArbConfig{
		Limit:            a.cfg.Scan.Limit,
		TargetSize:       a.cfg.Scan.TargetSize,
		MinTradeSize:     a.cfg.Scan.MinTradeSize,
		MinProfitPercent: a.cfg.Scan.MinProfitPercent,
		MaxSlippageBps:   a.cfg.Scan.MaxSlippageBps,
		MatchThreshold:   a.cfg.Scan.MatchThreshold,
	}, a.logger)
	g.Go(func() error {
		return a.runLoop(ctx, "arb_scan", a.cfg.Scan.Interval.Duration, func(ctx context.Context) {
			opps, err := arb.Scan(ctx)
			if err != nil {
				a.logger.Error("arb scan failed", slog.Any("error", err))
				return
			}
			a.handleArb(ctx, opps)
		})
	})

	a.spawnHedge(ctx, g)

	mon := monitor.NewRebalanceMonitor(state, monitor.RebalanceConfig{
		EMAAlpha:       a.cfg.Rebalance.EMAAlpha,
		MinAbsMove:     a.cfg.Rebalance.MinAbsMove,
		MinNotional:    a.cfg.Rebalance.MinNotional,
		MaxAgeSeconds:  a.cfg.Rebalance.MaxAgeSeconds,
		MinTradeEvents: a.cfg.Rebalance.MinTradeEvents,
	}, a.logger)
	g.Go(func() error {
		return a.runLoop(ctx, "rebalance", a.cfg.Rebalance.Interval.Duration, func(ctx context.Context) {
			markets, err := pm.ListActiveMarkets(ctx, a.cfg.Scan.Limit, "")
			if err != nil {
				a.logger.Error("list markets failed", slog.Any("error", err))
				return
			}
			a.handleRebalance(ctx, mon.Detect(markets, time.Now()))
		})
	})

	a.spawnTail(ctx, g, pm, state)

	if a.deps.Archiver != nil && a.cfg.Archive.Enabled {
		g.Go(func() error {
			return a.runLoop(ctx, "archive", a.cfg.Archive.Interval.Duration, func(ctx context.Context) {
				cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
				moved, err := a.deps.Archiver.ArchiveAll(ctx, cutoff)
				if err != nil {
					a.logger.Error("archive pass failed", slog.Any("error", err))
				}
				if moved > 0 {
					a.logger.Info("archived history rows", slog.Int64("rows", moved))
				}
			})
		})
	}

	return waitGroup(g)
}

// startFeed resolves the optional market tag, builds the cached listers,
// subscribes the websocket feed to the current asset universe, and starts it
// on the group. The returned listers are what the scanners consume.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, state *feed.State) (*pmLister, *opLister, error) {
	tagID := ""
	if slug := a.cfg.Polymarket.TagSlug; slug != "" {
		tag, err := a.deps.Gamma.GetTagBySlug(ctx, slug)
		if err != nil {
			return nil, nil, err
		}
		tagID = tag.ID
		a.logger.Info("resolved market tag",
			slog.String("slug", slug),
			slog.String("tag_id", tagID),
		)
	}

	ttl := a.cfg.Scan.CacheTTL.Duration
	pm := newPolymarketLister(a.deps.Gamma, tagID, a.deps.MarketCache, ttl, a.logger)
	op := newOpinionLister(a.deps.Opinion, a.deps.MarketCache, ttl, a.logger)

	markets, err := pm.ListActiveMarkets(ctx, a.cfg.Scan.Limit, "")
	if err != nil {
		return nil, nil, err
	}
	assetIDs := collectAssetIDs(markets)
	if len(assetIDs) == 0 {
		a.logger.Warn("no asset ids to subscribe; scans will fall back to REST books")
	}

	seedRecentTrades(ctx, a.deps.Data, state, a.deps.Sink, a.logger)

	f := feed.New(a.cfg.Polymarket.WsHost, assetIDs, state, a.logger)
	g.Go(func() error {
		return f.Run(ctx)
	})

	return pm, op, nil
}

// spawnHedge loads the hedge mappings and starts the hedge scan loop on the
// group.
func (a *App) spawnHedge(ctx context.Context, g *errgroup.Group) {
	mappings, err := scanner.LoadMappings(a.cfg.Hedge.MappingsPath)
	if err != nil {
		a.logger.Error("load hedge mappings failed",
			slog.String("path", a.cfg.Hedge.MappingsPath),
			slog.Any("error", err),
		)
	}
	if len(mappings) == 0 {
		a.logger.Warn("no hedge mappings loaded; hedge scans will find nothing",
			slog.String("path", a.cfg.Hedge.MappingsPath),
		)
	}

	hedge := scanner.NewHedgeScanner(
		newPolymarketLister(a.deps.Gamma, "", a.deps.MarketCache, a.cfg.Scan.CacheTTL.Duration, a.logger),
		a.deps.Clob,
		a.deps.Perp,
		mappings,
		scanner.HedgeConfig{
			Limit:           a.cfg.Hedge.Limit,
			MinEdgePercent:  a.cfg.Hedge.MinEdgePercent,
			DefaultVol:      a.cfg.Hedge.DefaultVol,
			MinGapSigma:     a.cfg.Hedge.MinGapSigma,
			UseRealizedVol:  a.cfg.Hedge.UseRealizedVol,
			VolTimeframe:    a.cfg.Hedge.VolTimeframe,
			VolLookbackDays: a.cfg.Hedge.VolLookbackDays,
			VolMaxCandles:   a.cfg.Hedge.VolMaxCandles,
			Concurrency:     a.cfg.Hedge.Concurrency,
		},
		a.logger,
	)

	g.Go(func() error {
		return a.runLoop(ctx, "hedge_scan", a.cfg.Hedge.Interval.Duration, func(ctx context.Context) {
			opps, err := hedge.Scan(ctx)
			if err != nil {
				a.logger.Error("hedge scan failed", slog.Any("error", err))
				return
			}
			a.handleHedge(ctx, opps)
		})
	})
}

// spawnTail starts the tail sweep scan loop on the group.
func (a *App) spawnTail(ctx context.Context, g *errgroup.Group, pm *pmLister, state *feed.State) {
	tail := scanner.NewTailScanner(pm, a.deps.Clob, state, scanner.TailConfig{
		Limit:                     a.cfg.Tail.Limit,
		MinYesPrice:               a.cfg.Tail.MinYesPrice,
		MaxHoursToResolve:         a.cfg.Tail.MaxHoursToResolve,
		MaxSweepSize:              a.cfg.Tail.MaxSweepSize,
		MinNotional:               a.cfg.Tail.MinNotional,
		MinYieldPercent:           a.cfg.Tail.MinYieldPercent,
		MinAnnualizedYieldPercent: a.cfg.Tail.MinAnnualizedYieldPercent,
		FeeRate:                   a.cfg.Tail.FeeRate,
	}, a.logger)

	g.Go(func() error {
		return a.runLoop(ctx, "tail_scan", a.cfg.Tail.Interval.Duration, func(ctx context.Context) {
			opps, err := tail.Scan(ctx)
			if err != nil {
				a.logger.Error("tail scan failed", slog.Any("error", err))
				return
			}
			a.handleTail(ctx, opps)
		})
	})
}

// runLoop executes pass immediately and then on every interval tick until
// the context is cancelled. Pass failures are the pass's problem; the loop
// itself only ends with the context.
func (a *App) runLoop(ctx context.Context, name string, interval time.Duration, pass func(ctx context.Context)) error {
	if interval <= 0 {
		interval = time.Minute
	}
	a.logger.Info("loop starting",
		slog.String("loop", name),
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pass(ctx)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("loop stopping", slog.String("loop", name))
			return ctx.Err()
		case <-ticker.C:
			pass(ctx)
		}
	}
}

// handleArb fans a batch of arbitrage opportunities out to every configured
// destination. Failures are logged and do not stop the remaining fan-out.
func (a *App) handleArb(ctx context.Context, opps []domain.ArbOpportunity) {
	if len(opps) == 0 {
		return
	}
	a.logger.Info("arb opportunities found", slog.Int("count", len(opps)))

	if err := a.deps.Sink.LogArbOpportunities(opps); err != nil {
		a.logger.Error("sink write failed", slog.Any("error", err))
	}
	for _, opp := range opps {
		if a.deps.ArbStore != nil {
			if err := a.deps.ArbStore.Insert(ctx, opp); err != nil {
				a.logger.Error("arb insert failed", slog.Any("error", err))
			}
		}
		a.publish(ctx, redis.ChannelArb, opp)
		title, message := notify.FormatArb(opp)
		if err := a.deps.Notifier.Notify(ctx, notify.EventArb, title, message); err != nil {
			a.logger.Error("notify failed", slog.Any("error", err))
		}
	}
}

func (a *App) handleHedge(ctx context.Context, opps []domain.HedgeOpportunity) {
	if len(opps) == 0 {
		return
	}
	a.logger.Info("hedge opportunities found", slog.Int("count", len(opps)))

	if err := a.deps.Sink.LogHedgeOpportunities(opps); err != nil {
		a.logger.Error("sink write failed", slog.Any("error", err))
	}
	for _, opp := range opps {
		if a.deps.HedgeStore != nil {
			if err := a.deps.HedgeStore.Insert(ctx, opp); err != nil {
				a.logger.Error("hedge insert failed", slog.Any("error", err))
			}
		}
		a.publish(ctx, redis.ChannelHedge, opp)
		title, message := notify.FormatHedge(opp)
		if err := a.deps.Notifier.Notify(ctx, notify.EventHedge, title, message); err != nil {
			a.logger.Error("notify failed", slog.Any("error", err))
		}
	}
}

func (a *App) handleRebalance(ctx context.Context, signals []domain.RebalanceSignal) {
	if len(signals) == 0 {
		return
	}
	a.logger.Info("rebalance signals found", slog.Int("count", len(signals)))

	if err := a.deps.Sink.LogRebalanceSignals(signals); err != nil {
		a.logger.Error("sink write failed", slog.Any("error", err))
	}
	for _, sig := range signals {
		if a.deps.RebalanceStore != nil {
			if err := a.deps.RebalanceStore.Insert(ctx, sig); err != nil {
				a.logger.Error("rebalance insert failed", slog.Any("error", err))
			}
		}
		a.publish(ctx, redis.ChannelRebalance, sig)
		title, message := notify.FormatRebalance(sig)
		if err := a.deps.Notifier.Notify(ctx, notify.EventRebalance, title, message); err != nil {
			a.logger.Error("notify failed", slog.Any("error", err))
		}
	}
}

func (a *App) handleTail(ctx context.Context, opps []domain.TailOpportunity) {
	if len(opps) == 0 {
		return
	}
	a.logger.Info("tail opportunities found", slog.Int("count", len(opps)))

	if err := a.deps.Sink.LogTailOpportunities(opps); err != nil {
		a.logger.Error("sink write failed", slog.Any("error", err))
	}
	for _, opp := range opps {
		a.publish(ctx, redis.ChannelTail, opp)
		title, message := notify.FormatTail(opp)
		if err := a.deps.Notifier.Notify(ctx, notify.EventTail, title, message); err != nil {
			a.logger.Error("notify failed", slog.Any("error", err))
		}
	}
}

// publish sends one payload over the signal bus if Redis is wired.
func (a *App) publish(ctx context.Context, channel string, payload any) {
	if a.deps.SignalBus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshal signal failed", slog.Any("error", err))
		return
	}
	if err := a.deps.SignalBus.Publish(ctx, channel, data); err != nil {
		a.logger.Error("publish signal failed",
			slog.String("channel", channel),
			slog.Any("error", err),
		)
	}
}

// collectAssetIDs gathers the YES and NO token ids of the given markets for
// the websocket subscription.
func collectAssetIDs(markets []domain.Market) []string {
	ids := make([]string, 0, 2*len(markets))
	for _, m := range markets {
		if m.YesTokenID != "" {
			ids = append(ids, m.YesTokenID)
		}
		if m.NoTokenID != "" {
			ids = append(ids, m.NoTokenID)
		}
	}
	return ids
}

// waitGroup waits for the group and treats plain context cancellation as a
// clean shutdown.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
