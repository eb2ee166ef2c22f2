package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// FormatArb renders an arbitrage opportunity as a notification title and
// body.
func FormatArb(opp domain.ArbOpportunity) (title, message string) {
	title = fmt.Sprintf("Arb %.2f%% | %s", opp.ProfitPercent, opp.Route)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", opp.Pair.Polymarket.Title)
	fmt.Fprintf(&b, "size %.0f @ cost %.4f\n", opp.Size, opp.Cost)
	fmt.Fprintf(&b, "%s\n", opp.PriceBreakdown)
	fmt.Fprintf(&b, "similarity %.2f", opp.Pair.Similarity)
	return title, b.String()
}

// FormatHedge renders a hedge-edge observation as a notification title and
// body.
func FormatHedge(opp domain.HedgeOpportunity) (title, message string) {
	title = fmt.Sprintf("Hedge edge %+.2f%% | %s", opp.EdgePercent, opp.UnderlyingSymbol)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", opp.Market.Title)
	fmt.Fprintf(&b, "venue YES %.4f vs implied %.4f (%s)\n", opp.VenueYes, opp.ImpliedYes, opp.ProbSource)
	fmt.Fprintf(&b, "spot %.2f strike %.2f expiry %s", opp.UnderlyingPrice, opp.Strike, opp.Expiry)
	if opp.FundingRate != nil {
		fmt.Fprintf(&b, "\nfunding %.5f", *opp.FundingRate)
	}
	if opp.Note != "" {
		fmt.Fprintf(&b, "\nnote: %s", opp.Note)
	}
	return title, b.String()
}

// FormatRebalance renders a rebalance signal as a notification title and
// body.
func FormatRebalance(sig domain.RebalanceSignal) (title, message string) {
	title = fmt.Sprintf("Rebalance %s | delta %+.3f", sig.Direction, sig.Delta)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", sig.Market.Title)
	fmt.Fprintf(&b, "yes %.4f vs baseline %.4f\n", sig.CurrentYes, sig.BaselineYes)
	fmt.Fprintf(&b, "%s", sig.Reason)
	return title, b.String()
}

// FormatTail renders a tail sweep candidate as a notification title and
// body.
func FormatTail(opp domain.TailOpportunity) (title, message string) {
	title = fmt.Sprintf("Tail %.2f%% (%.0f%% ann.) | %.1fh left", opp.ExpectedYieldPercent, opp.AnnualizedYieldPercent, opp.HoursToResolve)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", opp.Market.Title)
	fmt.Fprintf(&b, "YES %.4f, sweep %.0f (%.0f USDC)", opp.YesPrice, opp.MaxSweepSize, opp.Notional)
	if len(opp.RiskFlags) > 0 {
		fmt.Fprintf(&b, "\nflags: %s", strings.Join(opp.RiskFlags, ", "))
	}
	return title, b.String()
}
