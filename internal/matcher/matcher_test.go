package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

func pmMarket(id, title string) domain.Market {
	return domain.Market{Platform: domain.PlatformPolymarket, ID: id, Title: title}
}

func opMarket(id, title string) domain.Market {
	return domain.Market{Platform: domain.PlatformOpinion, ID: id, Title: title}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("BTC above 100k", "btc above 100K"))
	assert.Equal(t, 0.0, Similarity("abc", ""))

	// One substitution over four runes.
	assert.InDelta(t, 0.75, Similarity("will", "wall"), 1e-9)
}

func TestMatchPairsMostSimilar(t *testing.T) {
	pms := []domain.Market{
		pmMarket("p1", "Will BTC close above $100k on Dec 31?"),
		pmMarket("p2", "Will ETH close above $5k on Dec 31?"),
	}
	ops := []domain.Market{
		opMarket("o1", "ETH above 5000 by Dec 31"),
		opMarket("o2", "Will BTC close above $100k on Dec 31"),
	}

	pairs := Match(pms, ops, 0.6)
	require.Len(t, pairs, 1)
	assert.Equal(t, "p1", pairs[0].Polymarket.ID)
	assert.Equal(t, "o2", pairs[0].Opinion.ID)
	assert.GreaterOrEqual(t, pairs[0].Similarity, 0.6)
}

func TestMatchOneToOne(t *testing.T) {
	pms := []domain.Market{
		pmMarket("p1", "Will BTC reach 100k"),
		pmMarket("p2", "Will BTC reach 100k?"),
	}
	ops := []domain.Market{
		opMarket("o1", "Will BTC reach 100k"),
	}

	pairs := Match(pms, ops, 0.6)
	require.Len(t, pairs, 1)
	// First venue-A market claims the only candidate.
	assert.Equal(t, "p1", pairs[0].Polymarket.ID)
}

func TestMatchBelowThreshold(t *testing.T) {
	pms := []domain.Market{pmMarket("p1", "Will BTC reach 100k")}
	ops := []domain.Market{opMarket("o1", "Fed cuts rates in March")}

	assert.Empty(t, Match(pms, ops, 0.6))
}

func TestMatchFirstMaximumWins(t *testing.T) {
	pms := []domain.Market{pmMarket("p1", "same title")}
	ops := []domain.Market{
		opMarket("o1", "same title"),
		opMarket("o2", "same title"),
	}

	pairs := Match(pms, ops, 0.6)
	require.Len(t, pairs, 1)
	assert.Equal(t, "o1", pairs[0].Opinion.ID)
	assert.Equal(t, 1.0, pairs[0].Similarity)
}
