package routing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/kiln/internal/routing"
)

func TestKeywordStrategy_SelectBestExpert(t *testing.T) {
	t.Run("should pick the provider with matching expertise", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")
		strategy.SetPriority("A", 100)
		strategy.SetPriority("B", 50)

		expertise := map[string][]string{
			"A": {"code"},
			"B": {"writing"},
		}

		best := strategy.SelectBestExpert("please review this code snippet", expertise)

		require.Equal(t, "A", best)
	})

	t.Run("should return the default provider for blank input", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")

		expertise := map[string][]string{
			"A": {"code"},
		}

		require.Equal(t, "openai", strategy.SelectBestExpert("", expertise))
		require.Equal(t, "openai", strategy.SelectBestExpert("   \t\n", expertise))
	})

	t.Run("should return the default provider for an empty expertise map", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")

		require.Equal(t, "openai", strategy.SelectBestExpert("anything at all", nil))
		require.Equal(t, "openai", strategy.SelectBestExpert("anything at all", map[string][]string{}))
	})

	t.Run("should prefer the higher priority provider on equal match", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")
		strategy.SetPriority("A", 100)
		strategy.SetPriority("B", 10)

		expertise := map[string][]string{
			"A": {"translation"},
			"B": {"translation"},
		}

		best := strategy.SelectBestExpert("need a translation of this paragraph", expertise)

		require.Equal(t, "A", best)
	})

	t.Run("should break exact ties by lexicographic provider name", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")

		expertise := map[string][]string{
			"zeta":  {"poetry"},
			"alpha": {"poetry"},
		}

		// Same tags, same (zero) priorities: the smaller name must win, and
		// repeatedly so.
		for i := 0; i < 10; i++ {
			require.Equal(t, "alpha", strategy.SelectBestExpert("write some poetry please", expertise))
		}
	})

	t.Run("should honor a changed default provider", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")
		strategy.SetDefaultProvider("dashscope")

		require.Equal(t, "dashscope", strategy.SelectBestExpert("", nil))
	})
}

func TestKeywordStrategy_CalculateMatchScore(t *testing.T) {
	strategy := routing.NewKeywordStrategy("openai")

	t.Run("should score identical strings at the maximum", func(t *testing.T) {
		same := strategy.CalculateMatchScore("machine learning", "machine learning")
		unrelated := strategy.CalculateMatchScore("machine learning", "french cuisine")

		require.InDelta(t, 1.0, same, 1e-9)
		require.InDelta(t, 0.0, unrelated, 1e-9)
		require.GreaterOrEqual(t, same, unrelated)
	})

	t.Run("should add the phrase bonus for a verbatim tag", func(t *testing.T) {
		// "code" is one of four input tokens: jaccard 1/4, plus 0.3 bonus.
		score := strategy.CalculateMatchScore("review code for bugs", "code")

		require.InDelta(t, 0.55, score, 1e-9)
	})

	t.Run("should normalize punctuation and case", func(t *testing.T) {
		a := strategy.CalculateMatchScore("Fix, the CODE!!", "fix the code")
		b := strategy.CalculateMatchScore("fix the code", "fix the code")

		require.InDelta(t, b, a, 1e-9)
	})

	t.Run("should drop single-rune tokens", func(t *testing.T) {
		// "a" and "i" are discarded; the only surviving tokens match.
		score := strategy.CalculateMatchScore("a i code", "code")

		require.InDelta(t, 1.0, score, 1e-9)
	})

	t.Run("should cap the score at one", func(t *testing.T) {
		score := strategy.CalculateMatchScore("code", "code")

		require.LessOrEqual(t, score, 1.0)
	})

	t.Run("should return zero when both sides normalize to nothing", func(t *testing.T) {
		score := strategy.CalculateMatchScore("!!!", "???")

		require.InDelta(t, 0.0, score, 1e-9)
	})
}

func TestKeywordStrategy_ProviderWeights(t *testing.T) {
	t.Run("should normalize priorities to weights summing to one", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")
		strategy.SetPriority("A", 100)
		strategy.SetPriority("B", 50)
		strategy.SetPriority("C", 50)

		weights := strategy.ProviderWeights("ignored input", []string{"A", "B", "C"})

		require.Len(t, weights, 3)
		require.InDelta(t, 0.5, weights["A"], 1e-9)
		require.InDelta(t, 0.25, weights["B"], 1e-9)
		require.InDelta(t, 0.25, weights["C"], 1e-9)

		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		require.InDelta(t, 1.0, sum, 1e-9)
	})

	t.Run("should split weight equally when all priorities are zero", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")

		weights := strategy.ProviderWeights("ignored", []string{"A", "B", "C", "D"})

		for _, provider := range []string{"A", "B", "C", "D"} {
			require.InDelta(t, 0.25, weights[provider], 1e-9)
		}
	})

	t.Run("should return an empty map for an empty candidate list", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")

		require.Empty(t, strategy.ProviderWeights("ignored", nil))
	})

	t.Run("should ignore input content entirely", func(t *testing.T) {
		strategy := routing.NewKeywordStrategy("openai")
		strategy.SetPriority("A", 80)
		strategy.SetPriority("B", 20)

		first := strategy.ProviderWeights("write some code", []string{"A", "B"})
		second := strategy.ProviderWeights("compose a sonnet", []string{"A", "B"})

		require.Equal(t, first, second)
	})
}
