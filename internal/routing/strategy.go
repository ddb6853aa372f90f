// Package routing implements expert selection over registered providers: a
// lexical mixture-of-experts strategy that scores free-text input against
// per-provider expertise tags, and a router that resolves chat clients by
// name, content, capability requirement or agent preference.
package routing

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const (
	// phraseBonus is added when a whole expertise tag appears verbatim in the
	// input (raw substring, not token based).
	phraseBonus = 0.3

	// priorityBoost caps the priority contribution to the final score.
	priorityBoost = 0.5

	// fallbackMaxPriority guards the priority factor against division by zero
	// when no provider has a positive priority.
	fallbackMaxPriority = 100

	// minTokenRunes drops single-rune tokens during tokenization.
	minTokenRunes = 1
)

// KeywordStrategy implements domain.RoutingStrategy with a deterministic
// lexical heuristic: Jaccard similarity over token sets plus a phrase bonus,
// weighted by provider priority.
type KeywordStrategy struct {
	mu              sync.RWMutex
	defaultProvider string
	priorities      map[string]int
}

// NewKeywordStrategy creates a strategy that falls back to defaultProvider
// when the input or the expertise table gives it nothing to score.
func NewKeywordStrategy(defaultProvider string) *KeywordStrategy {
	return &KeywordStrategy{
		defaultProvider: defaultProvider,
		priorities:      make(map[string]int),
	}
}

// SetDefaultProvider replaces the configured default provider.
func (s *KeywordStrategy) SetDefaultProvider(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defaultProvider = name
}

// SetPriority sets the priority weight for a provider. Higher is preferred.
func (s *KeywordStrategy) SetPriority(provider string, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.priorities[provider] = priority
}

// SelectBestExpert picks the provider whose expertise tags best match the
// input. Ties are broken by lexicographic provider name so selection is
// reproducible across runs.
func (s *KeywordStrategy) SelectBestExpert(input string, expertise map[string][]string) string {
	s.mu.RLock()
	defaultProvider := s.defaultProvider
	s.mu.RUnlock()

	if strings.TrimSpace(input) == "" || len(expertise) == 0 {
		return defaultProvider
	}

	providers := make([]string, 0, len(expertise))
	for provider := range expertise {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	best := defaultProvider
	bestScore := -1.0

	for _, provider := range providers {
		raw := 0.0
		for _, tag := range expertise[provider] {
			if score := s.CalculateMatchScore(input, tag); score > raw {
				raw = score
			}
		}

		final := raw * s.priorityFactor(provider)
		if final > bestScore {
			best = provider
			bestScore = final
		}
	}

	return best
}

// CalculateMatchScore scores input against a single expertise tag: Jaccard
// similarity over the token sets plus a phrase bonus when the whole tag
// appears in the input, capped at 1.0.
func (s *KeywordStrategy) CalculateMatchScore(input, domainTag string) float64 {
	normalizedInput := normalizeText(input)
	normalizedTag := normalizeText(domainTag)

	inputTokens := tokenize(normalizedInput)
	tagTokens := tokenize(normalizedTag)

	jaccard := 0.0
	if len(inputTokens) > 0 || len(tagTokens) > 0 {
		intersection := 0
		for token := range tagTokens {
			if _, ok := inputTokens[token]; ok {
				intersection++
			}
		}
		union := len(inputTokens) + len(tagTokens) - intersection
		jaccard = float64(intersection) / float64(union)
	}

	bonus := 0.0
	if normalizedTag != "" && strings.Contains(normalizedInput, normalizedTag) {
		bonus = phraseBonus
	}

	score := jaccard + bonus
	if score > 1.0 {
		score = 1.0
	}

	return score
}

// ProviderWeights distributes weight across the candidates by normalizing
// their priorities to sum to 1.0. When the total priority is zero, weight is
// split equally. The input content is deliberately ignored: weighting is
// priority-only.
func (s *KeywordStrategy) ProviderWeights(_ string, providers []string) map[string]float64 {
	if len(providers) == 0 {
		return map[string]float64{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	weights := make(map[string]float64, len(providers))
	total := 0.0
	for _, provider := range providers {
		priority := float64(s.priorities[provider])
		weights[provider] = priority
		total += priority
	}

	if total > 0 {
		for provider, weight := range weights {
			weights[provider] = weight / total
		}
		return weights
	}

	equal := 1.0 / float64(len(providers))
	for _, provider := range providers {
		weights[provider] = equal
	}

	return weights
}

// priorityFactor scales a raw match score by the provider's priority relative
// to the highest configured priority: 1.0 plus at most priorityBoost.
func (s *KeywordStrategy) priorityFactor(provider string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	maxPriority := 0
	for _, priority := range s.priorities {
		if priority > maxPriority {
			maxPriority = priority
		}
	}
	if maxPriority <= 0 {
		maxPriority = fallbackMaxPriority
	}

	return 1.0 + priorityBoost*float64(s.priorities[provider])/float64(maxPriority)
}

// normalizeText lowercases the text, replaces every non-letter rune with a
// space, collapses runs of whitespace and trims the result.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenize splits normalized text on whitespace into a set, discarding tokens
// of a single rune or less.
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range strings.Fields(text) {
		if utf8.RuneCountInString(word) > minTokenRunes {
			tokens[word] = struct{}{}
		}
	}

	return tokens
}
