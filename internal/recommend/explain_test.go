package recommend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExplainBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.8, "Highly relevant Wiki document matching your recent searches"},
		{0.5, "Related Wiki document based on your search history"},
		{0.3, "Wiki document with some overlap with your interests"},
		{0.1, "Wiki document you may want to explore"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, explain("Wiki", tt.score, nil))
	}
}

func TestExplainBandBoundariesAreExclusive(t *testing.T) {
	require.Equal(t, "Related Wiki document based on your search history", explain("Wiki", 0.7, nil))
	require.Equal(t, "Wiki document with some overlap with your interests", explain("Wiki", 0.4, nil))
	require.Equal(t, "Wiki document you may want to explore", explain("Wiki", 0.2, nil))
}

func TestExplainNamesSalientTerms(t *testing.T) {
	got := explain("Wiki", 0.8, []string{"kubernetes deployment strategy"})
	require.True(t, strings.HasPrefix(got, "Highly relevant Wiki document matching your searches about "))

	mid := explain("Wiki", 0.5, []string{"kubernetes deployment strategy"})
	require.True(t, strings.HasPrefix(mid, "Related Wiki document, touches on "))
}

func TestSalientTermsFiltersShortWords(t *testing.T) {
	require.Empty(t, salientTerms([]string{"how do i fix it"}, 2))
	require.Empty(t, salientTerms(nil, 2))
	require.Empty(t, salientTerms([]string{"   "}, 2))
}

func TestSalientTermsDeduplicatesAndLimits(t *testing.T) {
	terms := salientTerms([]string{"deployment deployment kubernetes microservices"}, 2)
	require.Len(t, terms, 2)

	allowed := map[string]bool{"deployment": true, "kubernetes": true, "microservices": true}
	seen := map[string]bool{}
	for _, term := range terms {
		require.True(t, allowed[term])
		require.False(t, seen[term])
		seen[term] = true
	}
}

func TestExplainFallbackLabel(t *testing.T) {
	require.Equal(t, "Recently added Runbook document", explainFallback("Runbook"))
}
