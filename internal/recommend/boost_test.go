package recommend

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/discover-vnext/backend/internal/storage/models"
)

func boostContext(queries ...string) *queryContext {
	now := time.Now()
	var qs []models.Query
	for i, text := range queries {
		qs = append(qs, models.Query{
			ID:        text,
			UserID:    testUser,
			CompanyID: testCompany,
			QueryText: text,
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return newQueryContext(qs, now)
}

func TestTitleRelevance(t *testing.T) {
	b := NewBooster(testConfig())
	qc := boostContext("microservices api gateway pattern")

	full := b.titleRelevance(&models.Document{Title: "Microservices API Gateway Pattern"}, qc)
	require.InDelta(t, 0.8, full, 1e-9)

	half := b.titleRelevance(&models.Document{Title: "Microservices Gateway Cookbook"}, qc)
	require.InDelta(t, 0.4, half, 1e-9)

	none := b.titleRelevance(&models.Document{Title: "Holiday Schedule"}, qc)
	require.Zero(t, none)
}

func TestTitleRelevanceNoQueries(t *testing.T) {
	b := NewBooster(testConfig())
	qc := newQueryContext(nil, time.Now())

	require.Zero(t, b.titleRelevance(&models.Document{Title: "Anything"}, qc))
}

func TestKeywordDensityCapped(t *testing.T) {
	b := NewBooster(testConfig())
	qc := boostContext("budget")

	doc := &models.Document{
		Title:   "budget",
		Content: strings.Repeat("budget ", 50),
	}
	require.InDelta(t, 0.5, b.keywordDensity(doc, qc), 1e-9)

	sparse := &models.Document{
		Title:   "Planning",
		Content: "The budget appears once among twenty other words that say nothing about money at all here today friends",
	}
	got := b.keywordDensity(sparse, qc)
	require.Greater(t, got, 0.0)
	require.Less(t, got, 0.5)
}

func TestConfidenceQualityNeverNegative(t *testing.T) {
	b := NewBooster(testConfig())
	qc := boostContext("anything")

	low := b.confidenceQuality(&models.Document{Confidence: 0.1, Content: "x"}, qc)
	require.Zero(t, low)

	high := b.confidenceQuality(&models.Document{Confidence: 1.0, Content: strings.Repeat("x", 10000)}, qc)
	require.InDelta(t, 0.15, high, 1e-9)
}

func TestSemanticAlignmentUsesLastThreeQueries(t *testing.T) {
	b := NewBooster(testConfig())
	qc := boostContext("alpha", "beta", "gamma", "delta")

	require.True(t, qc.recentWords["alpha"])
	require.True(t, qc.recentWords["gamma"])
	require.False(t, qc.recentWords["delta"])

	doc := &models.Document{Title: "alpha beta gamma", Content: ""}
	aligned := b.semanticAlignment(doc, qc)
	require.Greater(t, aligned, 0.0)
	require.LessOrEqual(t, aligned, 0.3)

	unrelated := b.semanticAlignment(&models.Document{Title: "omega", Content: "psi chi"}, qc)
	require.Zero(t, unrelated)
}

func TestSourceDiversityNudge(t *testing.T) {
	b := NewBooster(testConfig())
	qc := boostContext("anything")

	require.Zero(t, b.sourceDiversity(&models.Document{Source: "LLM Generated"}, qc))
	require.InDelta(t, 0.03, b.sourceDiversity(&models.Document{Source: "Engineering Wiki"}, qc), 1e-9)
}

func TestRecencyNudge(t *testing.T) {
	b := NewBooster(testConfig())
	qc := boostContext("anything")

	fresh := b.recency(&models.Document{CreatedAt: qc.now}, qc)
	require.InDelta(t, 0.05, fresh, 1e-9)

	threeDays := b.recency(&models.Document{CreatedAt: qc.now.Add(-72 * time.Hour)}, qc)
	require.InDelta(t, 0.05*4.0/7.0, threeDays, 1e-9)

	old := b.recency(&models.Document{CreatedAt: qc.now.Add(-8 * 24 * time.Hour)}, qc)
	require.Zero(t, old)
}

func TestApplyCapsAtOne(t *testing.T) {
	b := NewBooster(testConfig())
	qc := boostContext("microservices api gateway pattern")

	doc := &models.Document{
		Title:      "Microservices API Gateway Pattern",
		Content:    strings.Repeat("microservices api gateway pattern ", 100),
		Source:     "Engineering Wiki",
		Confidence: 1.0,
		CreatedAt:  qc.now,
	}

	score := b.Apply(0.95, doc, qc)
	require.Equal(t, 1.0, score)
}

func TestBoostsAreIndependentlyNonNegative(t *testing.T) {
	b := NewBooster(testConfig())
	qc := boostContext("microservices deployment")

	doc := &models.Document{
		Title:      "Kitchen Rules",
		Content:    "Label your food.",
		Source:     "LLM Generated",
		Confidence: 0.0,
		CreatedAt:  qc.now.Add(-365 * 24 * time.Hour),
	}

	for _, boost := range b.boosts {
		require.GreaterOrEqual(t, boost(doc, qc), 0.0)
	}
}
