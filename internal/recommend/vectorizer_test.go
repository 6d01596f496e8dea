package recommend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitTransformIdenticalTexts(t *testing.T) {
	v := NewVectorizer(10000, 0.7, 3)

	vectors, err := v.FitTransform([]string{
		"microservices api gateway",
		"microservices api gateway",
		"kitchen cleaning schedule",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	require.InDelta(t, 1.0, cosine(vectors[0], vectors[1]), 1e-9)
	require.InDelta(t, 0.0, cosine(vectors[0], vectors[2]), 1e-9)
}

func TestFitTransformVectorsAreUnitLength(t *testing.T) {
	v := NewVectorizer(10000, 0.7, 3)

	vectors, err := v.FitTransform([]string{
		"alpha beta gamma",
		"beta gamma delta epsilon",
	})
	require.NoError(t, err)

	for _, vec := range vectors {
		var sum float64
		for _, w := range vec {
			sum += w * w
		}
		require.InDelta(t, 1.0, math.Sqrt(sum), 1e-9)
	}
}

func TestNgramExtraction(t *testing.T) {
	v := NewVectorizer(10000, 0.7, 3)

	grams := v.ngrams("api gateway pattern")
	require.ElementsMatch(t, []string{
		"api", "gateway", "pattern",
		"api gateway", "gateway pattern",
		"api gateway pattern",
	}, grams)
}

func TestDocFrequencyCeiling(t *testing.T) {
	v := NewVectorizer(10000, 0.7, 1)

	// "common" appears in all 5 texts and must be dropped; "rare"
	// appears once and must survive.
	texts := []string{
		"common rare",
		"common alpha",
		"common beta",
		"common gamma",
		"common delta",
	}
	vectors, err := v.FitTransform(texts)
	require.NoError(t, err)

	// With "common" excluded the first two texts share nothing.
	require.InDelta(t, 0.0, cosine(vectors[0], vectors[1]), 1e-9)
	require.NotEmpty(t, vectors[0])
}

func TestDocFrequencyCeilingSkippedForTinySets(t *testing.T) {
	v := NewVectorizer(10000, 0.7, 1)

	// Both texts share every term. A 70% ceiling over 2 texts would
	// empty the vocabulary; small sets keep it.
	vectors, err := v.FitTransform([]string{
		"shared words here",
		"shared words here",
	})
	require.NoError(t, err)
	require.InDelta(t, 1.0, cosine(vectors[0], vectors[1]), 1e-9)
}

func TestVocabularyCap(t *testing.T) {
	v := NewVectorizer(3, 0.7, 1)

	vectors, err := v.FitTransform([]string{
		"a b c d e f",
		"a b c",
		"a b",
		"a",
	})
	require.NoError(t, err)

	distinct := map[int]bool{}
	for _, vec := range vectors {
		for idx := range vec {
			distinct[idx] = true
		}
	}
	require.LessOrEqual(t, len(distinct), 3)
}

func TestEmptyVocabulary(t *testing.T) {
	v := NewVectorizer(10000, 0.7, 3)

	_, err := v.FitTransform([]string{"", "", "", ""})
	require.ErrorIs(t, err, ErrEmptyVocabulary)
}
