package recommend

import (
	"errors"
	"math"
	"sort"
	"strings"
)

var ErrEmptyVocabulary = errors.New("vocabulary is empty after filtering")

// Vectorizer builds a TF-IDF space over a set of texts: sub-linear term
// frequency, smoothed inverse document frequency, L2 normalization, and
// n-grams up to NgramMax. The document-frequency ceiling drops terms
// present in more than MaxDocFreq of the texts, and the vocabulary is
// capped at MaxFeatures terms.
type Vectorizer struct {
	MaxFeatures int
	MaxDocFreq  float64
	NgramMax    int
}

func NewVectorizer(maxFeatures int, maxDocFreq float64, ngramMax int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = 10000
	}
	if maxDocFreq <= 0 || maxDocFreq > 1 {
		maxDocFreq = 0.7
	}
	if ngramMax <= 0 {
		ngramMax = 3
	}
	return &Vectorizer{
		MaxFeatures: maxFeatures,
		MaxDocFreq:  maxDocFreq,
		NgramMax:    ngramMax,
	}
}

type sparseVector map[int]float64

// FitTransform fits the vocabulary over texts and returns one
// L2-normalized vector per text, in input order.
func (v *Vectorizer) FitTransform(texts []string) ([]sparseVector, error) {
	termCounts := make([]map[string]int, len(texts))
	docFreq := make(map[string]int)

	for i, text := range texts {
		counts := make(map[string]int)
		for _, term := range v.ngrams(text) {
			counts[term]++
		}
		termCounts[i] = counts

		for term := range counts {
			docFreq[term]++
		}
	}

	vocabulary := v.buildVocabulary(docFreq, len(texts))
	if len(vocabulary) == 0 {
		return nil, ErrEmptyVocabulary
	}

	n := float64(len(texts))
	idf := make([]float64, len(vocabulary))
	terms := make(map[string]int, len(vocabulary))
	for idx, term := range vocabulary {
		terms[term] = idx
		idf[idx] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	vectors := make([]sparseVector, len(texts))
	for i, counts := range termCounts {
		vec := make(sparseVector)
		for term, count := range counts {
			idx, ok := terms[term]
			if !ok {
				continue
			}
			tf := 1 + math.Log(float64(count))
			vec[idx] = tf * idf[idx]
		}
		normalize(vec)
		vectors[i] = vec
	}

	return vectors, nil
}

func (v *Vectorizer) ngrams(text string) []string {
	tokens := strings.Fields(text)

	var grams []string
	for n := 1; n <= v.NgramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			grams = append(grams, strings.Join(tokens[i:i+n], " "))
		}
	}
	return grams
}

// buildVocabulary applies the document-frequency ceiling and the
// feature cap. The ceiling is skipped for very small text sets, where
// a 70% cutoff would wipe out legitimately shared terms.
func (v *Vectorizer) buildVocabulary(docFreq map[string]int, textCount int) []string {
	maxDF := textCount
	if textCount > 3 {
		maxDF = int(math.Floor(v.MaxDocFreq * float64(textCount)))
	}

	terms := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		if df <= maxDF {
			terms = append(terms, term)
		}
	}

	if len(terms) > v.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if docFreq[terms[i]] != docFreq[terms[j]] {
				return docFreq[terms[i]] > docFreq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.MaxFeatures]
	}

	sort.Strings(terms)
	return terms
}

func normalize(vec sparseVector) {
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for idx, w := range vec {
		vec[idx] = w / norm
	}
}

// cosine returns the cosine similarity of two L2-normalized vectors.
func cosine(a, b sparseVector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for idx, w := range a {
		dot += w * b[idx]
	}
	return dot
}
