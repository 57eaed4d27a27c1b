package features

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// #region types
// IDF maps a token to its inverse document frequency.
type IDF map[string]float64

// Vector is a sparse tf-idf weighting of one text.
type Vector map[string]float64

// #endregion types

// #region tokenize
// Tokenize lowercases text and splits it on anything that is not a letter,
// digit, '%' or '$', so figures like "20%" and "$4" survive as tokens.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '%' || r == '$')
	})
}

// #endregion tokenize

// #region idf
// BuildIDF computes idf(t) = ln(N / (1 + df(t))) over the documents.
func BuildIDF(docs []string) IDF {
	n := len(docs)
	if n < 1 {
		n = 1
	}
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(doc) {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}
	idf := make(IDF, len(df))
	for tok, count := range df {
		idf[tok] = math.Log(float64(n) / float64(1+count))
	}
	return idf
}

// #endregion idf

// #region vectorize
// Vectorize weights raw term frequency by idf. Tokens absent from idf get 0.
func Vectorize(text string, idf IDF) Vector {
	tf := make(map[string]int)
	for _, tok := range Tokenize(text) {
		tf[tok]++
	}
	vec := make(Vector, len(tf))
	for tok, count := range tf {
		vec[tok] = float64(count) * idf[tok]
	}
	return vec
}

// #endregion vectorize

// #region cosine
// CosineSimilarity compares two sparse vectors over the union of their keys.
// ok is false when either vector has zero norm: the texts are not comparable,
// which is different from a similarity of 0.
func CosineSimilarity(a, b Vector) (sim float64, ok bool) {
	var dot, normA, normB float64
	for _, k := range unionKeys(a, b) {
		x, y := a[k], b[k]
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// clamp rounding drift
	return math.Max(-1, math.Min(1, sim)), true
}

// unionKeys returns the sorted key union so the summation order, and with it
// the floating-point result, is stable across runs.
func unionKeys(a, b Vector) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, dup := a[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// #endregion cosine

// #region lexical
// UniqueWordCount is the number of distinct tokens in text.
func UniqueWordCount(text string) int {
	seen := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		seen[tok] = struct{}{}
	}
	return len(seen)
}

// CountFactMentions counts how many of the facts appear in text as a
// contiguous token sequence. Each fact counts at most once.
func CountFactMentions(text string, facts []string) int {
	tokens := Tokenize(text)
	count := 0
	for _, fact := range facts {
		needle := Tokenize(fact)
		if len(needle) > 0 && containsSeq(tokens, needle) {
			count++
		}
	}
	return count
}

func containsSeq(haystack, needle []string) bool {
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, tok := range needle {
			if haystack[i+j] != tok {
				continue outer
			}
		}
		return true
	}
	return false
}

// #endregion lexical
