package text

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize lowercases s and returns its words of two or more letters or
// digits, dropping English stop words.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, stop := englishStopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TFIDFCosine fits TF-IDF over the corpus [a, b, a+" "+b] with smoothed idf
// ln((1+n)/(1+df))+1, L2-normalizes the rows and returns the cosine of the
// rows for a and b. An empty vocabulary scores 0.
func TFIDFCosine(a, b string) float64 {
	docs := [][]string{Tokenize(a), Tokenize(b), Tokenize(a + " " + b)}

	df := map[string]int{}
	tfs := make([]map[string]int, len(docs))
	for i, tokens := range docs {
		tfs[i] = map[string]int{}
		for _, t := range tokens {
			tfs[i][t]++
		}
		for t := range tfs[i] {
			df[t]++
		}
	}
	if len(df) == 0 {
		return 0
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for t, d := range df {
		idf[t] = math.Log((1+n)/(1+float64(d))) + 1
	}

	va := weigh(tfs[0], idf)
	vb := weigh(tfs[1], idf)
	return cosine(va, vb)
}

func weigh(tf map[string]int, idf map[string]float64) map[string]float64 {
	v := make(map[string]float64, len(tf))
	for t, c := range tf {
		v[t] = float64(c) * idf[t]
	}
	return v
}

func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for t, x := range a {
		normA += x * x
		if y, ok := b[t]; ok {
			dot += x * y
		}
	}
	for _, y := range b {
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
