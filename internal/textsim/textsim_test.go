package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips store numbers and punctuation",
			input: "WALMART STORE #4521",
			want:  "walmart store",
		},
		{
			name:  "drops noise tokens",
			input: "POS DEBIT PURCHASE - STARBUCKS",
			want:  "starbucks",
		},
		{
			name:  "keeps alphanumeric merchant tokens",
			input: "AMZN Mktp US*2K4LZ0",
			want:  "amzn mktp us 2k4lz0",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		min  float64
		max  float64
	}{
		{
			name: "identical descriptions",
			a:    "Grocery Store Purchase",
			b:    "Grocery Store Purchase",
			min:  1.0,
			max:  1.0,
		},
		{
			name: "same merchant different store number",
			a:    "WALMART STORE #4521",
			b:    "WALMART STORE #1177",
			min:  1.0,
			max:  1.0,
		},
		{
			name: "partial overlap",
			a:    "SHELL OIL STATION",
			b:    "SHELL GAS",
			min:  0.3,
			max:  0.6,
		},
		{
			name: "unrelated merchants",
			a:    "NETFLIX.COM",
			b:    "HOME DEPOT 1234",
			min:  0.0,
			max:  0.1,
		},
		{
			name: "single word typo falls back to edit distance",
			a:    "STARBUCKS",
			b:    "STARBUCKS",
			min:  1.0,
			max:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestSimilarityBounds(t *testing.T) {
	pairs := [][2]string{
		{"", ""},
		{"A", ""},
		{"SOME LONG MERCHANT NAME LLC", "X"},
		{"123456", "789"},
	}
	for _, p := range pairs {
		got := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestSimilarAndHighlySimilar(t *testing.T) {
	assert.True(t, Similar("SHELL OIL STATION", "SHELL GAS"))
	assert.False(t, HighlySimilar("SHELL OIL STATION", "SHELL GAS"))
	assert.True(t, HighlySimilar("TRADER JOES #553", "TRADER JOES #12"))
	assert.False(t, Similar("NETFLIX.COM", "HOME DEPOT"))
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "walmart store", Signature("WALMART STORE #4521", 2))
	assert.Equal(t, "starbucks", Signature("POS DEBIT STARBUCKS 0042", 2))
	assert.Equal(t, "", Signature("#### 1234", 2))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("same", "same"))
	assert.Equal(t, 1, levenshtein("walmart", "walmartt"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 4, levenshtein("", "abcd"))
}
