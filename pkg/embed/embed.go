// Package embed provides deterministic text embeddings for semantic retrieval.
//
// The hashing embedder maps text to a fixed-length vector with no model
// download and no remote call. It is stateless and safe for unsynchronized
// concurrent use, so a single instance can be shared across every session.
package embed

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is the embedding vector size.
// 384 matches the small sentence-embedding models commonly used for
// conversational recall, so stored vectors stay interchangeable.
const DefaultDimensions = 384

// Embedder converts text into a fixed-length numeric vector.
type Embedder interface {
	// Embed returns the vector for text. The result is L2-normalized.
	Embed(text string) []float32

	// Dimensions returns the vector length produced by Embed.
	Dimensions() int
}

// Hashing implements Embedder with feature hashing over word unigrams and
// bigrams. Identical text always produces an identical vector.
type Hashing struct {
	dims int
}

// NewHashing creates a hashing embedder with the given dimensionality.
// Non-positive dims fall back to DefaultDimensions.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Hashing{dims: dims}
}

// Dimensions returns the configured vector length.
func (h *Hashing) Dimensions() int {
	return h.dims
}

// Embed converts text to an L2-normalized vector.
// Empty or tokenless text yields the zero vector.
func (h *Hashing) Embed(text string) []float32 {
	vec := make([]float32, h.dims)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	for i, tok := range tokens {
		h.accumulate(vec, tok)
		if i+1 < len(tokens) {
			h.accumulate(vec, tok+" "+tokens[i+1])
		}
	}

	normalize(vec)
	return vec
}

// accumulate hashes a feature into its bucket with a hash-derived sign,
// which keeps colliding features from biasing the vector positive.
func (h *Hashing) accumulate(vec []float32, feature string) {
	hasher := fnv.New64a()
	hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	idx := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		vec[idx] -= 1
	} else {
		vec[idx] += 1
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

var _ Embedder = (*Hashing)(nil)
