// Package cache stores computed sentence vectors so repeated texts skip
// inference.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

var ErrCorrupt = errors.New("cache: stored vector is malformed")

// VectorCache is consulted by the vectorizer before running the model.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// Key identifies the vector of text under the model artifact artifactID.
func Key(artifactID, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("fasttext:vec:%s:%s", artifactID, hex.EncodeToString(sum[:]))
}

func encode(vec []float32) []byte {
	b := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, nil
}
