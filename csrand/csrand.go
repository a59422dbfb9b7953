// Package csrand exposes the math/rand convenience API over the
// crypto/rand CSPRNG, for the places that want uniform ints or floats
// with cryptographic backing: session shortkeys, obfuscation seeds.
package csrand

import (
	cryptRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
)

var (
	csRandSourceInstance csRandSource

	// CsRand is a math/rand instance backed by the crypto/rand CSPRNG.
	CsRand = rand.New(csRandSourceInstance)
)

// csRandSource keeps no state; every read pulls fresh CSPRNG output.
type csRandSource struct{}

func (r csRandSource) Int63() int64 {
	var src [8]byte
	if err := Bytes(src[:]); err != nil {
		panic(err)
	}
	val := binary.BigEndian.Uint64(src[:])
	val &= (1<<63 - 1)
	return int64(val)
}

func (r csRandSource) Seed(seed int64) {
	// No-op.
}

// Float64 returns a pseudo random number in [0.0, 1.0).
func Float64() float64 {
	return CsRand.Float64()
}

// IntRange returns a uniformly distributed int in [min, max].
func IntRange(min, max int) int {
	if max < min {
		panic(fmt.Sprintf("IntRange: min > max (%d, %d)", min, max))
	}
	r := (max + 1) - min
	return CsRand.Intn(r) + min
}

// Bytes fills the slice with random data.
func Bytes(buf []byte) error {
	_, err := io.ReadFull(cryptRand.Reader, buf)
	return err
}
