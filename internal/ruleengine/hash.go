package ruleengine

import (
	"unicode/utf16"

	"github.com/spaolacci/murmur3"
)

// Bucket maps key and seed to a bucket in [1, 100] using the given algorithm.
// Output must match the server bit for bit.
func Bucket(algo Algorithm, key string, seed int32) int {
	switch algo {
	case AlgorithmMurmur:
		// Murmur3 yields an unsigned 32-bit value; modulo is taken unsigned.
		return int(murmurHash(key, seed)%100) + 1
	default:
		// % truncates toward zero, so the remainder is in (-100, 100).
		r := legacyHash(key, seed) % 100
		if r < 0 {
			r = -r
		}
		return int(r) + 1
	}
}

// legacyHash is h = 31*h + c over the UTF-16 code units of key, XOR seed,
// with 32-bit signed overflow.
func legacyHash(key string, seed int32) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(key)) {
		h = 31*h + int32(unit)
	}
	return h ^ seed
}

// murmurHash is Murmur3 x86 32-bit over the UTF-8 bytes of key.
func murmurHash(key string, seed int32) uint32 {
	return murmur3.Sum32WithSeed([]byte(key), uint32(seed))
}
