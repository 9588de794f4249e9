// Package roomid generates the short join codes players type to find a
// table.
package roomid

import (
	"crypto/rand"
	"fmt"
)

// Codes are 4 characters from an uppercase alphanumeric alphabet,
// giving 36^4 ≈ 1.7M distinct rooms. Creation must still re-check the
// path and retry on collision; the space is a usability budget, not a
// uniqueness guarantee.
const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Length   = 4
)

// RandSource interface for dependency injection of randomness
type RandSource interface {
	Intn(n int) int
}

// Generator handles room code generation with configurable randomness
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a new generator with optional RandSource
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a new room code using crypto/rand
func Generate() string {
	return NewGenerator(nil).Generate()
}

// maxRandByte is the largest multiple of the alphabet size that fits
// in a byte. Bytes at or above it are rejected so a plain modulo never
// skews toward the low end of the alphabet.
const maxRandByte = 256 - 256%len(alphabet)

func alphabetIndex(b byte) (int, bool) {
	if int(b) >= maxRandByte {
		return 0, false
	}
	return int(b) % len(alphabet), true
}

// Generate creates a new room code using the generator's RandSource
func (g *Generator) Generate() string {
	code := make([]byte, Length)
	if g.randSource != nil {
		for i := range code {
			code[i] = alphabet[g.randSource.Intn(len(alphabet))]
		}
		return string(code)
	}

	buf := make([]byte, Length)
	for i := 0; i < Length; {
		if _, err := rand.Read(buf); err != nil {
			panic("failed to generate random bytes: " + err.Error())
		}
		for _, b := range buf {
			idx, ok := alphabetIndex(b)
			if !ok {
				continue
			}
			code[i] = alphabet[idx]
			i++
			if i == Length {
				break
			}
		}
	}
	return string(code)
}

// Validate checks that a room code is well formed.
func Validate(code string) error {
	if len(code) != Length {
		return fmt.Errorf("room code must be exactly %d characters, got %d", Length, len(code))
	}
	for i := 0; i < len(code); i++ {
		valid := false
		for j := 0; j < len(alphabet); j++ {
			if code[i] == alphabet[j] {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid character %c at position %d", code[i], i)
		}
	}
	return nil
}
