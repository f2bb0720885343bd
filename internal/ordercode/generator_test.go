package ordercode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type checkerFunc func(ctx context.Context, code string) (bool, error)

func (f checkerFunc) OrderCodeExists(ctx context.Context, code string) (bool, error) {
	return f(ctx, code)
}

func neverTaken(context.Context, string) (bool, error) {
	return false, nil
}

func alwaysTaken(context.Context, string) (bool, error) {
	return true, nil
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool, 10000)
	generator := NewGenerator(checkerFunc(func(ctx context.Context, code string) (bool, error) {
		return seen[code], nil
	}))

	for i := 0; i < 10000; i++ {
		code, err := generator.Generate(context.Background())
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}

		if len(code) != Length {
			t.Fatalf("Generate returned code %q of length %d, want %d", code, len(code), Length)
		}

		for _, r := range code {
			if !strings.ContainsRune(Alphabet+"0123456789", r) {
				t.Fatalf("Generate returned code %q with character %q outside the alphabet", code, r)
			}
		}

		if seen[code] {
			t.Fatalf("Generate returned duplicate code %q", code)
		}

		seen[code] = true
	}
}

func TestGenerateFallbackOnExhaustedAttempts(t *testing.T) {
	generator := NewGenerator(checkerFunc(alwaysTaken))
	generator.now = func() time.Time { return time.Unix(0, 1234567890) }

	code, err := generator.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if !strings.HasPrefix(code, FallbackTag) {
		t.Errorf("fallback code %q does not start with tag %q", code, FallbackTag)
	}

	if len(code) != Length {
		t.Errorf("fallback code %q has length %d, want %d", code, len(code), Length)
	}

	for _, r := range code[len(FallbackTag):] {
		if r < '0' || r > '9' {
			t.Errorf("fallback code %q contains non-digit %q after the tag", code, r)
		}
	}

	generator.now = func() time.Time { return time.Unix(0, 987654321) }

	other, err := generator.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if other == code {
		t.Errorf("fallback codes for different times are equal: %q", code)
	}
}

func TestGenerateCheckerError(t *testing.T) {
	wantErr := errors.New("storage down")
	generator := NewGenerator(checkerFunc(func(context.Context, string) (bool, error) {
		return false, wantErr
	}))

	if _, err := generator.Generate(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("Generate error = %v, want %v", err, wantErr)
	}
}
