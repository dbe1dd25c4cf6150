package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	cursor := Cursor{
		CreatedAt: time.Date(2025, 8, 29, 10, 30, 0, 123456789, time.UTC),
		ID:        uuid.New(),
	}
	parsed, err := ParseCursor(cursor.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected cursor")
	}
	if !parsed.CreatedAt.Equal(cursor.CreatedAt) || parsed.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, cursor)
	}
}

func TestParseCursorEmptyMeansFirstPage(t *testing.T) {
	t.Parallel()

	parsed, err := ParseCursor("  ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != nil {
		t.Fatalf("expected nil cursor, got %+v", parsed)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseCursor("bm8tY29tbWE"); err == nil {
		t.Fatal("expected malformed error")
	}
}

func TestNormalizeLimitBounds(t *testing.T) {
	t.Parallel()

	cases := map[int]int{
		-1:  DefaultLimit,
		0:   DefaultLimit,
		7:   7,
		100: 100,
		500: MaxLimit,
	}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestTrimPageDetectsNextPage(t *testing.T) {
	t.Parallel()

	rows := []int{1, 2, 3, 4}
	page, more := TrimPage(rows, 3)
	if !more {
		t.Fatal("expected more pages")
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(page))
	}

	page, more = TrimPage(rows, 10)
	if more {
		t.Fatal("expected last page")
	}
	if len(page) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(page))
	}
}
