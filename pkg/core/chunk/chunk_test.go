package chunk

import (
	"errors"
	"strings"
	"testing"
)

func TestTotal(t *testing.T) {
	tests := []struct {
		text    string
		maxSize int
		want    int
	}{
		{"", 100, 1},
		{"abc", 100, 1},
		{"abcd", 2, 2},
		{"abcde", 2, 3},
		{strings.Repeat("x", 1000), 100, 10},
		{strings.Repeat("x", 1001), 100, 11},
	}
	for _, tc := range tests {
		if got := Total(tc.text, tc.maxSize); got != tc.want {
			t.Errorf("Total(len=%d, %d) = %d, want %d", len(tc.text), tc.maxSize, got, tc.want)
		}
	}
}

func TestAt_RoundTrip(t *testing.T) {
	texts := []string{
		"",
		"short",
		strings.Repeat("the quick brown fox ", 500),
	}
	sizes := []int{1, 7, 100, 4096}

	for _, text := range texts {
		for _, size := range sizes {
			total := Total(text, size)
			var sb strings.Builder
			for i := 0; i < total; i++ {
				part, err := At(text, i, size)
				if err != nil {
					t.Fatalf("At(len=%d, %d, %d): %v", len(text), i, size, err)
				}
				if len(part) > size {
					t.Errorf("chunk %d exceeds max size: %d > %d", i, len(part), size)
				}
				sb.WriteString(part)
			}
			if sb.String() != text {
				t.Errorf("concatenated chunks do not reconstruct text (len=%d, size=%d)", len(text), size)
			}
		}
	}
}

func TestSlice_Deterministic(t *testing.T) {
	text := strings.Repeat("determinism ", 100)
	a, err1 := Slice(text, 2, 50)
	b, err2 := Slice(text, 2, 50)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if a != b {
		t.Error("Slice is not deterministic for identical arguments")
	}
}

func TestSlice_Metadata(t *testing.T) {
	text := strings.Repeat("z", 250)
	got, err := Slice(text, MetadataIndex, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "3 chunks") {
		t.Errorf("metadata = %q, want mention of 3 chunks", got)
	}
	if strings.Contains(got, "zzz") {
		t.Error("metadata must not include filing text")
	}
}

func TestSlice_Marker(t *testing.T) {
	got, err := Slice("abcdef", 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "[Chunk 2 of 2]") {
		t.Errorf("got %q, want [Chunk 2 of 2] prefix", got)
	}
	if !strings.HasSuffix(got, "def") {
		t.Errorf("got %q, want def suffix", got)
	}
}

func TestSlice_OutOfRange(t *testing.T) {
	text := strings.Repeat("y", 100)
	for _, idx := range []int{-2, 1, 5} {
		_, err := Slice(text, idx, 100)
		var oor *OutOfRangeError
		if !errors.As(err, &oor) {
			t.Errorf("Slice(idx=%d): expected *OutOfRangeError, got %v", idx, err)
			continue
		}
		if oor.Index != idx {
			t.Errorf("error index = %d, want %d", oor.Index, idx)
		}
		if !strings.Contains(oor.Error(), "0 to 0") {
			t.Errorf("error %q should report valid range", oor.Error())
		}
	}
}

func TestSlice_ExactBoundary(t *testing.T) {
	// total == len/maxSize exactly; index total must fail.
	text := strings.Repeat("a", 200)
	if got := Total(text, 100); got != 2 {
		t.Fatalf("Total = %d, want 2", got)
	}
	if _, err := Slice(text, 2, 100); err == nil {
		t.Error("Slice(total) should fail with OutOfRangeError")
	}
}
