// Package chunk splits extracted filing text into bounded-size segments for
// downstream consumption. Chunk boundaries are a pure function of text length
// and chunk size, so repeated calls over the same text are deterministic and
// safe to make concurrently.
package chunk

import "fmt"

// MetadataIndex requests a description of the chunk layout instead of content.
const MetadataIndex = -1

// OutOfRangeError reports a chunk index outside the valid range.
type OutOfRangeError struct {
	Index int
	Total int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("chunk index %d out of range: valid indexes are 0 to %d, or -1 for chunk count", e.Index, e.Total-1)
}

// Total returns the number of chunks text splits into at maxSize bytes per
// chunk. Empty text still counts as one chunk.
func Total(text string, maxSize int) int {
	if maxSize < 1 {
		maxSize = 1
	}
	n := (len(text) + maxSize - 1) / maxSize
	if n < 1 {
		n = 1
	}
	return n
}

// At returns the raw substring for chunk index. Concatenating At for every
// index 0..Total-1 reconstructs text exactly.
func At(text string, index, maxSize int) (string, error) {
	if maxSize < 1 {
		maxSize = 1
	}
	total := Total(text, maxSize)
	if index < 0 || index >= total {
		return "", &OutOfRangeError{Index: index, Total: total}
	}
	start := index * maxSize
	end := start + maxSize
	if end > len(text) {
		end = len(text)
	}
	if start > len(text) {
		start = len(text)
	}
	return text[start:end], nil
}

// Slice returns chunk index of text prefixed with a position marker, or a
// metadata description when index is MetadataIndex.
func Slice(text string, index, maxSize int) (string, error) {
	if maxSize < 1 {
		maxSize = 1
	}
	total := Total(text, maxSize)
	if index == MetadataIndex {
		return fmt.Sprintf("The filing text is %d characters long and is split into %d chunks of up to %d characters each. Request chunk indexes 0 through %d.",
			len(text), total, maxSize, total-1), nil
	}
	part, err := At(text, index, maxSize)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[Chunk %d of %d]\n\n%s", index+1, total, part), nil
}
