package speech

import (
	"errors"
	"strings"
	"testing"
)

// joinable strips all whitespace so chunk round-trips can be compared
// independent of the separators used when packing.
func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestSplitIntoChunksRoundTrip(t *testing.T) {
	t.Parallel()

	text := "First paragraph about the street.\n\nSecond paragraph with more detail. It has two sentences.\n\nThird paragraph closes the loop."
	for _, limit := range []int{40, 60, 120, 10000} {
		chunks, err := SplitIntoChunks(text, limit)
		if err != nil {
			t.Fatalf("limit %d: %v", limit, err)
		}
		if squash(strings.Join(chunks, " ")) != squash(text) {
			t.Fatalf("limit %d: chunks do not reproduce input\nchunks: %q", limit, chunks)
		}
		for i, chunk := range chunks {
			if len(chunk) > limit {
				t.Fatalf("limit %d: chunk %d has %d chars", limit, i, len(chunk))
			}
		}
	}
}

func TestSplitIntoChunksParagraphPacking(t *testing.T) {
	t.Parallel()

	// Two paragraphs of ~21k chars each (42k total); ceiling 35k forces
	// exactly two chunks, both ending at a paragraph or sentence boundary.
	sentence := strings.Repeat("The corner building kept its original facade. ", 460)
	paragraph := strings.TrimSpace(sentence)
	text := paragraph + "\n\n" + paragraph

	chunks, err := SplitIntoChunks(text, 35000)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) > 35000 {
		t.Fatalf("first chunk exceeds ceiling: %d", len(chunks[0]))
	}
	for i, chunk := range chunks {
		if !strings.HasSuffix(strings.TrimSpace(chunk), ".") {
			t.Fatalf("chunk %d does not end at a sentence boundary", i)
		}
	}
}

func TestSplitIntoChunksOversizedParagraph(t *testing.T) {
	t.Parallel()

	// One paragraph of 5 sentences, each ~50 chars, ceiling 120: the
	// paragraph alone exceeds the ceiling and must split by sentence.
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString("This sentence describes one more stop on the walk. ")
	}
	text := strings.TrimSpace(b.String())

	chunks, err := SplitIntoChunks(text, 120)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 120 {
			t.Fatalf("chunk %d exceeds ceiling: %d", i, len(chunk))
		}
	}
	if squash(strings.Join(chunks, " ")) != squash(text) {
		t.Fatalf("sentence split lost content")
	}
}

func TestSplitIntoChunksOversizedSentence(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300) // no sentence boundary at all
	text := "Short opener. " + long

	chunks, err := SplitIntoChunks(text, 100)
	var overflow *ChunkOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected ChunkOverflowError, got %v", err)
	}
	if overflow.Limit != 100 || len(overflow.Oversized) != 1 {
		t.Fatalf("unexpected overflow report: %+v", overflow)
	}
	// The oversized chunk must be the literal unsplit sentence.
	found := false
	for _, chunk := range chunks {
		if chunk == long {
			found = true
		}
	}
	if !found {
		t.Fatalf("oversized sentence must be emitted verbatim, chunks: %d", len(chunks))
	}
	if squash(strings.Join(chunks, " ")) != squash(text) {
		t.Fatalf("overflow handling lost content")
	}
}

func TestSplitIntoChunksEdgeInputs(t *testing.T) {
	t.Parallel()

	if chunks, err := SplitIntoChunks("", 100); err != nil || chunks != nil {
		t.Fatalf("empty input: chunks=%v err=%v", chunks, err)
	}
	if _, err := SplitIntoChunks("text", 0); err == nil {
		t.Fatalf("non-positive ceiling must be rejected")
	}
}
