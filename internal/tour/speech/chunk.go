package speech

import (
	"fmt"
	"strings"
)

// ChunkOverflowError reports sentences that could not be split under the
// chunk ceiling and were emitted verbatim as oversized chunks. The chunks
// returned alongside it remain usable; nothing is truncated.
type ChunkOverflowError struct {
	Limit     int
	Oversized []int // chunk indexes that exceed Limit
}

func (e *ChunkOverflowError) Error() string {
	return fmt.Sprintf("%d chunk(s) exceed the %d character ceiling", len(e.Oversized), e.Limit)
}

// SplitIntoChunks splits cleaned narration into ordered chunks of at most
// maxChars, preferring paragraph boundaries, then sentence boundaries.
// A single sentence longer than maxChars is emitted as its own chunk and
// reported via *ChunkOverflowError; callers decide whether to proceed.
//
// Joining the chunks in order reproduces the input text modulo the
// whitespace used to separate paragraphs and sentences. Ordering is a
// correctness invariant: chunk audio is concatenated in the same order.
func SplitIntoChunks(text string, maxChars int) ([]string, error) {
	if maxChars < 1 {
		return nil, fmt.Errorf("max chars must be >= 1, got %d", maxChars)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	appendPiece := func(piece, sep string) {
		grown := len(piece)
		if current.Len() > 0 {
			grown += current.Len() + len(sep)
		}
		if grown > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, paragraph := range splitParagraphs(text) {
		if len(paragraph) <= maxChars {
			appendPiece(paragraph, "\n\n")
			continue
		}
		// Oversized paragraph: fall back to sentence boundaries.
		for _, sentence := range splitSentences(paragraph) {
			appendPiece(sentence, " ")
		}
	}
	flush()

	var oversized []int
	for i, chunk := range chunks {
		if len(chunk) > maxChars {
			oversized = append(oversized, i)
		}
	}
	if len(oversized) > 0 {
		return chunks, &ChunkOverflowError{Limit: maxChars, Oversized: oversized}
	}
	return chunks, nil
}

func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			paragraphs = append(paragraphs, part)
		}
	}
	return paragraphs
}

// splitSentences splits after '.', '!' or '?' followed by whitespace, with
// the terminator kept on the sentence.
func splitSentences(paragraph string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(paragraph)-1; i++ {
		c := paragraph[i]
		if (c == '.' || c == '!' || c == '?') && isSpace(paragraph[i+1]) {
			sentence := strings.TrimSpace(paragraph[start : i+1])
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(paragraph[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
