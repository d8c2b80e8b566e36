package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"organized-data/internal/models"
)

var ErrChunkingConfig = errors.New("invalid chunking configuration")

// ChunkingConfigError is returned for a chunk size / overlap pair that cannot
// produce chunks. Values are never clamped.
type ChunkingConfigError struct {
	ChunkSize int
	Overlap   int
}

func (e *ChunkingConfigError) Error() string {
	return fmt.Sprintf("%s: chunk size %d, overlap %d (need chunk size > 0, overlap >= 0, chunk size > overlap)",
		ErrChunkingConfig, e.ChunkSize, e.Overlap)
}

func (e *ChunkingConfigError) Unwrap() error { return ErrChunkingConfig }

// separators go from the most to the least natural break: paragraph, line,
// sentence, word, then a hard cut between characters.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text into overlapping chunks of at most ChunkSize runes.
// It holds no state between calls.
type Chunker struct {
	chunkSize int
	overlap   int
	splitter  textsplitter.RecursiveCharacter
}

func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 || overlap < 0 || chunkSize <= overlap {
		return nil, &ChunkingConfigError{ChunkSize: chunkSize, Overlap: overlap}
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(separators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

func (c *Chunker) ChunkSize() int { return c.chunkSize }
func (c *Chunker) Overlap() int   { return c.overlap }

// Split returns the chunks of text in source order. No chunk is longer than
// the chunk size in runes. Whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) ([]models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(parts))
	cursor := 0
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.Index(text[cursor:], part); i >= 0 {
			part = c.restorePeriod(part, text[cursor+i+len(part):])
		}
		for _, piece := range c.fit(part) {
			offset := -1
			if i := strings.Index(text[cursor:], piece); i >= 0 {
				offset = cursor + i
				cursor = offset + 1
			}
			chunks = append(chunks, models.Chunk{
				Index:   len(chunks),
				Offset:  offset,
				Content: piece,
			})
		}
	}
	return chunks, nil
}

// restorePeriod puts back the full stop the sentence separator consumed at
// the end of a chunk, when the chunk has room for it.
func (c *Chunker) restorePeriod(part, rest string) string {
	if rest != "." && !strings.HasPrefix(rest, ". ") && !strings.HasPrefix(rest, ".\n") {
		return part
	}
	if utf8.RuneCountInString(part) >= c.chunkSize {
		return part
	}
	return part + "."
}

// fit cuts a part the splitter left longer than the chunk size, at the last
// whitespace inside the window or else on a rune boundary.
func (c *Chunker) fit(part string) []string {
	var out []string
	for utf8.RuneCountInString(part) > c.chunkSize {
		runes := []rune(part)
		cut := c.chunkSize
		for i := c.chunkSize; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[:cut])))
		part = strings.TrimSpace(string(runes[cut:]))
	}
	if part != "" {
		out = append(out, part)
	}
	return out
}

// SplitDocuments turns documents that were already split by the caller into
// chunks, keeping their order and content.
func SplitDocuments(docs []schema.Document) []models.Chunk {
	chunks := make([]models.Chunk, 0, len(docs))
	for _, d := range docs {
		chunks = append(chunks, models.Chunk{
			Index:   len(chunks),
			Offset:  -1,
			Content: d.PageContent,
		})
	}
	return chunks
}
