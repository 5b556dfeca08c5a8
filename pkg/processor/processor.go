package processor

import (
	"log"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xhad/scholar/internal/models"
)

type ProcessorConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	RespectSentences bool
	// Sentence boundary search window around the default cut point. A boundary
	// is accepted when it falls in (start, end+BoundarySlack].
	BoundaryBack    int
	BoundaryForward int
	BoundarySlack   int
}

type Processor struct {
	config ProcessorConfig
}

var (
	sentenceEnd = regexp.MustCompile(`[.!?]\s+`)
	pageNumber  = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
	whitespace  = regexp.MustCompile(`\s+`)
)

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.BoundaryBack == 0 {
		config.BoundaryBack = 200
	}
	if config.BoundaryForward == 0 {
		config.BoundaryForward = 100
	}
	if config.BoundarySlack == 0 {
		config.BoundarySlack = 50
	}

	return Processor{
		config: config,
	}
}

func New() Processor {
	return NewWithConfig(ProcessorConfig{RespectSentences: true})
}

// CleanText normalizes extracted text before chunking: merged ligature glyphs
// are expanded, standalone page-number lines removed, and whitespace collapsed.
func CleanText(text string) string {
	replacer := strings.NewReplacer("ﬁ", "fi", "ﬂ", "fl", "ﬀ", "ff")
	text = replacer.Replace(text)
	text = pageNumber.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Chunk cleans the input once, then splits it into overlapping segments of at
// most ChunkSize characters. Each chunk after the first overlaps its
// predecessor's tail by ChunkOverlap characters unless a sentence boundary
// shifted the cut. Empty input yields no chunks.
func (p Processor) Chunk(text string) []models.Chunk {
	if text == "" {
		return nil
	}
	text = CleanText(text)
	textLen := len(text)
	if textLen == 0 {
		return nil
	}

	step := p.config.ChunkSize - p.config.ChunkOverlap
	if step < 1 {
		step = 1
	}
	maxIterations := textLen/step + 10

	var chunks []models.Chunk
	start := 0
	index := 0
	iteration := 0

	for start < textLen && iteration < maxIterations {
		iteration++

		end := start + p.config.ChunkSize
		if end > textLen {
			end = textLen
		}

		if end < textLen && p.config.RespectSentences {
			if boundary := p.lastSentenceBoundary(text, start, end); boundary > 0 {
				end = boundary
			}
		}
		end = alignToRune(text, end)

		if content := strings.TrimSpace(text[start:end]); content != "" {
			chunks = append(chunks, models.Chunk{
				Index: index,
				Start: start,
				End:   end,
				Text:  content,
			})
			index++
		}

		if end >= textLen {
			break
		}

		next := end - p.config.ChunkOverlap
		// Force forward progress even when the overlap swallows the whole chunk.
		if next <= start {
			next = start + 1
		}
		start = alignToRune(text, next)
	}

	if iteration >= maxIterations {
		log.Printf("chunking stopped after %d iterations, returning %d chunks", iteration, len(chunks))
	}

	return chunks
}

// lastSentenceBoundary searches a bounded window around end for the last
// sentence-terminator-plus-whitespace position inside (start, end+slack].
// Returns -1 when no candidate exists.
func (p Processor) lastSentenceBoundary(text string, start, end int) int {
	searchStart := end - p.config.BoundaryBack
	if searchStart < start {
		searchStart = start
	}
	searchEnd := end + p.config.BoundaryForward
	if searchEnd > len(text) {
		searchEnd = len(text)
	}

	boundary := -1
	for _, loc := range sentenceEnd.FindAllStringIndex(text[searchStart:searchEnd], -1) {
		pos := searchStart + loc[1]
		if pos > start && pos <= end+p.config.BoundarySlack {
			boundary = pos
		}
	}
	return boundary
}

// alignToRune moves pos backwards to the nearest rune start so a cut never
// splits a multi-byte character.
func alignToRune(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}
