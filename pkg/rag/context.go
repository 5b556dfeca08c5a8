package rag

import (
	"fmt"
	"math"
	"strings"

	"github.com/xhad/scholar/internal/models"
)

type AssemblerConfig struct {
	MaxContextChars int
}

// ContextAssembler renders retrieved chunks into the prompt context and the
// citation list. Sources are numbered in rank order; the numbering matches
// the [Source N] labels the model is told to cite.
type ContextAssembler struct {
	config AssemblerConfig
}

func NewAssembler(config AssemblerConfig) *ContextAssembler {
	if config.MaxContextChars <= 0 {
		config.MaxContextChars = 8000
	}
	return &ContextAssembler{config: config}
}

// Assemble renders results into a context string under the character budget
// and builds citations deduplicated by document. When the budget is too small
// for all sources, the lowest-ranked ones are dropped whole; a source is never
// cut mid-text. The first source is always included even if oversized, so a
// non-empty retrieval always yields non-empty context.
func (a *ContextAssembler) Assemble(results []models.RetrievalResult) (string, []models.Citation) {
	if len(results) == 0 {
		return "", nil
	}

	var blocks []string
	var included []models.RetrievalResult
	total := 0
	for i, r := range results {
		title := r.Title
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("Document %d", i+1)
		}
		authors := r.Authors
		if strings.TrimSpace(authors) == "" {
			authors = "Unknown"
		}
		block := fmt.Sprintf("[Source %d: %s by %s]\n%s\n", i+1, title, authors, r.Text)

		cost := len(block)
		if len(blocks) > 0 {
			cost += len(blockSeparator)
		}
		if total+cost > a.config.MaxContextChars && len(blocks) > 0 {
			break
		}

		blocks = append(blocks, block)
		included = append(included, r)
		total += cost
	}

	return strings.Join(blocks, blockSeparator), citations(included)
}

const blockSeparator = "\n---\n"

// citations collapses included results to one citation per document, keeping
// the highest-ranked chunk's score.
func citations(results []models.RetrievalResult) []models.Citation {
	seen := make(map[string]bool, len(results))
	var cites []models.Citation
	for _, r := range results {
		if seen[r.DocumentID] {
			continue
		}
		seen[r.DocumentID] = true
		cites = append(cites, models.Citation{
			DocumentID: r.DocumentID,
			Title:      r.Title,
			Authors:    r.Authors,
			Score:      roundScore(r.Score),
		})
	}
	return cites
}

// roundScore rounds to 4 decimal places, once, at citation construction.
func roundScore(score float32) float64 {
	return math.Round(float64(score)*10000) / 10000
}
