package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/scholar/internal/models"
)

func result(doc, title, text string, score float32) models.RetrievalResult {
	return models.RetrievalResult{
		DocumentID: doc,
		Title:      title,
		Authors:    "Jane Doe",
		Text:       text,
		Score:      score,
	}
}

func TestAssemble_Empty(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})

	contextText, cites := a.Assemble(nil)

	assert.Empty(t, contextText)
	assert.Empty(t, cites)
}

func TestAssemble_FormatsNumberedBlocks(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MaxContextChars: 10000})

	contextText, cites := a.Assemble([]models.RetrievalResult{
		result("p1", "Paper One", "first chunk", 0.91),
		result("p2", "Paper Two", "second chunk", 0.85),
	})

	assert.Contains(t, contextText, "[Source 1: Paper One by Jane Doe]\nfirst chunk")
	assert.Contains(t, contextText, "[Source 2: Paper Two by Jane Doe]\nsecond chunk")
	assert.Contains(t, contextText, "\n---\n")
	assert.True(t, strings.Index(contextText, "Source 1") < strings.Index(contextText, "Source 2"))

	require.Len(t, cites, 2)
	assert.Equal(t, "p1", cites[0].DocumentID)
	assert.Equal(t, "p2", cites[1].DocumentID)
}

func TestAssemble_MissingMetadataPlaceholders(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MaxContextChars: 10000})

	contextText, _ := a.Assemble([]models.RetrievalResult{
		{DocumentID: "p1", Text: "some chunk", Score: 0.5},
	})

	assert.Contains(t, contextText, "[Source 1: Document 1 by Unknown]")
}

func TestAssemble_DropsLowestRankedToFitBudget(t *testing.T) {
	long := strings.Repeat("w", 300)
	a := NewAssembler(AssemblerConfig{MaxContextChars: 700})

	contextText, cites := a.Assemble([]models.RetrievalResult{
		result("p1", "First", long, 0.9),
		result("p2", "Second", long, 0.8),
		result("p3", "Third", long, 0.7),
	})

	assert.Contains(t, contextText, "Source 1")
	assert.Contains(t, contextText, "Source 2")
	assert.NotContains(t, contextText, "Source 3")
	assert.LessOrEqual(t, len(contextText), 700)

	// Dropped sources are not cited.
	require.Len(t, cites, 2)
	assert.Equal(t, "p1", cites[0].DocumentID)
	assert.Equal(t, "p2", cites[1].DocumentID)
}

func TestAssemble_FirstSourceAlwaysIncluded(t *testing.T) {
	long := strings.Repeat("w", 500)
	a := NewAssembler(AssemblerConfig{MaxContextChars: 100})

	contextText, cites := a.Assemble([]models.RetrievalResult{
		result("p1", "Only", long, 0.9),
	})

	assert.Contains(t, contextText, "Source 1")
	assert.Len(t, cites, 1)
}

func TestAssemble_DeduplicatesCitationsByDocument(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MaxContextChars: 10000})

	_, cites := a.Assemble([]models.RetrievalResult{
		result("p1", "Paper One", "chunk a", 0.93),
		result("p2", "Paper Two", "chunk b", 0.88),
		result("p1", "Paper One", "chunk c", 0.81),
	})

	require.Len(t, cites, 2)
	// First occurrence wins, keeping the highest-ranked score.
	assert.Equal(t, "p1", cites[0].DocumentID)
	assert.InDelta(t, 0.93, cites[0].Score, 1e-9)
	assert.Equal(t, "p2", cites[1].DocumentID)
}

func TestAssemble_ScoreRoundedToFourPlaces(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MaxContextChars: 10000})

	_, cites := a.Assemble([]models.RetrievalResult{
		result("p1", "Paper One", "chunk", 0.123456789),
	})

	require.Len(t, cites, 1)
	assert.Equal(t, 0.1235, cites[0].Score)
}
