package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/pkg/app"
	"github.com/xhad/scholar/pkg/queue"
)

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// ingestFile uploads a local PDF and runs it through the ingestion queue
// contract, so the CLI exercises the same handler path as the server.
func ingestFile(a *app.App, ownerID, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %v", path, err)
	}

	ctx := context.Background()
	documentID := uuid.NewString()
	objectKey := fmt.Sprintf("uploads/%s/%s.pdf", ownerID, documentID)

	if err := a.Objects.Put(ctx, objectKey, raw, "application/pdf"); err != nil {
		return err
	}
	if err := a.Papers.CreatePaper(ctx, models.Paper{
		ID:        documentID,
		OwnerID:   ownerID,
		ObjectKey: objectKey,
		Title:     strings.TrimSuffix(filepath.Base(path), ".pdf"),
		Status:    models.StatusPending,
	}); err != nil {
		return err
	}

	msg, err := queue.NewIngestMessage(models.IngestRequest{
		OwnerID:    ownerID,
		DocumentID: documentID,
		ObjectKey:  objectKey,
	})
	if err != nil {
		return err
	}

	bar := getSpinner(fmt.Sprintf("Ingesting %s...", filepath.Base(path)))
	failed := newIngestDispatcher(a).HandleBatch(ctx, []queue.Message{msg})
	bar.Finish()
	fmt.Print("\r")

	if len(failed) > 0 {
		paper, _ := a.Papers.GetPaper(ctx, ownerID, documentID)
		color.Red("✗ Ingestion failed (status: %s)\n", paper.Status)
		return fmt.Errorf("failed to ingest %s", path)
	}

	paper, err := a.Papers.GetPaper(ctx, ownerID, documentID)
	if err != nil {
		return err
	}
	color.Green("✓ Ingested %q (%d pages) as %s\n", paper.Title, paper.PageCount, documentID)
	return nil
}

// importArxiv fetches an abstract page and ingests it as a metadata-only
// paper.
func importArxiv(a *app.App, ownerID, arxivID string) error {
	ctx := context.Background()

	bar := getSpinner(fmt.Sprintf("Fetching arXiv:%s...", arxivID))
	meta, err := a.Arxiv.Fetch(ctx, arxivID)
	bar.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	documentID := uuid.NewString()
	if err := a.Papers.CreatePaper(ctx, models.Paper{
		ID:       documentID,
		OwnerID:  ownerID,
		Title:    meta.Title,
		Authors:  meta.Authors,
		Abstract: meta.Abstract,
		Status:   models.StatusPending,
	}); err != nil {
		return err
	}

	if err := a.Ingestion.Ingest(ctx, models.IngestRequest{
		OwnerID:      ownerID,
		DocumentID:   documentID,
		Title:        meta.Title,
		Authors:      meta.Authors,
		MetadataOnly: true,
		Abstract:     meta.Abstract,
	}); err != nil {
		return err
	}

	color.Green("✓ Imported %q by %s\n", meta.Title, meta.Authors)
	return nil
}

func newIngestDispatcher(a *app.App) *queue.Dispatcher {
	return queue.NewDispatcher(func(ctx context.Context, msg queue.Message) error {
		var req models.IngestRequest
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			return fmt.Errorf("failed to decode ingest message: %v", err)
		}
		return a.Ingestion.Ingest(ctx, req)
	})
}

func askOnce(a *app.App, ownerID, question string) error {
	answer, err := a.Query.Answer(context.Background(), models.QuestionRequest{
		OwnerID:  ownerID,
		Question: question,
	})
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	printCitations(answer.Citations)
	return nil
}

func chatLoop(a *app.App, ownerID string) error {
	color.Cyan("\nChat with your papers (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var history []models.ChatMessage

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.ToLower(question) == "exit" {
			break
		}

		spinner := getSpinner("Searching your papers...")
		answer, err := a.Query.Answer(context.Background(), models.QuestionRequest{
			OwnerID:  ownerID,
			Question: question,
			History:  history,
		})
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("Assistant: %s\n", answer.Text)
		printCitations(answer.Citations)

		history = append(history,
			models.ChatMessage{Role: "user", Content: question},
			models.ChatMessage{Role: "assistant", Content: answer.Text})
	}

	return nil
}

func printCitations(citations []models.Citation) {
	if len(citations) == 0 {
		return
	}
	color.Yellow("\nSources:")
	for i, c := range citations {
		authors := c.Authors
		if authors == "" {
			authors = "Unknown"
		}
		color.Yellow("  [%d] %s by %s (%.4f)", i+1, c.Title, authors, c.Score)
	}
}
