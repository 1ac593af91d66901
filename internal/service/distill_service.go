package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/scribesync/api/internal/client"
	"github.com/scribesync/api/internal/model"
)

// DefaultDistillPrompt is the system prompt used when no override is
// configured. The output sections match what the save stage files away
// as the final Markdown note.
const DefaultDistillPrompt = `You are an assistant that distills raw notes into a concise, well-organized Markdown document.

Given the text of a notebook, produce:

### Summary
A few sentences capturing the main themes.

### Action Items
A bulleted list of concrete follow-ups mentioned in the notes. Write "None" if there are no action items.

### Notes
The cleaned-up notes themselves, organized under headings where the content suggests them.

Preserve the author's wording where possible. Do not invent content that is not in the notes.`

// DistillService runs the three-stage text distillation: queue copies the
// next raw transcript into the temp workspace, process runs it through the
// language model, save files the result and archives the original. Each
// stage is a separate call so the external scheduler can drive them on
// successive ticks.
type DistillService struct {
	library *Library
	llm     client.Distiller
	prompt  string
}

func NewDistillService(library *Library, llm client.Distiller, prompt string) *DistillService {
	if prompt == "" {
		prompt = DefaultDistillPrompt
	}
	return &DistillService{library: library, llm: llm, prompt: prompt}
}

// IsConfigured reports whether a language model is wired in.
func (s *DistillService) IsConfigured() bool {
	return s.llm != nil
}

// Queue picks the next raw transcript from the notebook folder and copies it
// into the temp workspace. Returns no_files when there is nothing to do.
func (s *DistillService) Queue(ctx context.Context) (*model.QueueResponse, error) {
	texts, err := s.library.ListNotebookTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	if len(texts) == 0 {
		return &model.QueueResponse{Status: model.StatusNoFiles}, nil
	}

	next := texts[0]
	content, err := s.library.Files().Download(ctx, next.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to download %q: %w", next.Name, err)
	}

	tempID, err := s.library.StoreTemp(ctx, next.Name, content)
	if err != nil {
		return nil, fmt.Errorf("failed to stage %q: %w", next.Name, err)
	}

	log.Printf("[Distill] queued %q as temp %s", next.Name, tempID)
	return &model.QueueResponse{
		Status:       model.StatusQueued,
		TempID:       tempID,
		OriginalID:   next.ID,
		OriginalFile: next.Name,
	}, nil
}

// Process runs the staged transcript through the language model and stores
// the distilled Markdown next to it in the temp workspace.
func (s *DistillService) Process(ctx context.Context, tempID string) (*model.ProcessResponse, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("distillation not configured")
	}

	content, err := s.library.Files().Download(ctx, tempID)
	if err != nil {
		return nil, fmt.Errorf("failed to download staged file: %w", err)
	}

	distilled, err := s.llm.ChatCompletion(ctx, s.prompt, string(content))
	if err != nil {
		return nil, fmt.Errorf("distillation failed: %w", err)
	}

	tempName, err := s.library.Files().GetName(ctx, tempID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staged file name: %w", err)
	}

	tempFolderID, err := s.library.TempFolderID(ctx)
	if err != nil {
		return nil, err
	}
	resultID, err := s.library.Files().Upload(ctx, tempFolderID, "result_"+tempName, "text/markdown", []byte(distilled))
	if err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}

	log.Printf("[Distill] processed temp %s into result %s", tempID, resultID)
	return &model.ProcessResponse{Status: model.StatusProcessed, ResultID: resultID}, nil
}

// Save files the distilled Markdown into the notebook folder, archives the
// original transcript, and cleans up the temp workspace.
func (s *DistillService) Save(ctx context.Context, resultID, originalID string) (*model.SaveResponse, error) {
	markdown, err := s.library.Files().Download(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to download result: %w", err)
	}

	originalName, err := s.library.Files().GetName(ctx, originalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve original name: %w", err)
	}

	mdName := strings.TrimSuffix(originalName, ".txt") + ".md"
	mdFileID, err := s.library.SaveNotebookFile(ctx, mdName, "text/markdown", markdown)
	if err != nil {
		return nil, fmt.Errorf("failed to save %q: %w", mdName, err)
	}

	if err := s.library.ArchiveOriginal(ctx, originalID, originalName); err != nil {
		return nil, fmt.Errorf("failed to archive %q: %w", originalName, err)
	}

	s.cleanupTemp(ctx, resultID, originalName)

	log.Printf("[Distill] saved %q as %s, archived original %s", mdName, mdFileID, originalID)
	return &model.SaveResponse{Status: model.StatusCompleted, MarkdownFileID: mdFileID}, nil
}

// cleanupTemp removes the result and the staged copy. Leftovers in the temp
// folder are harmless, so failures are only logged.
func (s *DistillService) cleanupTemp(ctx context.Context, resultID, originalName string) {
	if err := s.library.Files().Delete(ctx, resultID); err != nil {
		log.Printf("[Distill] failed to delete result %s: %v", resultID, err)
	}
	tempID, err := s.library.FindTemp(ctx, originalName)
	if err != nil || tempID == "" {
		return
	}
	if err := s.library.Files().Delete(ctx, tempID); err != nil {
		log.Printf("[Distill] failed to delete temp %s: %v", tempID, err)
	}
}
