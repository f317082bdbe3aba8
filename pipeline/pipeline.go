// Package pipeline sequences a quiz upload through parse, orchestrate,
// persist, and cleanup stages (SPEC_FULL §4.6). The constructor-injected
// dependencies and per-stage slog timing mirror the teacher's
// Engine.Ingest ingestion method.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/brunobiangulo/quizforge"
	"github.com/brunobiangulo/quizforge/orchestrator"
	"github.com/brunobiangulo/quizforge/parser"
	"github.com/brunobiangulo/quizforge/store"
)

// Pipeline wires the parser registry, orchestrator, store, and (optional)
// blob store into one upload-to-persisted-quiz operation.
type Pipeline struct {
	parsers *parser.Registry
	orch    *orchestrator.Orchestrator
	store   *store.Store
	blobs   quizforge.BlobStore
}

// New constructs a Pipeline. blobs may be nil, in which case step 7
// (move to long-term storage) is skipped and the local file is kept.
func New(parsers *parser.Registry, orch *orchestrator.Orchestrator, s *store.Store, blobs quizforge.BlobStore) *Pipeline {
	return &Pipeline{parsers: parsers, orch: orch, store: s, blobs: blobs}
}

// Process marks the quiz Processing, parses the document at path,
// resolves every question's answer, and persists the results into the
// existing quiz record identified by quizID (SPEC_FULL §4.6). A parse
// failure is returned as a KindParser PipelineError.
func (p *Pipeline) Process(ctx context.Context, quizID int64, path, format string) error {
	start := time.Now()

	if err := p.store.UpdateQuizState(ctx, quizID, "Processing"); err != nil {
		return fmt.Errorf("marking quiz processing: %w", err)
	}

	slog.Info("pipeline: parse starting", "quiz_id", quizID, "format", format)

	doc, err := p.parse(ctx, path, format)
	if err != nil {
		if err := p.store.UpdateQuizState(ctx, quizID, "Failed"); err != nil {
			slog.Error("pipeline: failed to record parse failure", "quiz_id", quizID, "error", err)
		}
		return quizforge.NewPipelineError(quizforge.KindParser, "parsing document", err)
	}
	if len(doc.Questions) == 0 {
		if err := p.store.UpdateQuizState(ctx, quizID, "Failed"); err != nil {
			slog.Error("pipeline: failed to record parse failure", "quiz_id", quizID, "error", err)
		}
		return quizforge.NewPipelineError(quizforge.KindParser, "document contains zero questions", nil)
	}
	slog.Info("pipeline: parse complete", "quiz_id", quizID, "questions", len(doc.Questions), "elapsed", time.Since(start).Round(time.Millisecond))

	questions := toStoreQuestions(doc.Questions)
	if err := p.store.InsertQuestions(ctx, quizID, questions); err != nil {
		return fmt.Errorf("persisting parsed questions: %w", err)
	}

	orchStart := time.Now()
	unresolved := unresolvedQuestions(doc.Questions)
	resolutionByIndex := make(map[int]orchestrator.Resolution)
	if len(unresolved) > 0 {
		result := p.orch.Resolve(ctx, unresolved)
		for _, r := range result.Resolutions {
			resolutionByIndex[r.Index] = r
		}
		slog.Info("pipeline: orchestration complete", "quiz_id", quizID,
			"elapsed", time.Since(orchStart).Round(time.Millisecond),
			"providers_used", result.ProvidersUsed,
			"total_tokens", result.TotalTokens,
			"cache_hits", result.CacheHits,
			"cache_misses", result.CacheMisses,
			"failed_questions", result.FailedQuestions)
	}

	// Merge step (SPEC_FULL §4.6.4): visual-mark > orchestrator answer >
	// literal "A". A missing orchestrator answer that falls back to "A"
	// is still labelled AI_Generated and logged as a warning — it is
	// never left empty and never moves the quiz to Needs_Review (§9 open
	// question: that state is reserved, no code path assigns it).
	for _, q := range doc.Questions {
		if q.CorrectAnswerKey != "" {
			continue // visual mark already resolved this one
		}
		r, ok := resolutionByIndex[q.Index]
		if ok && !r.Failed && r.CorrectKey != "" {
			if err := p.store.UpdateQuestionAnswer(ctx, quizID, q.Index, r.CorrectKey, r.Explanation); err != nil {
				slog.Error("pipeline: failed to write resolved answer", "quiz_id", quizID, "question", q.Index, "error", err)
			}
			continue
		}
		slog.Warn("pipeline: no provider answered question, falling back to literal A", "quiz_id", quizID, "question", q.Index)
		if err := p.store.UpdateQuestionAnswer(ctx, quizID, q.Index, "A", ""); err != nil {
			slog.Error("pipeline: failed to write fallback answer", "quiz_id", quizID, "question", q.Index, "error", err)
		}
	}

	if err := p.store.UpdateQuizProgress(ctx, quizID, len(doc.Questions)); err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}

	countsJSON, err := computeSectionCounts(doc.Questions)
	if err != nil {
		return fmt.Errorf("computing section counts: %w", err)
	}

	if err := p.store.FinalizeQuiz(ctx, quizID, "Completed", countsJSON); err != nil {
		return fmt.Errorf("finalizing quiz: %w", err)
	}

	p.archiveToBlobStore(ctx, quizID, path)

	slog.Info("pipeline: quiz finalized", "quiz_id", quizID, "state", "Completed", "total_elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// archiveToBlobStore moves the source document to long-term storage
// (SPEC_FULL §4.6 step 7). Best-effort: on failure the local file is
// kept and a warning logged; it never fails the job.
func (p *Pipeline) archiveToBlobStore(ctx context.Context, quizID int64, path string) {
	if p.blobs == nil {
		return
	}

	url, _, err := p.blobs.UploadFile(path, filepath.Base(path), "")
	if err != nil {
		slog.Warn("pipeline: failed to archive source document, keeping local copy", "quiz_id", quizID, "path", path, "error", err)
		return
	}

	if err := p.store.UpdateQuizDocumentURL(ctx, quizID, url); err != nil {
		slog.Warn("pipeline: failed to record archived document url", "quiz_id", quizID, "error", err)
		return
	}

	if err := os.Remove(path); err != nil {
		slog.Warn("pipeline: failed to delete local copy after archiving", "quiz_id", quizID, "path", path, "error", err)
	}
}

func (p *Pipeline) parse(ctx context.Context, path, format string) (*parser.ParsedDocument, error) {
	pr, err := p.parsers.Get(format)
	if err != nil {
		return nil, err
	}
	return pr.Parse(ctx, path)
}

func toStoreQuestions(questions []parser.ParsedQuestion) []store.Question {
	out := make([]store.Question, len(questions))
	for i, q := range questions {
		choices := make([]store.Choice, len(q.Choices))
		for j, c := range q.Choices {
			choices[j] = store.Choice{Key: c.Key, Text: c.Text, IsVisuallyMarked: c.IsVisuallyMarked}
		}
		out[i] = store.Question{
			Index:            q.Index,
			Stem:             q.Stem,
			Choices:          choices,
			CorrectAnswerKey: q.CorrectAnswerKey,
			Source:           q.Source,
			Section:          q.Section,
		}
	}
	return out
}

// unresolvedQuestions returns the subset of parsed questions the
// orchestrator must resolve: those with no visually-marked answer
// (SPEC_FULL §4.6 precedence: visual mark > orchestrator > "A" literal).
func unresolvedQuestions(questions []parser.ParsedQuestion) []orchestrator.Question {
	var out []orchestrator.Question
	for _, q := range questions {
		if q.CorrectAnswerKey != "" {
			continue
		}
		choices := make([]orchestrator.Choice, len(q.Choices))
		for j, c := range q.Choices {
			choices[j] = orchestrator.Choice{Key: c.Key, Text: c.Text}
		}
		out = append(out, orchestrator.Question{Index: q.Index, Section: q.Section, Stem: q.Stem, Choices: choices})
	}
	return out
}

