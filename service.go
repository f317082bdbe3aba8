package quizforge

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/quizforge/queue"
	"github.com/brunobiangulo/quizforge/store"
)

// Service is the upload/status entry point the HTTP surface (cmd/server)
// drives. It mirrors the teacher's Engine facade: a thin struct wrapping
// constructor-injected collaborators, exposing the operations a
// transport adapts to rather than any controller logic of its own (§9
// "duck-typed controllers -> explicit interfaces").
type Service struct {
	store *store.Store
	queue *queue.Queue
}

func NewService(s *store.Store, q *queue.Queue) *Service {
	return &Service{store: s, queue: q}
}

// Upload hashes the file at localPath, dedups against prior uploads by
// content hash, and — for a genuinely new document — creates a Pending
// Quiz and enqueues its processing job (SPEC_FULL §3 "created by the
// upload handler in Pending").
func (s *Service) Upload(ctx context.Context, localPath, originalName string) (*UploadOutcome, error) {
	hash, err := hashFile(localPath)
	if err != nil {
		return nil, NewPipelineError(KindBadRequest, "reading uploaded file", err)
	}

	kind := documentKindFromName(originalName)
	quizID, duplicate, err := s.store.UpsertQuiz(ctx, store.Quiz{
		Title:        originalName,
		DocumentURL:  localPath,
		DocumentKind: string(kind),
		ContentHash:  hash,
		State:        string(QuizPending),
	})
	if err != nil {
		return nil, NewPipelineError(KindApp, "persisting quiz", err)
	}

	if duplicate {
		return &UploadOutcome{DuplicateOf: quizID}, nil
	}

	job := queue.Job{QuizID: quizID, DocumentURL: localPath, DocumentType: parserFormatFromName(originalName)}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, NewPipelineError(KindApp, "enqueueing processing job", err)
	}

	sq, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, NewPipelineError(KindApp, "loading created quiz", err)
	}
	return &UploadOutcome{Quiz: toModelQuiz(*sq, nil)}, nil
}

// GetQuiz returns the full quiz record, including its resolved questions.
func (s *Service) GetQuiz(ctx context.Context, id int64) (*Quiz, error) {
	sq, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return nil, NewPipelineError(KindNotFound, fmt.Sprintf("quiz %d not found", id), err)
	}
	if sq.Deleted {
		return nil, NewPipelineError(KindNotFound, fmt.Sprintf("quiz %d not found", id), ErrQuizNotFound)
	}

	questions, err := s.store.GetQuestionsByQuiz(ctx, id)
	if err != nil {
		return nil, NewPipelineError(KindApp, "loading quiz questions", err)
	}
	return toModelQuiz(*sq, questions), nil
}

// ListQuizzes returns all non-deleted quizzes (without their questions).
func (s *Service) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	sqs, err := s.store.ListQuizzes(ctx)
	if err != nil {
		return nil, NewPipelineError(KindApp, "listing quizzes", err)
	}
	out := make([]Quiz, len(sqs))
	for i, sq := range sqs {
		out[i] = *toModelQuiz(sq, nil)
	}
	return out, nil
}

// DeleteQuiz soft-deletes a quiz so it disappears from the user-facing
// listing while its record is retained for inspection.
func (s *Service) DeleteQuiz(ctx context.Context, id int64) error {
	if err := s.store.SoftDeleteQuiz(ctx, id); err != nil {
		return NewPipelineError(KindApp, "deleting quiz", err)
	}
	return nil
}

// parseSQLiteTime parses SQLite's CURRENT_TIMESTAMP text format
// ("2006-01-02 15:04:05"), returning the zero time on failure.
func parseSQLiteTime(s string) time.Time {
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

// parseSectionCounts decodes the quizzes.section_counts JSON column into
// the model's []SectionCount plus its derived unique []string Sections
// list (SPEC_FULL §3: "for each section name in sectionCounts, it appears
// in sections"). An empty or malformed column yields both nil.
func parseSectionCounts(raw string) ([]SectionCount, []string) {
	if raw == "" {
		return nil, nil
	}
	var counts []SectionCount
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		return nil, nil
	}
	sections := make([]string, len(counts))
	for i, c := range counts {
		sections[i] = c.Name
	}
	return counts, sections
}

func documentKindFromName(name string) DocumentKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return DocumentPDF
	case ".docx", ".doc", ".odt", ".xlsx":
		return DocumentDocxLike
	default:
		return DocumentTextLike
	}
}

// parserFormatFromName maps a filename's extension to the format key the
// parser registry dispatches on (parser.Registry.Get), which is finer
// grained than DocumentKind: DocumentKind buckets .docx/.doc/.odt/.xlsx
// together for storage and display, but .xlsx must still reach
// XLSXParser rather than DOCXParser. This is the value carried on
// queue.Job.DocumentType, not the DocumentKind stored on the Quiz.
func parserFormatFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "pdf"
	case ".docx", ".doc", ".odt":
		return "docx"
	case ".xlsx", ".xls":
		return "xlsx"
	default:
		return "txt"
	}
}

func toModelQuiz(sq store.Quiz, questions []store.Question) *Quiz {
	q := &Quiz{
		ID:                 sq.ID,
		Title:              sq.Title,
		DocumentURL:        sq.DocumentURL,
		DocumentKind:       DocumentKind(sq.DocumentKind),
		ContentHash:        sq.ContentHash,
		State:              QuizState(sq.State),
		TotalQuestions:     sq.TotalQuestions,
		ProcessedQuestions: sq.ProcessedQuestions,
		Owner:              sq.Owner,
		Deleted:            sq.Deleted,
		CreatedAt:          parseSQLiteTime(sq.CreatedAt),
		UpdatedAt:          parseSQLiteTime(sq.UpdatedAt),
	}
	q.SectionCounts, q.Sections = parseSectionCounts(sq.SectionCounts)
	if questions != nil {
		q.Questions = make([]Question, len(questions))
		for i, sq := range questions {
			choices := make([]Choice, len(sq.Choices))
			for j, c := range sq.Choices {
				choices[j] = Choice{Key: c.Key, Text: c.Text, IsVisuallyMarked: c.IsVisuallyMarked}
			}
			q.Questions[i] = Question{
				Index:            sq.Index,
				Stem:             sq.Stem,
				Choices:          choices,
				CorrectAnswerKey: sq.CorrectAnswerKey,
				Explanation:      sq.Explanation,
				Source:           AnswerSource(sq.Source),
				Section:          sq.Section,
			}
		}
	}
	return q
}
