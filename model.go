package quizforge

import "time"

// QuizState is the lifecycle state of a Quiz.
type QuizState string

const (
	QuizPending     QuizState = "Pending"
	QuizProcessing  QuizState = "Processing"
	QuizCompleted   QuizState = "Completed"
	QuizNeedsReview QuizState = "Needs_Review"
	QuizWaitingAI   QuizState = "Waiting_AI"
	QuizFailed      QuizState = "Failed"
)

// DocumentKind classifies the source document's parsing pipeline.
type DocumentKind string

const (
	DocumentPDF      DocumentKind = "pdf"
	DocumentDocxLike DocumentKind = "docx-like"
	DocumentTextLike DocumentKind = "text-like"
)

// AnswerSource records how a question's correctAnswerKey was determined.
type AnswerSource string

const (
	SourceStyleDetected AnswerSource = "StyleDetected"
	SourceAIGenerated   AnswerSource = "AI_Generated"
	SourceManual        AnswerSource = "Manual"
)

// Choice is a single answer option on a Question.
type Choice struct {
	Key              string `json:"key"`
	Text             string `json:"text"`
	IsVisuallyMarked bool   `json:"isVisuallyMarked"`
}

// Question is one multiple-choice item extracted from a document.
type Question struct {
	Index            int          `json:"index"`
	Stem             string       `json:"stem"`
	Choices          []Choice     `json:"choices"`
	CorrectAnswerKey string       `json:"correctAnswerKey"`
	Explanation      string       `json:"explanation,omitempty"`
	Source           AnswerSource `json:"source"`
	Section          string       `json:"section"`
}

// SectionCount pairs a discovered section name with how many questions
// landed in it. A list, not a map, because section names may contain '.'
// and would collide with dotted-path update semantics in document stores.
type SectionCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Quiz is the durable record of one ingested document and its resolved
// questions.
type Quiz struct {
	ID                 int64          `json:"id"`
	Title              string         `json:"title"`
	DocumentURL        string         `json:"documentUrl"`
	DocumentKind       DocumentKind   `json:"documentKind"`
	ContentHash        string         `json:"contentHash"`
	State              QuizState      `json:"state"`
	TotalQuestions     int            `json:"totalQuestions"`
	ProcessedQuestions int            `json:"processedQuestions"`
	Questions          []Question     `json:"questions"`
	Sections           []string       `json:"sections"`
	SectionCounts      []SectionCount `json:"sectionCounts"`
	Owner              string         `json:"owner"`
	Deleted            bool           `json:"deleted"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// CachedAnswer is a previously resolved (stem, choices) pair.
type CachedAnswer struct {
	StemHash    string    `json:"stemHash"`
	ChoicesHash string    `json:"choicesHash"`
	CorrectKey  string    `json:"correctKey"`
	Explanation string    `json:"explanation,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Provider    string    `json:"provider"`
	HitCount    int       `json:"hitCount"`
	LastHitAt   time.Time `json:"lastHitAt"`
}

// Job is a unit of work delivered by the queue to the worker.
type Job struct {
	ID           string    `json:"id"`
	QuizID       int64     `json:"quizId"`
	DocumentURL  string    `json:"documentUrl"`
	DocumentType string    `json:"documentType"`
	Attempts     int       `json:"attempts"`
	NextAttempt  time.Time `json:"nextAttempt"`
}

// UploadOutcome is the return type of an upload: either a freshly created
// Quiz or a pointer to the pre-existing duplicate. Kept as a sealed
// alternative rather than smuggling isDuplicate/existingQuizID fields onto
// Quiz itself.
type UploadOutcome struct {
	Quiz        *Quiz
	DuplicateOf int64
}

// IsDuplicate reports whether this outcome refers to an existing quiz
// rather than a newly created one.
func (o UploadOutcome) IsDuplicate() bool {
	return o.DuplicateOf != 0
}
