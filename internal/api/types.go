// Package api defines the REST surface of the quiz platform: the wire
// types, the typed client the portal talks through, and the error
// taxonomy callers branch on. The stub server reuses the same types so
// client and server cannot drift apart.
package api

import "time"

// Roles recognized by the platform.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// PDF document statuses. Processed and failed are terminal; everything
// else means the pipeline is still working and lists should keep polling.
const (
	PDFStatusUploaded   = "uploaded"
	PDFStatusProcessing = "processing"
	PDFStatusProcessed  = "processed"
	PDFStatusFailed     = "failed"
)

// Quiz statuses. Generating is the only non-terminal one.
const (
	QuizStatusGenerating = "generating"
	QuizStatusGenerated  = "generated"
	QuizStatusPublished  = "published"
	QuizStatusArchived   = "archived"
	QuizStatusFailed     = "failed"
)

// Question types.
const (
	QuestionMCQ         = "mcq"
	QuestionTrueFalse   = "true_false"
	QuestionShortAnswer = "short_answer"
)

// Attempt statuses as the server records them.
const (
	AttemptInProgress = "in_progress"
	AttemptCompleted  = "completed"
	AttemptAbandoned  = "abandoned"
)

// PDFTerminal reports whether a PDF status needs no further polling.
func PDFTerminal(status string) bool {
	return status == PDFStatusProcessed || status == PDFStatusFailed
}

// QuizTerminal reports whether a quiz status needs no further polling.
func QuizTerminal(status string) bool {
	return status != QuizStatusGenerating
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

type PDF struct {
	ID               string     `json:"id"`
	Filename         string     `json:"filename"`
	OriginalFilename string     `json:"original_filename"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Status           string     `json:"status"`
	PageCount        int        `json:"page_count"`
	WordCount        int        `json:"word_count"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// DifficultyMix is the requested or realized easy/medium/hard split.
type DifficultyMix struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

type Quiz struct {
	ID             string        `json:"id"`
	PDFID          string        `json:"pdf_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Status         string        `json:"status"`
	TotalQuestions int           `json:"total_questions"`
	Difficulty     DifficultyMix `json:"difficulty_distribution"`
	EstimatedTime  int           `json:"estimated_time"` // minutes
	ErrorMessage   string        `json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	PublishedAt    *time.Time    `json:"published_at,omitempty"`
}

// Option is one multiple-choice option. Keys are stable single letters
// ("A".."D") so a submitted answer survives option-text edits.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question as students see it. CorrectAnswer and Explanation are only
// populated on admin reads and on graded results, never inside an
// in-progress attempt.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"question_text"`
	Type          string   `json:"question_type"`
	Options       []Option `json:"options,omitempty"`
	Difficulty    string   `json:"difficulty"`
	Topic         string   `json:"topic"`
	Order         int      `json:"question_order"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuizDetail is the admin view: quiz plus full questions with keys.
type QuizDetail struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

type GenerateQuizRequest struct {
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	TotalQuestions int           `json:"total_questions"`
	Difficulty     DifficultyMix `json:"difficulty_distribution"`
}

type QuestionUpdate struct {
	Text          string   `json:"question_text,omitempty"`
	Options       []Option `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Topic         string   `json:"topic,omitempty"`
}

// AvailableQuiz annotates a published quiz with the student's history
// against it.
type AvailableQuiz struct {
	Quiz
	TimeLimitMinutes    int      `json:"time_limit_minutes"`
	PreviouslyAttempted bool     `json:"previously_attempted"`
	PreviousScore       *float64 `json:"previous_score,omitempty"`
}

// AttemptSnapshot is what GET /api/student/quiz/{id} returns: a fresh
// attempt, or the open one with saved answers and the remaining clock.
type AttemptSnapshot struct {
	AttemptID        string            `json:"attempt_id"`
	Quiz             Quiz              `json:"quiz"`
	Questions        []Question        `json:"questions"`
	Answers          map[string]string `json:"answers"` // question id -> submitted value
	CurrentIndex     int               `json:"current_index"`
	StartedAt        time.Time         `json:"started_at"`
	TimeLimitMinutes int               `json:"time_limit_minutes"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Resumed          bool              `json:"resumed"`
}

// AnswerSubmit upserts one answer. Exactly one of SelectedOption or
// AnswerText is set, depending on the question type.
type AnswerSubmit struct {
	QuestionID     string `json:"question_id"`
	SelectedOption string `json:"selected_option,omitempty"`
	AnswerText     string `json:"answer_text,omitempty"`
}

// CompleteRequest closes an attempt. Answers is the full map the client
// holds, keyed by question id; the server upserts it over anything saved
// incrementally, then grades. Auto marks countdown-forced submissions.
type CompleteRequest struct {
	Answers map[string]string `json:"answers"`
	Auto    bool              `json:"auto"`
}

type TopicPerformance struct {
	Topic          string  `json:"topic"`
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
	Accuracy       float64 `json:"accuracy"`
	Performance    string  `json:"performance"`
}

type Result struct {
	AttemptID        string             `json:"attempt_id"`
	QuizID           string             `json:"quiz_id"`
	QuizTitle        string             `json:"quiz_title"`
	Score            float64            `json:"score"`
	CorrectAnswers   int                `json:"correct_answers"`
	TotalQuestions   int                `json:"total_questions"`
	CompletedAt      time.Time          `json:"completed_at"`
	TimeTakenSeconds int                `json:"time_taken_seconds"`
	TopicPerformance []TopicPerformance `json:"topic_performance"`
	Recommendations  []string           `json:"recommendations"`
}

type HistoryItem struct {
	AttemptID   string     `json:"attempt_id"`
	QuizID      string     `json:"quiz_id"`
	QuizTitle   string     `json:"quiz_title"`
	Status      string     `json:"status"`
	Score       *float64   `json:"score,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type TopicMastery struct {
	Topic          string  `json:"topic"`
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
	Accuracy       float64 `json:"accuracy"`
	MasteryLevel   string  `json:"mastery_level"`
}

type ProgressStats struct {
	TotalAttempts int     `json:"total_attempts"`
	QuizzesTaken  int     `json:"quizzes_taken"`
	AverageScore  float64 `json:"average_score"`
	BestScore     float64 `json:"best_score"`
}

type Progress struct {
	Statistics   ProgressStats  `json:"statistics"`
	TopicMastery []TopicMastery `json:"topic_mastery"`
}

type OverviewCounts struct {
	Users struct {
		Total    int `json:"total"`
		Students int `json:"students"`
		Admins   int `json:"admins"`
	} `json:"users"`
	PDFs struct {
		Total     int `json:"total"`
		Processed int `json:"processed"`
		Failed    int `json:"failed"`
	} `json:"pdfs"`
	Quizzes struct {
		Total     int `json:"total"`
		Published int `json:"published"`
	} `json:"quizzes"`
	Attempts struct {
		Total        int     `json:"total"`
		Completed    int     `json:"completed"`
		AverageScore float64 `json:"average_score"`
	} `json:"attempts"`
}

type ActivityEntry struct {
	Kind      string    `json:"kind"` // pdf_uploaded, quiz_published, attempt_completed, ...
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type AnalyticsOverview struct {
	Counts         OverviewCounts  `json:"counts"`
	RecentActivity []ActivityEntry `json:"recent_activity"`
}

type QuestionStat struct {
	QuestionID  string  `json:"question_id"`
	Order       int     `json:"question_order"`
	Answered    int     `json:"answered"`
	Correct     int     `json:"correct"`
	CorrectRate float64 `json:"correct_rate"`
}

type QuizAnalytics struct {
	QuizID         string         `json:"quiz_id"`
	Title          string         `json:"title"`
	Attempts       int            `json:"attempts"`
	Completed      int            `json:"completed"`
	AverageScore   float64        `json:"average_score"`
	CompletionRate float64        `json:"completion_rate"`
	QuestionStats  []QuestionStat `json:"question_stats"`
}
