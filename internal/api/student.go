package api

import (
	"context"
	"net/http"
)

// AvailableQuizzes lists published quizzes annotated with the student's
// prior results.
func (c *Client) AvailableQuizzes(ctx context.Context) ([]AvailableQuiz, error) {
	var out []AvailableQuiz
	err := c.do(ctx, "available quizzes", http.MethodGet, "/api/student/quizzes/available", nil, &out)
	return out, err
}

// StartQuiz opens an attempt on a published quiz. If the student already
// has one in progress the backend returns it with saved answers and the
// remaining clock instead of starting over.
func (c *Client) StartQuiz(ctx context.Context, quizID string) (AttemptSnapshot, error) {
	var out AttemptSnapshot
	err := c.do(ctx, "start quiz", http.MethodGet, "/api/student/quiz/"+quizID, nil, &out)
	return out, err
}

// SubmitAnswer upserts one answer on an open attempt. Repeated calls for
// the same question overwrite.
func (c *Client) SubmitAnswer(ctx context.Context, attemptID string, ans AnswerSubmit) error {
	return c.do(ctx, "submit answer", http.MethodPost, "/api/student/attempt/"+attemptID+"/answer", ans, nil)
}

// CompleteAttempt grades and closes an attempt, sending the client's full
// answer map. auto marks submissions forced by an expired countdown.
func (c *Client) CompleteAttempt(ctx context.Context, attemptID string, answers map[string]string, auto bool) (Result, error) {
	var out Result
	err := c.do(ctx, "complete attempt", http.MethodPost, "/api/student/attempt/"+attemptID+"/complete",
		CompleteRequest{Answers: answers, Auto: auto}, &out)
	return out, err
}

// AbandonAttempt discards an open attempt without grading.
func (c *Client) AbandonAttempt(ctx context.Context, attemptID string) error {
	return c.do(ctx, "abandon attempt", http.MethodPost, "/api/student/attempt/"+attemptID+"/abandon", nil, nil)
}

func (c *Client) AttemptHistory(ctx context.Context) ([]HistoryItem, error) {
	var out []HistoryItem
	err := c.do(ctx, "attempt history", http.MethodGet, "/api/student/attempts/history", nil, &out)
	return out, err
}

func (c *Client) Progress(ctx context.Context) (Progress, error) {
	var out Progress
	err := c.do(ctx, "progress", http.MethodGet, "/api/student/progress", nil, &out)
	return out, err
}
