package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxUploadBytes caps PDF uploads. Matches the platform's server-side
// limit so oversized files are rejected before any bytes leave the
// machine.
const MaxUploadBytes = 50 << 20

type UploadPDFParams struct {
	Path        string
	Title       string
	Description string
}

func validatePDFUpload(p UploadPDFParams, size int64) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("upload pdf: title is required: %w", ErrValidation)
	}
	if ext := strings.ToLower(filepath.Ext(p.Path)); ext != ".pdf" {
		return fmt.Errorf("upload pdf: %q is not a .pdf file: %w", filepath.Base(p.Path), ErrValidation)
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("upload pdf: file is %d bytes, limit is %d: %w", size, int64(MaxUploadBytes), ErrValidation)
	}
	return nil
}

// UploadPDF sends a document for processing. The file is validated
// locally (extension, size, required title) before the request is built.
func (c *Client) UploadPDF(ctx context.Context, p UploadPDFParams) (PDF, error) {
	var out PDF
	f, err := os.Open(p.Path)
	if err != nil {
		return out, fmt.Errorf("upload pdf: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return out, fmt.Errorf("upload pdf: %w", err)
	}
	if err := validatePDFUpload(p, st.Size()); err != nil {
		return out, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(p.Path))
	if err != nil {
		return out, fmt.Errorf("upload pdf: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return out, fmt.Errorf("upload pdf: read %s: %w", p.Path, err)
	}
	_ = mw.WriteField("title", p.Title)
	if p.Description != "" {
		_ = mw.WriteField("description", p.Description)
	}
	if err := mw.Close(); err != nil {
		return out, fmt.Errorf("upload pdf: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/admin/pdf/upload", &body)
	if err != nil {
		return out, fmt.Errorf("upload pdf: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	err = c.round("upload pdf", req, &out)
	return out, err
}

// ListPDFs returns every uploaded document, newest first.
func (c *Client) ListPDFs(ctx context.Context) ([]PDF, error) {
	var out []PDF
	err := c.do(ctx, "list pdfs", http.MethodGet, "/api/admin/pdf/list", nil, &out)
	return out, err
}

func (c *Client) GetPDF(ctx context.Context, id string) (PDF, error) {
	var out PDF
	err := c.do(ctx, "get pdf", http.MethodGet, "/api/admin/pdf/"+id, nil, &out)
	return out, err
}

// DeletePDF removes a document and its stored file. Quizzes generated
// from it survive.
func (c *Client) DeletePDF(ctx context.Context, id string) error {
	return c.do(ctx, "delete pdf", http.MethodDelete, "/api/admin/pdf/"+id, nil, nil)
}

// GenerateQuiz asks the backend to build a quiz from a processed PDF.
// The returned quiz starts in status "generating".
func (c *Client) GenerateQuiz(ctx context.Context, pdfID string, req GenerateQuizRequest) (Quiz, error) {
	var out Quiz
	if strings.TrimSpace(req.Title) == "" {
		return out, fmt.Errorf("generate quiz: title is required: %w", ErrValidation)
	}
	if req.TotalQuestions <= 0 {
		return out, fmt.Errorf("generate quiz: total_questions must be positive: %w", ErrValidation)
	}
	err := c.do(ctx, "generate quiz", http.MethodPost, "/api/admin/quiz/generate/"+pdfID, req, &out)
	return out, err
}

func (c *Client) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	var out []Quiz
	err := c.do(ctx, "list quizzes", http.MethodGet, "/api/admin/quiz/list", nil, &out)
	return out, err
}

// GetQuiz returns the admin view: quiz plus questions with answer keys.
func (c *Client) GetQuiz(ctx context.Context, id string) (QuizDetail, error) {
	var out QuizDetail
	err := c.do(ctx, "get quiz", http.MethodGet, "/api/admin/quiz/"+id, nil, &out)
	return out, err
}

func (c *Client) UpdateQuestion(ctx context.Context, id string, upd QuestionUpdate) (Question, error) {
	var out Question
	err := c.do(ctx, "update question", http.MethodPut, "/api/admin/question/"+id, upd, &out)
	return out, err
}

func (c *Client) DeleteQuestion(ctx context.Context, id string) error {
	return c.do(ctx, "delete question", http.MethodDelete, "/api/admin/question/"+id, nil, nil)
}

// PublishQuiz makes a generated quiz visible to students.
func (c *Client) PublishQuiz(ctx context.Context, id string) (Quiz, error) {
	var out Quiz
	err := c.do(ctx, "publish quiz", http.MethodPost, "/api/admin/quiz/"+id+"/publish", nil, &out)
	return out, err
}

// ArchiveQuiz retires a published quiz without deleting its history.
func (c *Client) ArchiveQuiz(ctx context.Context, id string) (Quiz, error) {
	var out Quiz
	err := c.do(ctx, "archive quiz", http.MethodPost, "/api/admin/quiz/"+id+"/archive", nil, &out)
	return out, err
}

func (c *Client) DeleteQuiz(ctx context.Context, id string) error {
	return c.do(ctx, "delete quiz", http.MethodDelete, "/api/admin/quiz/"+id, nil, nil)
}

func (c *Client) AnalyticsOverview(ctx context.Context) (AnalyticsOverview, error) {
	var out AnalyticsOverview
	err := c.do(ctx, "analytics overview", http.MethodGet, "/api/admin/analytics/overview", nil, &out)
	return out, err
}

func (c *Client) QuizAnalytics(ctx context.Context, id string) (QuizAnalytics, error) {
	var out QuizAnalytics
	err := c.do(ctx, "quiz analytics", http.MethodGet, "/api/admin/analytics/quiz/"+id, nil, &out)
	return out, err
}
