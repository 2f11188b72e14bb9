package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/quizdesk/quizdesk/internal/api"
)

func TestBearerInjection(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(api.User{Username: "alice"})
	}))
	defer srv.Close()

	c := api.New(srv.URL, api.WithTokenSource(func() string { return "tok-1" }))
	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("me: %v", err)
	}
	if got != "Bearer tok-1" {
		t.Fatalf("authorization header = %q", got)
	}
}

func TestAuthFailureHookFiresOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
	}))
	defer srv.Close()

	fired := 0
	c := api.New(srv.URL, api.WithAuthFailureHook(func() { fired++ }))
	_, err := c.ListPDFs(context.Background())
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if fired != 1 {
		t.Fatalf("hook fired %d times, want 1", fired)
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "token expired" {
		t.Fatalf("error body not decoded: %v", err)
	}
}

func TestErrorBodyShapes(t *testing.T) {
	bodies := map[string]string{
		`{"error":"nope"}`:  "nope",
		`{"detail":"nope"}`: "nope",
		`plain nope`:        "plain nope",
	}
	for body, want := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(body))
		}))
		c := api.New(srv.URL)
		_, err := c.GetPDF(context.Background(), "x")
		srv.Close()
		if !errors.Is(err, api.ErrNotFound) {
			t.Fatalf("body %q: want ErrNotFound, got %v", body, err)
		}
		var apiErr *api.Error
		if !errors.As(err, &apiErr) || apiErr.Message != want {
			t.Fatalf("body %q: message = %v", body, err)
		}
	}
}

func TestUploadValidationRejectsBeforeNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server")
	}))
	defer srv.Close()
	c := api.New(srv.URL)

	dir := t.TempDir()
	notPDF := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(notPDF, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []api.UploadPDFParams{
		{Path: notPDF, Title: "Notes"},
		{Path: filepath.Join(dir, "missing-title.pdf")},
	}
	// second case needs the file to exist so validation is what rejects it
	if err := os.WriteFile(cases[1].Path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, p := range cases {
		if _, err := c.UploadPDF(context.Background(), p); !errors.Is(err, api.ErrValidation) {
			t.Fatalf("params %+v: want ErrValidation, got %v", p, err)
		}
	}
}

func TestUploadSendsMultipart(t *testing.T) {
	var gotTitle, gotName string
	var gotBytes []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotTitle = r.FormValue("title")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		gotName = hdr.Filename
		gotBytes, _ = io.ReadAll(f)
		_ = json.NewEncoder(w).Encode(api.PDF{ID: "p1", Status: api.PDFStatusUploaded})
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "chapter1.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := api.New(srv.URL)
	pdf, err := c.UploadPDF(context.Background(), api.UploadPDFParams{Path: path, Title: "Chapter 1"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if pdf.ID != "p1" {
		t.Fatalf("pdf id = %q", pdf.ID)
	}
	if gotTitle != "Chapter 1" || gotName != "chapter1.pdf" || string(gotBytes) != "%PDF-1.4 fake" {
		t.Fatalf("multipart fields: title=%q name=%q body=%q", gotTitle, gotName, gotBytes)
	}
}

func TestValidationErrorsPreNetwork(t *testing.T) {
	c := api.New("http://127.0.0.1:0") // unreachable; must not matter
	if _, err := c.Login(context.Background(), "", ""); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("empty login: %v", err)
	}
	if _, err := c.GenerateQuiz(context.Background(), "pdf1", api.GenerateQuizRequest{Title: "t"}); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("zero questions: %v", err)
	}
	if _, err := c.Register(context.Background(), api.RegisterRequest{Username: "u", Password: "p", Email: "bad"}); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("bad email: %v", err)
	}
}

func TestTerminalStatusHelpers(t *testing.T) {
	if api.PDFTerminal(api.PDFStatusProcessing) || !api.PDFTerminal(api.PDFStatusFailed) {
		t.Fatal("pdf terminal classification wrong")
	}
	if api.QuizTerminal(api.QuizStatusGenerating) || !api.QuizTerminal(api.QuizStatusPublished) {
		t.Fatal("quiz terminal classification wrong")
	}
}
