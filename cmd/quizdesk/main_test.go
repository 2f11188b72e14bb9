package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quizdesk/quizdesk/internal/logging"
	"github.com/quizdesk/quizdesk/internal/storage"
	"github.com/quizdesk/quizdesk/internal/stub"
)

type cliEnv struct {
	store   stub.Store
	cfgPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	store := stub.NewMemoryStore()
	if err := stub.SeedUsers(store); err != nil {
		t.Fatalf("seed users: %v", err)
	}
	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	pipe := stub.NewPipeline(store, blobs, logging.Nop(), 10*time.Millisecond, 10*time.Millisecond)
	t.Cleanup(pipe.Close)
	auth := stub.NewAuthService("cli-test-secret", time.Hour)
	srv := httptest.NewServer(stub.NewRouter(store, blobs, auth, pipe, logging.Nop(), nil))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("base_url: %s\ncredentials_path: %s\npoll_interval_seconds: 1\nrequest_timeout_seconds: 10\nlog_mode: prod\n",
		srv.URL, filepath.Join(dir, "credentials.json"))
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{store: store, cfgPath: cfgPath}
}

// resetFlags puts every package-level flag variable back to its default
// so one Execute cannot leak values into the next.
func resetFlags() {
	cfgFile, verbose = "", false
	loginUsername, loginPassword = "", ""
	regUsername, regEmail, regPassword, regFullName = "", "", "", ""
	uploadTitle, uploadDescription, uploadWait, pdfWatch = "", "", false, false
	genTitle, genDescription, genWait, quizWatch = "", "", false, false
	genQuestions, genEasy, genMedium, genHard = 10, 0, 0, 0
	editText, editOptions, editCorrect, editExplanation, editDifficulty = "", nil, "", "", ""
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := e.run(t, stdin, args...)
	if err != nil {
		t.Fatalf("quizdesk %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeTempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "algorithms.pdf")
	content := "%PDF-1.4\n" + strings.Repeat("lorem ipsum dolor sit amet ", 200)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

func TestCLIEndToEnd(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "", "login", "-u", "admin", "-p", "admin123")
	if !strings.Contains(out, "signed in as admin (admin)") {
		t.Fatalf("login output: %s", out)
	}

	out = env.mustRun(t, "", "admin", "pdf", "upload", writeTempPDF(t), "--title", "Algorithms", "--wait")
	if !strings.Contains(out, "processed:") {
		t.Fatalf("upload output: %s", out)
	}
	docs, err := env.store.ListPDFs()
	if err != nil || len(docs) != 1 {
		t.Fatalf("stored pdfs: %v %d", err, len(docs))
	}

	out = env.mustRun(t, "", "admin", "quiz", "generate", docs[0].ID,
		"--title", "Quick Check", "--questions", "4", "--wait")
	if !strings.Contains(out, "ready: 4 questions") {
		t.Fatalf("generate output: %s", out)
	}
	quizzes, err := env.store.ListQuizzes()
	if err != nil || len(quizzes) != 1 {
		t.Fatalf("stored quizzes: %v %d", err, len(quizzes))
	}
	quizID := quizzes[0].ID

	out = env.mustRun(t, "", "admin", "quiz", "publish", quizID)
	if !strings.Contains(out, "is now published") {
		t.Fatalf("publish output: %s", out)
	}

	out = env.mustRun(t, "", "admin", "analytics")
	if !strings.Contains(out, "Users:") || !strings.Contains(out, "quiz_published") {
		t.Fatalf("analytics output: %s", out)
	}

	out = env.mustRun(t, "", "login", "-u", "student", "-p", "student123")
	if !strings.Contains(out, "signed in as student (student)") {
		t.Fatalf("student login output: %s", out)
	}

	out = env.mustRun(t, "", "student", "quizzes")
	if !strings.Contains(out, "Quick Check") {
		t.Fatalf("quizzes output: %s", out)
	}

	// Generated order rotates mcq, mcq, mcq, true/false for four
	// questions; answering all of them makes :submit skip confirmation.
	script := "a\na\na\ntrue\n:submit\n"
	out = env.mustRun(t, script, "student", "take", quizID)
	if !strings.Contains(out, "Score:") {
		t.Fatalf("take output: %s", out)
	}

	out = env.mustRun(t, "", "student", "history")
	if !strings.Contains(out, "Quick Check") || !strings.Contains(out, "completed") {
		t.Fatalf("history output: %s", out)
	}

	out = env.mustRun(t, "", "student", "progress")
	if !strings.Contains(out, "Average score:") {
		t.Fatalf("progress output: %s", out)
	}

	out = env.mustRun(t, "", "whoami")
	if !strings.Contains(out, "student") {
		t.Fatalf("whoami output: %s", out)
	}

	env.mustRun(t, "", "logout")
	if _, err := env.run(t, "", "whoami"); err == nil {
		t.Fatal("whoami succeeded while signed out")
	}
}

func TestCLIRoleDenialExplainsRedirect(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun(t, "", "login", "-u", "student", "-p", "student123")
	out, err := env.run(t, "", "admin", "pdf", "list")
	if err == nil {
		t.Fatalf("student reached admin command: %s", out)
	}
	if !strings.Contains(err.Error(), "student") {
		t.Fatalf("denial should mention the student commands: %v", err)
	}
}

func TestCLIRegisterThenTakeAbandon(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun(t, "", "login", "-u", "admin", "-p", "admin123")
	env.mustRun(t, "", "admin", "pdf", "upload", writeTempPDF(t), "--title", "Trees", "--wait")
	docs, _ := env.store.ListPDFs()
	env.mustRun(t, "", "admin", "quiz", "generate", docs[0].ID, "--title", "Tree Basics", "--questions", "3", "--wait")
	quizzes, _ := env.store.ListQuizzes()
	env.mustRun(t, "", "admin", "quiz", "publish", quizzes[0].ID)

	out := env.mustRun(t, "", "register",
		"-u", "newkid", "-e", "newkid@example.com", "-p", "secret123", "--name", "New Kid")
	if !strings.Contains(out, "signed in as newkid (student)") {
		t.Fatalf("register output: %s", out)
	}

	script := "a\n:abandon\ny\n"
	out = env.mustRun(t, script, "student", "take", quizzes[0].ID)
	if !strings.Contains(out, "attempt abandoned") {
		t.Fatalf("abandon output: %s", out)
	}

	out = env.mustRun(t, "", "student", "history")
	if !strings.Contains(out, "abandoned") {
		t.Fatalf("history after abandon: %s", out)
	}
}
