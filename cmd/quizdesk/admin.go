package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/poll"
	"github.com/quizdesk/quizdesk/internal/portal"
)

var (
	uploadTitle       string
	uploadDescription string
	uploadWait        bool
	pdfWatch          bool

	genTitle       string
	genDescription string
	genQuestions   int
	genEasy        int
	genMedium      int
	genHard        int
	genWait        bool
	quizWatch      bool

	editText        string
	editOptions     []string
	editCorrect     string
	editExplanation string
	editDifficulty  string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "content management (admin role)",
}

var pdfCmd = &cobra.Command{
	Use:   "pdf",
	Short: "manage uploaded documents",
}

var pdfUploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "upload a PDF for processing",
	Args:  cobra.ExactArgs(1),
	RunE:  runPDFUpload,
}

var pdfListCmd = &cobra.Command{
	Use:   "list",
	Short: "list documents",
	Args:  cobra.NoArgs,
	RunE:  runPDFList,
}

var pdfShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "show one document",
	Args:  cobra.ExactArgs(1),
	RunE:  runPDFShow,
}

var pdfDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "delete a document and its quizzes",
	Args:  cobra.ExactArgs(1),
	RunE:  runPDFDelete,
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "manage quizzes",
}

var quizGenerateCmd = &cobra.Command{
	Use:   "generate <pdf-id>",
	Short: "generate a quiz from a processed document",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuizGenerate,
}

var quizListCmd = &cobra.Command{
	Use:   "list",
	Short: "list quizzes",
	Args:  cobra.NoArgs,
	RunE:  runQuizList,
}

var quizShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "show a quiz with its questions and answer keys",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuizShow,
}

var quizPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "make a quiz available to students",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuizPublish,
}

var quizArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "withdraw a published quiz",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuizArchive,
}

var quizDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "delete a quiz and its attempts",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuizDelete,
}

var questionCmd = &cobra.Command{
	Use:   "question",
	Short: "edit generated questions",
}

var questionEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "update a question's text, options, key or explanation",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuestionEdit,
}

var questionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "remove a question from its quiz",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuestionDelete,
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics [quiz-id]",
	Short: "platform overview, or per-quiz statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalytics,
}

func init() {
	pdfUploadCmd.Flags().StringVar(&uploadTitle, "title", "", "document title (defaults to the file name)")
	pdfUploadCmd.Flags().StringVar(&uploadDescription, "description", "", "document description")
	pdfUploadCmd.Flags().BoolVar(&uploadWait, "wait", false, "wait until processing finishes")
	pdfListCmd.Flags().BoolVar(&pdfWatch, "watch", false, "refresh while any document is still processing")

	quizGenerateCmd.Flags().StringVar(&genTitle, "title", "", "quiz title (required)")
	quizGenerateCmd.Flags().StringVar(&genDescription, "description", "", "quiz description")
	quizGenerateCmd.Flags().IntVar(&genQuestions, "questions", 10, "number of questions")
	quizGenerateCmd.Flags().IntVar(&genEasy, "easy", 0, "easy questions (0 = server default split)")
	quizGenerateCmd.Flags().IntVar(&genMedium, "medium", 0, "medium questions")
	quizGenerateCmd.Flags().IntVar(&genHard, "hard", 0, "hard questions")
	quizGenerateCmd.Flags().BoolVar(&genWait, "wait", false, "wait until generation finishes")
	quizListCmd.Flags().BoolVar(&quizWatch, "watch", false, "refresh while any quiz is still generating")

	questionEditCmd.Flags().StringVar(&editText, "text", "", "question text")
	questionEditCmd.Flags().StringArrayVar(&editOptions, "option", nil, "option as KEY=text, repeatable; replaces all options")
	questionEditCmd.Flags().StringVar(&editCorrect, "correct", "", "correct answer")
	questionEditCmd.Flags().StringVar(&editExplanation, "explanation", "", "answer explanation")
	questionEditCmd.Flags().StringVar(&editDifficulty, "difficulty", "", "easy, medium or hard")

	pdfCmd.AddCommand(pdfUploadCmd, pdfListCmd, pdfShowCmd, pdfDeleteCmd)
	quizCmd.AddCommand(quizGenerateCmd, quizListCmd, quizShowCmd, quizPublishCmd, quizArchiveCmd, quizDeleteCmd)
	questionCmd.AddCommand(questionEditCmd, questionDeleteCmd)
	adminCmd.AddCommand(pdfCmd, quizCmd, questionCmd, analyticsCmd)
}

func runPDFUpload(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	title := uploadTitle
	if title == "" {
		base := filepath.Base(args[0])
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	doc, err := app.Client.UploadPDF(ctx, api.UploadPDFParams{
		Path:        args[0],
		Title:       title,
		Description: uploadDescription,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "uploaded %s (%s), status %s\n", doc.Title, doc.ID, doc.Status)
	if !uploadWait {
		return nil
	}

	docs, err := poll.Run(ctx, poll.Config[api.PDF]{
		Fetch: func(ctx context.Context) ([]api.PDF, error) {
			d, err := app.Client.GetPDF(ctx, doc.ID)
			if err != nil {
				return nil, err
			}
			return []api.PDF{d}, nil
		},
		Pending:  func(d api.PDF) bool { return !api.PDFTerminal(d.Status) },
		Interval: app.Cfg.PollInterval(),
		Log:      app.Log,
	})
	if err != nil {
		return err
	}
	final := docs[0]
	if final.Status == api.PDFStatusFailed {
		return fmt.Errorf("processing failed: %s", final.ErrorMessage)
	}
	fmt.Fprintf(out, "processed: %d pages, %d words\n", final.PageCount, final.WordCount)
	return nil
}

func runPDFList(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()
	out := cmd.OutOrStdout()

	if pdfWatch {
		_, err := poll.Run(cmd.Context(), poll.Config[api.PDF]{
			Fetch:    app.Client.ListPDFs,
			Pending:  func(d api.PDF) bool { return !api.PDFTerminal(d.Status) },
			Interval: app.Cfg.PollInterval(),
			OnUpdate: func(docs []api.PDF) { printPDFTable(out, docs) },
			Log:      app.Log,
		})
		return err
	}
	docs, err := app.Client.ListPDFs(cmd.Context())
	if err != nil {
		return err
	}
	printPDFTable(out, docs)
	return nil
}

func runPDFShow(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()

	doc, err := app.Client.GetPDF(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Title:     %s\n", doc.Title)
	if doc.Description != "" {
		fmt.Fprintf(out, "About:     %s\n", doc.Description)
	}
	fmt.Fprintf(out, "File:      %s\n", doc.OriginalFilename)
	fmt.Fprintf(out, "Status:    %s\n", doc.Status)
	if doc.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", doc.ErrorMessage)
	}
	fmt.Fprintf(out, "Pages:     %d\n", doc.PageCount)
	fmt.Fprintf(out, "Words:     %d\n", doc.WordCount)
	fmt.Fprintf(out, "Uploaded:  %s\n", formatTime(doc.CreatedAt))
	if doc.ProcessedAt != nil {
		fmt.Fprintf(out, "Processed: %s\n", formatTime(*doc.ProcessedAt))
	}
	return nil
}

func runPDFDelete(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Client.DeletePDF(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "deleted")
	return nil
}

func runQuizGenerate(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if strings.TrimSpace(genTitle) == "" {
		return fmt.Errorf("--title is required")
	}
	quiz, err := app.Client.GenerateQuiz(ctx, args[0], api.GenerateQuizRequest{
		Title:          genTitle,
		Description:    genDescription,
		TotalQuestions: genQuestions,
		Difficulty:     api.DifficultyMix{Easy: genEasy, Medium: genMedium, Hard: genHard},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "generating %s (%s)\n", quiz.Title, quiz.ID)
	if !genWait {
		return nil
	}

	quizzes, err := poll.Run(ctx, poll.Config[api.Quiz]{
		Fetch: func(ctx context.Context) ([]api.Quiz, error) {
			detail, err := app.Client.GetQuiz(ctx, quiz.ID)
			if err != nil {
				return nil, err
			}
			return []api.Quiz{detail.Quiz}, nil
		},
		Pending:  func(q api.Quiz) bool { return !api.QuizTerminal(q.Status) },
		Interval: app.Cfg.PollInterval(),
		Log:      app.Log,
	})
	if err != nil {
		return err
	}
	final := quizzes[0]
	if final.Status == api.QuizStatusFailed {
		return fmt.Errorf("generation failed: %s", final.ErrorMessage)
	}
	fmt.Fprintf(out, "ready: %d questions, about %d minutes\n", final.TotalQuestions, final.EstimatedTime)
	return nil
}

func runQuizList(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()
	out := cmd.OutOrStdout()

	if quizWatch {
		_, err := poll.Run(cmd.Context(), poll.Config[api.Quiz]{
			Fetch:    app.Client.ListQuizzes,
			Pending:  func(q api.Quiz) bool { return !api.QuizTerminal(q.Status) },
			Interval: app.Cfg.PollInterval(),
			OnUpdate: func(quizzes []api.Quiz) { printQuizTable(out, quizzes) },
			Log:      app.Log,
		})
		return err
	}
	quizzes, err := app.Client.ListQuizzes(cmd.Context())
	if err != nil {
		return err
	}
	printQuizTable(out, quizzes)
	return nil
}

func runQuizShow(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()

	detail, err := app.Client.GetQuiz(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	q := detail.Quiz
	fmt.Fprintf(out, "%s (%s)\n", q.Title, q.Status)
	if q.Description != "" {
		fmt.Fprintln(out, q.Description)
	}
	fmt.Fprintf(out, "%d questions (easy %d / medium %d / hard %d), about %d minutes\n\n",
		q.TotalQuestions, q.Difficulty.Easy, q.Difficulty.Medium, q.Difficulty.Hard, q.EstimatedTime)
	for _, question := range detail.Questions {
		printQuestion(out, question, true)
	}
	return nil
}

func runQuizPublish(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()

	quiz, err := app.Client.PublishQuiz(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", quiz.Title, quiz.Status)
	return nil
}

func runQuizArchive(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()

	quiz, err := app.Client.ArchiveQuiz(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", quiz.Title, quiz.Status)
	return nil
}

func runQuizDelete(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Client.DeleteQuiz(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "deleted")
	return nil
}

func runQuestionEdit(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()

	upd := api.QuestionUpdate{
		Text:          editText,
		CorrectAnswer: editCorrect,
		Explanation:   editExplanation,
		Difficulty:    editDifficulty,
	}
	for _, raw := range editOptions {
		key, text, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return fmt.Errorf("bad --option %q, want KEY=text", raw)
		}
		upd.Options = append(upd.Options, api.Option{Key: strings.ToUpper(key), Text: text})
	}
	if upd.Text == "" && upd.CorrectAnswer == "" && upd.Explanation == "" &&
		upd.Difficulty == "" && len(upd.Options) == 0 {
		return fmt.Errorf("nothing to update; pass at least one flag")
	}

	q, err := app.Client.UpdateQuestion(cmd.Context(), args[0], upd)
	if err != nil {
		return err
	}
	printQuestion(cmd.OutOrStdout(), q, true)
	return nil
}

func runQuestionDelete(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Client.DeleteQuestion(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "deleted")
	return nil
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAdminHome)
	if err != nil {
		return err
	}
	defer app.Close()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		qa, err := app.Client.QuizAnalytics(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", qa.Title)
		fmt.Fprintf(out, "Attempts: %d (%d completed, %.0f%% completion), average score %.1f%%\n\n",
			qa.Attempts, qa.Completed, qa.CompletionRate, qa.AverageScore)
		tw := newTable(out)
		fmt.Fprintln(tw, "#\tANSWERED\tCORRECT\tRATE")
		for _, qs := range qa.QuestionStats {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%.0f%%\n", qs.Order, qs.Answered, qs.Correct, qs.CorrectRate)
		}
		tw.Flush()
		return nil
	}

	ov, err := app.Client.AnalyticsOverview(cmd.Context())
	if err != nil {
		return err
	}
	c := ov.Counts
	fmt.Fprintf(out, "Users:    %d (%d students, %d admins)\n", c.Users.Total, c.Users.Students, c.Users.Admins)
	fmt.Fprintf(out, "PDFs:     %d (%d processed, %d failed)\n", c.PDFs.Total, c.PDFs.Processed, c.PDFs.Failed)
	fmt.Fprintf(out, "Quizzes:  %d (%d published)\n", c.Quizzes.Total, c.Quizzes.Published)
	fmt.Fprintf(out, "Attempts: %d (%d completed, average %.1f%%)\n", c.Attempts.Total, c.Attempts.Completed, c.Attempts.AverageScore)
	if len(ov.RecentActivity) > 0 {
		fmt.Fprintln(out, "\nRecent activity:")
		printActivity(out, ov.RecentActivity)
	}
	return nil
}
