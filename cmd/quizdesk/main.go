// quizdesk is the command-line client for the QuizDesk learning
// platform: admins upload PDFs and manage generated quizzes, students
// take them. Session state persists between invocations, so signing in
// once is enough.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quizdesk/quizdesk/internal/config"
	"github.com/quizdesk/quizdesk/internal/portal"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:          "quizdesk",
	Short:        "client for the QuizDesk quiz platform",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (defaults to the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, whoamiCmd, adminCmd, studentCmd)
}

func newApp() (*portal.App, error) {
	path := cfgFile
	if path == "" {
		if p, err := config.DefaultClientPath(); err == nil {
			path = p
		}
	}
	return portal.New(path, verbose)
}

// enter builds the app and resolves the command's view through the
// guard. A denial comes back as a plain error carrying the redirect
// hint, so the command exits non-zero with a usable message.
func enter(cmd *cobra.Command, view string) (*portal.App, error) {
	app, err := newApp()
	if err != nil {
		return nil, err
	}
	if err := app.Enter(cmd.Context(), view); err != nil {
		app.Close()
		var denied *portal.DeniedError
		if errors.As(err, &denied) {
			return nil, fmt.Errorf("%s: %s", denied.Error(), denied.Hint())
		}
		return nil, err
	}
	return app, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
