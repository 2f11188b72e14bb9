// quizstubd is the development backend for the quizdesk CLI. It serves
// the whole platform API against sqlite, postgres or plain memory, with
// a fake processing pipeline standing in for PDF extraction and quiz
// generation.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quizdesk/quizdesk/internal/config"
	"github.com/quizdesk/quizdesk/internal/logging"
	"github.com/quizdesk/quizdesk/internal/storage"
	"github.com/quizdesk/quizdesk/internal/stub"
)

var (
	flagAddr            string
	flagDBDriver        string
	flagDSN             string
	flagDataDir         string
	flagSecret          string
	flagTokenTTL        time.Duration
	flagProcessingDelay time.Duration
	flagGenerationDelay time.Duration
	flagCORSOrigins     []string
	flagSeed            bool
	flagVerbose         bool
)

var rootCmd = &cobra.Command{
	Use:          "quizstubd",
	Short:        "development backend for quizdesk",
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagAddr, "addr", "", "listen address (default from STUB_ADDR)")
	f.StringVar(&flagDBDriver, "db-driver", "", "memory, sqlite or postgres (default from STUB_DB_DRIVER)")
	f.StringVar(&flagDSN, "dsn", "", "database DSN (default from STUB_DB_DSN)")
	f.StringVar(&flagDataDir, "data-dir", "", "directory for uploaded files (default from STUB_DATA_DIR)")
	f.StringVar(&flagSecret, "secret", "", "JWT signing secret (default from STUB_AUTH_SECRET)")
	f.DurationVar(&flagTokenTTL, "token-ttl", 0, "issued token lifetime (default from STUB_TOKEN_TTL)")
	f.DurationVar(&flagProcessingDelay, "processing-delay", 0, "simulated PDF processing time")
	f.DurationVar(&flagGenerationDelay, "generation-delay", 0, "simulated quiz generation time")
	f.StringSliceVar(&flagCORSOrigins, "cors-origin", nil, "allowed CORS origins")
	f.BoolVar(&flagSeed, "seed", false, "create the default admin and student accounts")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig starts from the environment and lets flags win.
func loadConfig(cmd *cobra.Command) config.Stub {
	cfg := config.StubFromEnv()
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr = flagAddr
	}
	if f.Changed("db-driver") {
		cfg.DBDriver = flagDBDriver
	}
	if f.Changed("dsn") {
		cfg.DBDSN = flagDSN
	}
	if f.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if f.Changed("secret") {
		cfg.AuthSecret = flagSecret
	}
	if f.Changed("token-ttl") {
		cfg.TokenTTL = flagTokenTTL
	}
	if f.Changed("processing-delay") {
		cfg.ProcessingDelay = flagProcessingDelay
	}
	if f.Changed("generation-delay") {
		cfg.GenerationDelay = flagGenerationDelay
	}
	if f.Changed("cors-origin") {
		cfg.CORSOrigins = flagCORSOrigins
	}
	return cfg
}

func serve(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	log, err := logging.New("dev", flagVerbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	var store stub.Store
	if cfg.DBDriver == "memory" {
		store = stub.NewMemoryStore()
	} else {
		openCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		dbh, err := stub.OpenDB(openCtx, stub.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			return err
		}
		defer dbh.Close()
		store = stub.NewSQLStore(dbh)
	}

	if flagSeed {
		if err := stub.SeedUsers(store); err != nil {
			return err
		}
		log.Info("seeded default accounts", "admin", "admin/admin123", "student", "student/student123")
	}

	blobs, err := storage.NewFSStore(cfg.DataDir)
	if err != nil {
		return err
	}
	auth := stub.NewAuthService(cfg.AuthSecret, cfg.TokenTTL)
	pipe := stub.NewPipeline(store, blobs, log, cfg.ProcessingDelay, cfg.GenerationDelay)
	defer pipe.Close()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: stub.NewRouter(store, blobs, auth, pipe, log, cfg.CORSOrigins),
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("listening", "addr", cfg.Addr, "db", cfg.DBDriver, "data_dir", cfg.DataDir)

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}
	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
