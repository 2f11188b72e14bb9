// Package portal owns the client-side application state: configuration,
// logging, the credential session, the API client and the route guard.
// Commands enter a named view through the guard before doing anything;
// a denial carries the view to land on instead, mirroring a browser
// redirect.
package portal

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/attempt"
	"github.com/quizdesk/quizdesk/internal/config"
	"github.com/quizdesk/quizdesk/internal/guard"
	"github.com/quizdesk/quizdesk/internal/logging"
	"github.com/quizdesk/quizdesk/internal/session"
)

// View names. The guard's landing views double as view names here.
const (
	ViewLogin       = guard.ViewLogin
	ViewRegister    = "register"
	ViewAdminHome   = guard.ViewAdminHome
	ViewStudentHome = guard.ViewStudentHome
	ViewAttempt     = "attempt"
	ViewHistory     = "history"
	ViewProgress    = "progress"
	ViewWhoami      = "whoami"
)

// views declares the access requirement of every reachable view.
var views = map[string]guard.Requirement{
	ViewLogin:       guard.Public,
	ViewRegister:    guard.Public,
	ViewAdminHome:   guard.RoleAdmin,
	ViewStudentHome: guard.RoleStudent,
	ViewAttempt:     guard.RoleStudent,
	ViewHistory:     guard.RoleStudent,
	ViewProgress:    guard.RoleStudent,
	ViewWhoami:      guard.Authenticated,
}

// DeniedError reports a guarded view the current session may not enter.
type DeniedError struct {
	View       string
	RedirectTo string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access to %q denied", e.View)
}

// Hint tells the user where the redirect would have taken them.
func (e *DeniedError) Hint() string {
	switch e.RedirectTo {
	case ViewLogin:
		return "you are not signed in; run `quizdesk login` first"
	case ViewAdminHome:
		return "you are signed in as an admin; use the `quizdesk admin` commands"
	case ViewStudentHome:
		return "you are signed in as a student; use the `quizdesk student` commands"
	}
	return "try `quizdesk login`"
}

// App is the assembled client application. Everything is injected and
// owned here; there are no package-level singletons.
type App struct {
	Cfg     config.Client
	Log     *logging.Logger
	Session *session.Session
	Client  *api.Client

	guard *guard.Guard

	restoreOnce sync.Once

	mu      sync.Mutex
	current *attempt.Session
}

// New loads configuration, then assembles logger, session, API client
// and guard. The client's 401 hook invalidates the session globally, so
// no command handles auth failures itself.
func New(cfgPath string, verbose bool) (*App, error) {
	cfg, err := config.LoadClient(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogMode, verbose)
	if err != nil {
		return nil, err
	}
	credPath := cfg.CredentialsPath
	if credPath == "" {
		credPath, err = session.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	sess := session.New(session.NewStore(credPath), log)
	client := api.New(cfg.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		api.WithTokenSource(sess.Token),
		api.WithAuthFailureHook(sess.Invalidate),
		api.WithLogger(log),
	)

	return &App{
		Cfg:     cfg,
		Log:     log,
		Session: sess,
		Client:  client,
		guard:   guard.New(sess),
	}, nil
}

// Close flushes the logger.
func (a *App) Close() {
	a.Log.Sync()
}

// Enter resolves a view through the guard, restoring the persisted
// session first. Restore failures log and leave the process signed out;
// they never block public views.
func (a *App) Enter(ctx context.Context, view string) error {
	req, ok := views[view]
	if !ok {
		return fmt.Errorf("unknown view %q", view)
	}
	a.restoreOnce.Do(func() {
		if err := a.Session.Restore(ctx, a.Client.Me); err != nil {
			a.Log.Warn("session restore failed, starting signed out", "err", err)
		}
	})
	dec := a.guard.Resolve(req)
	if dec.State != guard.Admitted {
		return &DeniedError{View: view, RedirectTo: dec.RedirectTo}
	}
	return nil
}

// Login signs in and persists the credential.
func (a *App) Login(ctx context.Context, username, password string) (api.User, error) {
	res, err := a.Client.Login(ctx, username, password)
	if err != nil {
		return api.User{}, err
	}
	err = a.Session.Establish(session.Credential{
		Token:   res.AccessToken,
		Role:    res.User.Role,
		Profile: res.User,
	})
	if err != nil {
		return api.User{}, fmt.Errorf("persist credential: %w", err)
	}
	return res.User, nil
}

// Register creates a student account and signs it in.
func (a *App) Register(ctx context.Context, req api.RegisterRequest) (api.User, error) {
	res, err := a.Client.Register(ctx, req)
	if err != nil {
		return api.User{}, err
	}
	err = a.Session.Establish(session.Credential{
		Token:   res.AccessToken,
		Role:    res.User.Role,
		Profile: res.User,
	})
	if err != nil {
		return api.User{}, fmt.Errorf("persist credential: %w", err)
	}
	return res.User, nil
}

// Logout clears the credential. The backend call is best effort; local
// state is gone either way.
func (a *App) Logout(ctx context.Context) {
	if a.Session.IsAuthenticated() {
		if err := a.Client.Logout(ctx); err != nil {
			a.Log.Debug("backend logout failed", "err", err)
		}
	}
	a.Session.Invalidate()
}

// BeginAttempt opens (or resumes) a quiz attempt and starts its
// countdown. Only one attempt session may be live per process; callers
// must EndAttempt when done with it.
func (a *App) BeginAttempt(ctx context.Context, quizID string, cfg attempt.Config) (*attempt.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		return nil, fmt.Errorf("an attempt is already in progress in this session")
	}
	snap, err := a.Client.StartQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if cfg.Backend == nil {
		cfg.Backend = a.Client
	}
	if cfg.Log == nil {
		cfg.Log = a.Log
	}
	sess := attempt.New(cfg)
	if err := sess.Start(ctx, snap); err != nil {
		return nil, err
	}
	a.current = sess
	return sess, nil
}

// EndAttempt tears down the live attempt session and frees the slot.
func (a *App) EndAttempt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.current.Close()
		a.current = nil
	}
}
