// ABOUTME: Terminal console for the knowledge-base service
// ABOUTME: Drives login, session, guarded routes, and AI answers from the shell

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/loreworks/lore-console/internal/api"
	"github.com/loreworks/lore-console/internal/authz"
	"github.com/loreworks/lore-console/internal/config"
	"github.com/loreworks/lore-console/internal/idp"
	"github.com/loreworks/lore-console/internal/prefs"
	"github.com/loreworks/lore-console/internal/session"
	"github.com/loreworks/lore-console/internal/storage"
)

const banner = `
 _
| | ___  _ __ ___        ___ ___  _ __  ___  ___ | | ___
| |/ _ \| '__/ _ \_____ / __/ _ \| '_ \/ __|/ _ \| |/ _ \
| | (_) | | |  __/_____| (_| (_) | | | \__ \ (_) | |  __/
|_|\___/|_|  \___|      \___\___/|_| |_|___/\___/|_|\___|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	app, err := newApp()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer app.close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.session.Initialize(ctx); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "login":
		err = app.cmdLogin(ctx, args)
	case "sso-login":
		err = app.cmdSSOLogin()
	case "sso-callback":
		err = app.cmdSSOCallback(ctx, args)
	case "logout":
		err = app.cmdLogout(ctx)
	case "logout-all":
		err = app.cmdLogoutAll(ctx)
	case "whoami":
		err = app.cmdWhoami()
	case "options":
		err = app.cmdOptions(ctx)
	case "change-password":
		err = app.cmdChangePassword(ctx)
	case "open":
		err = app.cmdOpen(args)
	case "ask":
		err = app.cmdAsk(ctx, args)
	case "prefs":
		err = app.cmdPrefs(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: lore-console <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login [username]        Sign in with username and password")
	fmt.Println("  sso-login               Print the enterprise sign-in URL")
	fmt.Println("  sso-callback <code> <state>")
	fmt.Println("                          Complete enterprise sign-in with the redirect values")
	fmt.Println("  logout                  Sign out, keeping device preferences")
	fmt.Println("  logout-all              Sign out and wipe all device state")
	fmt.Println("  whoami                  Show the signed-in user and role")
	fmt.Println("  options                 Show which sign-in methods are available")
	fmt.Println("  change-password         Change the local account password")
	fmt.Println("  open <route>            Check access to a console route (e.g. /admin/users)")
	fmt.Println("  ask <question...>       Ask the knowledge base a question")
	fmt.Println("  prefs [reset]           Show or reset sign-in preferences")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  LORE_CONSOLE_CONFIG     Path to the YAML config file (default: ./lore-console.yaml)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  lore-console login dana")
	fmt.Println("  lore-console ask \"what is our refund policy?\"")
	fmt.Println("  lore-console open /admin/users")
	fmt.Println()
}

// app wires configuration, storage, and the session stack for one invocation.
type app struct {
	cfg     *config.Config
	kv      storage.Store
	session *session.Manager
	prefs   *prefs.Store
	client  *api.Client
	routes  *authz.Controller
}

func newApp() (*app, error) {
	cfgPath := os.Getenv("LORE_CONSOLE_CONFIG")
	if cfgPath == "" {
		cfgPath = "lore-console.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	setupLogging(cfg)

	kv, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	identity := idp.New(cfg.Auth.SSO, kv, nil)
	prefStore := prefs.NewStore(kv)

	mgr := session.NewManager(session.Options{
		BaseURL:      cfg.API.BaseURL,
		Store:        kv,
		Identity:     identity,
		Prefs:        prefStore,
		LocalEnabled: cfg.Auth.LocalEnabled,
		SSOEnabled:   cfg.Auth.SSO.Enabled,
	})

	return &app{
		cfg:     cfg,
		kv:      kv,
		session: mgr,
		prefs:   prefStore,
		client:  api.New(cfg.API.BaseURL, mgr, nil, cfg.API.Timeout),
		routes:  authz.NewController(mgr),
	}, nil
}

func (a *app) close() {
	if a.kv != nil {
		a.kv.Close()
	}
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	username := ""
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")

	profile, err := a.session.Login(ctx, username, password)
	if err != nil {
		return describeAuthError(err)
	}

	color.Green("Signed in as %s (%s)\n", profile.Username, profile.RoleName)
	return nil
}

func (a *app) cmdSSOLogin() error {
	url, err := a.session.LoginFederated()
	if err != nil {
		return describeAuthError(err)
	}

	fmt.Println()
	fmt.Println("Open this URL in your browser to sign in:")
	color.Cyan("  %s\n", url)
	fmt.Println()
	fmt.Println("Then complete the flow with:")
	fmt.Println("  lore-console sso-callback <code> <state>")
	return nil
}

func (a *app) cmdSSOCallback(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: sso-callback <code> <state>")
	}

	profile, err := a.session.HandleFederatedCallback(ctx, args[0], args[1])
	if err != nil {
		return describeAuthError(err)
	}

	color.Green("Signed in as %s (%s)\n", profile.Username, profile.RoleName)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	a.session.Logout(ctx)
	fmt.Println("Signed out.")
	return nil
}

func (a *app) cmdLogoutAll(ctx context.Context) error {
	a.session.LogoutEverywhere(ctx)
	fmt.Println("Signed out and cleared all device state.")
	return nil
}

func (a *app) cmdWhoami() error {
	user := a.session.CurrentUser()
	if user == nil {
		fmt.Println("Not signed in.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	fmt.Println()
	cyan.Println("  Identity")
	cyan.Println("  --------")
	fmt.Printf("  Name:     %s\n", user.FullName())
	fmt.Printf("  Username: %s\n", user.Username)
	fmt.Printf("  Email:    %s\n", user.Email)
	fmt.Printf("  Method:   %s\n", a.session.Method())
	green.Printf("  Role:     ")
	fmt.Println(user.RoleName)
	fmt.Println()
	return nil
}

func (a *app) cmdOptions(ctx context.Context) error {
	opts, err := a.session.FetchLoginOptions(ctx)
	if err != nil {
		return describeAuthError(err)
	}

	yellow := color.New(color.FgYellow)
	fmt.Println()
	yellow.Println("  Sign-in methods")
	yellow.Println("  ---------------")
	fmt.Printf("  Username/password:  %s\n", enabled(opts.LocalEnabled))
	fmt.Printf("  Enterprise SSO:     %s\n", enabled(opts.SSOEnabled))
	if opts.Recommended != "" {
		fmt.Printf("  Recommended:        %s\n", opts.Recommended)
	}
	if opts.SSOEnabled && a.prefs.ShouldAutoRedirectSSO() {
		fmt.Println()
		fmt.Println("  Your preference auto-starts enterprise sign-in; run sso-login.")
	}
	fmt.Println()
	return nil
}

func enabled(on bool) string {
	if on {
		return color.GreenString("enabled")
	}
	return color.RedString("disabled")
}

func (a *app) cmdChangePassword(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Current password: ")
	current, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	fmt.Print("New password: ")
	next, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	err = a.session.ChangePassword(ctx, strings.TrimRight(current, "\r\n"), strings.TrimRight(next, "\r\n"))
	if err != nil {
		return describeAuthError(err)
	}

	color.Green("Password changed.\n")
	return nil
}

func (a *app) cmdOpen(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: open <route>")
	}

	decision := a.routes.CanActivate(authz.RouteFor(args[0]))
	if decision.Allowed {
		color.Green("Access granted: %s\n", args[0])
		return nil
	}

	if decision.Notice != "" {
		color.Yellow("%s\n", decision.Notice)
	}
	fmt.Printf("Redirecting to %s\n", decision.RedirectTo)
	return nil
}

func (a *app) cmdAsk(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ask <question...>")
	}

	question := strings.Join(args, " ")
	answer, err := a.client.Ask(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Println()
		color.New(color.FgCyan).Println("Sources:")
		for _, src := range answer.Sources {
			fmt.Printf("  - %s\n", src)
		}
	}
	fmt.Println()
	return nil
}

func (a *app) cmdPrefs(args []string) error {
	if len(args) > 0 && args[0] == "reset" {
		if err := a.prefs.Reset(); err != nil {
			return err
		}
		fmt.Println("Preferences reset to defaults.")
		return nil
	}

	p := a.prefs.Get()
	yellow := color.New(color.FgYellow)

	fmt.Println()
	yellow.Println("  Sign-in preferences")
	yellow.Println("  -------------------")
	fmt.Printf("  Preferred method:   %s\n", orNone(string(p.PreferredMethod)))
	fmt.Printf("  Remember method:    %t\n", p.RememberMethod)
	fmt.Printf("  Auto SSO redirect:  %t\n", p.AutoRedirectSSO)
	fmt.Printf("  Theme:              %s\n", p.Theme)
	fmt.Printf("  Language:           %s\n", p.Language)
	if rec := a.prefs.RecommendedMethod(); rec != "" {
		fmt.Printf("  Recommended:        %s\n", rec)
	}

	stats := a.prefs.Stats()
	if len(stats) > 0 {
		fmt.Println()
		yellow.Println("  Usage history")
		yellow.Println("  -------------")
		for _, st := range stats {
			fmt.Printf("  %-10s attempts=%d success=%.0f%%\n",
				st.Method, st.TotalAttempts, st.SuccessRate*100)
		}
	}
	fmt.Println()
	return nil
}

// describeAuthError renders the typed error taxonomy with its fallback hint.
func describeAuthError(err error) error {
	authErr, ok := err.(*session.AuthError)
	if !ok {
		return err
	}

	if authErr.CanFallback {
		color.Yellow("%s\n", authErr.Message)
		switch authErr.FallbackMethod {
		case storage.MethodLocal:
			fmt.Println("Try: lore-console login")
		case storage.MethodFederated:
			fmt.Println("Try: lore-console sso-login")
		}
		return fmt.Errorf("%s", authErr.Code)
	}
	return fmt.Errorf("%s", authErr.Message)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
