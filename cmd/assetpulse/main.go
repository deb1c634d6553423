// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

// Command assetpulse is the terminal client for the AssetPulse service.
//
// Subcommands map one-to-one onto the session operations:
//
//	login              email/password sign-in
//	register-hr        full HR sign-up (company details, optional logo)
//	register-employee  full employee sign-up (optional photo)
//	google             federated sign-in, with role selection for new users
//	whoami             print the current session snapshot
//	refresh            force a reconciliation pass
//	logout             clear backend and identity sessions
//	watch              stream session snapshots as they are published
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/assetpulse/assetpulse-go/internal/identity"
	"github.com/assetpulse/assetpulse-go/internal/media"
	"github.com/assetpulse/assetpulse-go/internal/platform/config"
	redisstore "github.com/assetpulse/assetpulse-go/internal/platform/redis"
	"github.com/assetpulse/assetpulse-go/internal/profile"
	"github.com/assetpulse/assetpulse-go/internal/session"
)

const startupTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// ── 1. Logger ──────────────────────────────────────────────────────────
	// The CLI talks to the user on stdout; structured logs go to stderr.
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})).With(slog.String("app", "assetpulse"))
	slog.SetDefault(log)

	// ── 2. Configuration ──────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})).With(slog.String("app", "assetpulse"))
		slog.SetDefault(log)
	}

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	// ── 3. Snapshot Store ─────────────────────────────────────────────────
	var store identity.SnapshotStore
	if cfg.RedisURL != "" {
		startupCtx, startupCancel := context.WithTimeout(rootCtx, startupTimeout)
		client, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		startupCancel()
		must(log, err, "connect to redis")
		defer client.Close()
		store = identity.NewRedisSnapshotStore(client, deviceID())
	} else {
		store = identity.NewMemorySnapshotStore()
	}

	// ── 4. Identity Provider ──────────────────────────────────────────────
	var federated identity.FederatedAuthenticator
	if cfg.GoogleClientID != "" {
		federated = identity.NewGoogleProvider(identity.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			OpenConsent:  openBrowser,
		})
	}

	provider := identity.NewRESTProvider(identity.RESTConfig{
		BaseURL:   cfg.IdentityURL,
		APIKey:    cfg.IdentityAPIKey,
		Store:     store,
		Federated: federated,
		Logger:    log,
	})
	defer provider.Close()

	// ── 5. Session Reconciler ─────────────────────────────────────────────
	api := profile.NewClient(cfg.APIURL, log)
	uploader := media.NewUploader(cfg.MediaUploadURL, cfg.MediaAPIKey, log)

	reconciler := session.NewReconciler(provider, api, uploader, log)
	reconciler.Start(rootCtx)
	defer reconciler.Close()

	// Restoring a persisted session emits a signed-in event; wait for that
	// reconciliation so commands observe the restored state, not the boot
	// state.
	must(log, provider.Start(rootCtx), "restore session")
	if provider.Current() != nil {
		_ = reconciler.Refresh(rootCtx)
	}

	// ── 6. Dispatch ───────────────────────────────────────────────────────
	if err := dispatch(rootCtx, reconciler, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, reconciler *session.Reconciler, command string, args []string) error {
	switch command {
	case "login":
		return cmdLogin(ctx, reconciler, args)
	case "register-hr":
		return cmdRegisterHR(ctx, reconciler, args)
	case "register-employee":
		return cmdRegisterEmployee(ctx, reconciler, args)
	case "google":
		return cmdGoogle(ctx, reconciler, args)
	case "whoami":
		return printSnapshot(reconciler.Current())
	case "refresh":
		if err := reconciler.Refresh(ctx); err != nil {
			return err
		}
		return printSnapshot(reconciler.Current())
	case "logout":
		if err := reconciler.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("signed out")
		return nil
	case "watch":
		return cmdWatch(ctx, reconciler)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// # Subcommands

func cmdLogin(ctx context.Context, reconciler *session.Reconciler, args []string) error {
	flags := flag.NewFlagSet("login", flag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	_ = flags.Parse(args)

	if err := reconciler.Login(ctx, *email, *password); err != nil {
		return err
	}
	return printSnapshot(reconciler.Current())
}

func cmdRegisterHR(ctx context.Context, reconciler *session.Reconciler, args []string) error {
	flags := flag.NewFlagSet("register-hr", flag.ExitOnError)
	name := flags.String("name", "", "full name")
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	dateOfBirth := flags.String("dob", "", "date of birth (YYYY-MM-DD)")
	companyName := flags.String("company", "", "company name")
	packageLimit := flags.Int("package-limit", 10, "maximum employee seats")
	subscription := flags.String("subscription", "standard", "subscription tier")
	logoPath := flags.String("logo", "", "path to a company logo image")
	_ = flags.Parse(args)

	input := session.HRRegistration{
		Name:         *name,
		Email:        *email,
		Password:     *password,
		DateOfBirth:  *dateOfBirth,
		CompanyName:  *companyName,
		PackageLimit: *packageLimit,
		Subscription: *subscription,
	}
	if *logoPath != "" {
		file, err := os.Open(*logoPath)
		if err != nil {
			return err
		}
		defer file.Close()
		input.Logo = file
		input.LogoFilename = filepath.Base(*logoPath)
	}

	if err := reconciler.RegisterHR(ctx, input); err != nil {
		return err
	}
	return printSnapshot(reconciler.Current())
}

func cmdRegisterEmployee(ctx context.Context, reconciler *session.Reconciler, args []string) error {
	flags := flag.NewFlagSet("register-employee", flag.ExitOnError)
	name := flags.String("name", "", "full name")
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	dateOfBirth := flags.String("dob", "", "date of birth (YYYY-MM-DD)")
	photoPath := flags.String("photo", "", "path to a profile photo")
	_ = flags.Parse(args)

	input := session.EmployeeRegistration{
		Name:        *name,
		Email:       *email,
		Password:    *password,
		DateOfBirth: *dateOfBirth,
	}
	if *photoPath != "" {
		file, err := os.Open(*photoPath)
		if err != nil {
			return err
		}
		defer file.Close()
		input.Photo = file
		input.PhotoFilename = filepath.Base(*photoPath)
	}

	if err := reconciler.RegisterEmployee(ctx, input); err != nil {
		return err
	}
	return printSnapshot(reconciler.Current())
}

// cmdGoogle runs the federated sign-in and, when the account is new, prompts
// for the role and completes the matching registration intent.
func cmdGoogle(ctx context.Context, reconciler *session.Reconciler, args []string) error {
	flags := flag.NewFlagSet("google", flag.ExitOnError)
	role := flags.String("role", "", "role for a first sign-in: hr or employee (prompted when omitted)")
	companyName := flags.String("company", "", "company name (hr only)")
	packageLimit := flags.Int("package-limit", 10, "maximum employee seats (hr only)")
	subscription := flags.String("subscription", "standard", "subscription tier (hr only)")
	_ = flags.Parse(args)

	intent, err := reconciler.FederatedSignIn(ctx)
	if err != nil {
		return err
	}
	if intent == nil {
		return printSnapshot(reconciler.Current())
	}

	fmt.Printf("welcome, %s: this account has no AssetPulse profile yet\n", intent.Email)

	chosen := *role
	if chosen == "" {
		chosen, err = promptLine("role [hr/employee]: ")
		if err != nil {
			return err
		}
	}

	switch profile.Role(strings.TrimSpace(chosen)) {
	case profile.RoleEmployee:
		err = reconciler.CompleteEmployeeIntent(ctx, intent)
	case profile.RoleHR:
		company := *companyName
		if company == "" {
			company, err = promptLine("company name: ")
			if err != nil {
				return err
			}
		}
		err = reconciler.CompleteHRIntent(ctx, intent, session.HRCompanyDetails{
			CompanyName:  company,
			PackageLimit: *packageLimit,
			Subscription: *subscription,
		})
	default:
		return fmt.Errorf("unknown role %q", chosen)
	}
	if err != nil {
		return err
	}
	return printSnapshot(reconciler.Current())
}

// cmdWatch prints every published snapshot until interrupted.
func cmdWatch(ctx context.Context, reconciler *session.Reconciler) error {
	snapshots := make(chan session.Snapshot, 16)
	unsubscribe := reconciler.Subscribe(func(snapshot session.Snapshot) {
		select {
		case snapshots <- snapshot:
		default:
		}
	})
	defer unsubscribe()

	_ = printSnapshot(reconciler.Current())
	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot := <-snapshots:
			_ = printSnapshot(snapshot)
		}
	}
}

// # Helpers

func printSnapshot(snapshot session.Snapshot) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// openBrowser hands the consent URL to the OS browser, falling back to
// printing it for the user to open manually.
func openBrowser(consentURL string) error {
	var launch *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		launch = exec.Command("open", consentURL)
	case "windows":
		launch = exec.Command("rundll32", "url.dll,FileProtocolHandler", consentURL)
	default:
		launch = exec.Command("xdg-open", consentURL)
	}
	if err := launch.Start(); err != nil {
		fmt.Println("open this URL to continue:", consentURL)
	}
	return nil
}

// deviceID names the snapshot slot for this installation, so two machines
// sharing one Redis do not clobber each other's sessions.
func deviceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "default"
	}
	return host
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: assetpulse <command> [flags]

commands:
  login              email/password sign-in
  register-hr        full HR sign-up
  register-employee  full employee sign-up
  google             federated sign-in
  whoami             print the current session
  refresh            force a reconciliation pass
  logout             sign out
  watch              stream session changes`)
}

// must logs a structured fatal error and terminates the process if err is non-nil.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
