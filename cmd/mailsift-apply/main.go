package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomarrell/mailsift/internal/config"
	"github.com/tomarrell/mailsift/internal/engine"
	"github.com/tomarrell/mailsift/internal/rate"
	"github.com/tomarrell/mailsift/internal/rules"
	"github.com/tomarrell/mailsift/internal/runtime"
	"github.com/tomarrell/mailsift/internal/store"
)

type applyConfig struct {
	cfgPath   string
	authDir   string
	dbPath    string
	rulesPath string
	workers   int
	rps       int
	jsonOut   string
	dryRun    bool
}

func main() {
	cfg := parseApplyFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailsift-apply failed", "error", err)
		os.Exit(1)
	}
}

func parseApplyFlags() applyConfig {
	cfgPath := flag.String("config", config.DefaultPath(), "mailsift config file")
	authDir := flag.String("auth-dir", "", "gmailctl auth directory (overrides config)")
	dbPath := flag.String("db", "", "record database path (overrides config)")
	rulesPath := flag.String("rules", "", "rule document path (overrides config)")
	workers := flag.Int("workers", 0, "parallel record workers (overrides config)")
	rps := flag.Int("rps", 0, "max requests per second (overrides config)")
	jsonOut := flag.String("json", "", "write JSON report to path")
	dryRun := flag.Bool("dry-run", false, "log planned actions; skip mutations")
	flag.Parse()

	return applyConfig{
		cfgPath:   *cfgPath,
		authDir:   *authDir,
		dbPath:    *dbPath,
		rulesPath: *rulesPath,
		workers:   *workers,
		rps:       *rps,
		jsonOut:   *jsonOut,
		dryRun:    *dryRun,
	}
}

func run(cfg applyConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fileCfg, err := config.Load(cfg.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	authDir := firstNonEmpty(cfg.authDir, fileCfg.Auth.CredentialsDir)
	dbPath := firstNonEmpty(cfg.dbPath, fileCfg.Store.DBPath)
	rulesPath := firstNonEmpty(cfg.rulesPath, fileCfg.Store.RulesPath)
	workers := firstPositive(cfg.workers, fileCfg.Apply.Workers)
	rps := firstPositive(cfg.rps, fileCfg.Apply.RPS)

	// Validation failures surface here, before any client or store is
	// touched.
	set, err := rules.Load(rulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	client, err := runtime.NewGmailClient(ctx, authDir, runtime.ScopeModify)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	recs, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = recs.Close() }()

	var (
		limiter rate.Limiter
		bucket  *rate.TokenBucket
	)
	if rps > 0 {
		bucket = rate.NewTokenBucket(rps)
		limiter = bucket
		defer bucket.Stop()
	}

	svc := engine.NewService(client, recs, limiter, runtime.DefaultLogger())
	if workers > 0 {
		svc.Workers = workers
	}

	rep, err := svc.Run(ctx, set, engine.Options{DryRun: cfg.dryRun})
	if err != nil {
		return fmt.Errorf("run pass: %w", err)
	}

	if printErr := engine.PrintHuman(rep, os.Stdout); printErr != nil {
		return fmt.Errorf("print report: %w", printErr)
	}
	if cfg.jsonOut == "" {
		return nil
	}
	if writeErr := engine.WriteJSON(rep, cfg.jsonOut); writeErr != nil {
		return fmt.Errorf("write json: %w", writeErr)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
