package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomarrell/mailsift/internal/config"
	"github.com/tomarrell/mailsift/internal/fetch"
	"github.com/tomarrell/mailsift/internal/rate"
	"github.com/tomarrell/mailsift/internal/runtime"
	"github.com/tomarrell/mailsift/internal/store"
)

type fetchConfig struct {
	cfgPath    string
	authDir    string
	dbPath     string
	maxResults int
	pageSize   int
	rps        int
}

func main() {
	cfg := parseFetchFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailsift-fetch failed", "error", err)
		os.Exit(1)
	}
}

func parseFetchFlags() fetchConfig {
	cfgPath := flag.String("config", config.DefaultPath(), "mailsift config file")
	authDir := flag.String("auth-dir", "", "gmailctl auth directory (overrides config)")
	dbPath := flag.String("db", "", "record database path (overrides config)")
	maxResults := flag.Int("max", 0, "messages to fetch (overrides config)")
	pageSize := flag.Int("page-size", 0, "Gmail list page size (<=500, overrides config)")
	rps := flag.Int("rps", 0, "max requests per second (overrides config)")
	flag.Parse()

	return fetchConfig{
		cfgPath:    *cfgPath,
		authDir:    *authDir,
		dbPath:     *dbPath,
		maxResults: *maxResults,
		pageSize:   *pageSize,
		rps:        *rps,
	}
}

func run(cfg fetchConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fileCfg, err := config.Load(cfg.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	authDir := firstNonEmpty(cfg.authDir, fileCfg.Auth.CredentialsDir)
	dbPath := firstNonEmpty(cfg.dbPath, fileCfg.Store.DBPath)
	maxResults := firstPositive(cfg.maxResults, fileCfg.Fetch.MaxResults)
	pageSize := firstPositive(cfg.pageSize, fileCfg.Fetch.PageSize)
	rps := firstPositive(cfg.rps, fileCfg.Fetch.RPS)

	client, err := runtime.NewGmailClient(ctx, authDir, runtime.ScopeReadonly)
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

	svc := fetch.NewService(client, recs, limiter, runtime.DefaultLogger())
	opts := fetch.Options{MaxResults: maxResults, PageSize: pageSize}
	if _, runErr := svc.Run(ctx, opts); runErr != nil {
		return fmt.Errorf("run fetch: %w", runErr)
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
