package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mcncl/lsp-boot/internal/config"
	"github.com/mcncl/lsp-boot/internal/example"
	"github.com/mcncl/lsp-boot/internal/lsp"
	"github.com/mcncl/lsp-boot/internal/queue"
	"github.com/mcncl/lsp-boot/internal/transport"
)

var (
	// Version information - set during build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to a YAML, TOML or JSON settings file")
	mode := flag.String("mode", "", "Scheduling mode: cooperative or worker")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error")
	flag.Parse()

	if *showVersion {
		fmt.Printf("lsp-boot %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return
	}

	os.Exit(run(*configPath, *mode, *logLevel))
}

func run(configPath, mode, logLevel string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lsp-boot: %v\n", err)
		return 2
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	schedMode, err := lsp.ParseMode(cfg.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lsp-boot: %v\n", err)
		return 2
	}
	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lsp-boot: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	example.Version = version

	inbox := queue.New[transport.ReceivedMessage]()
	outbox := queue.New[*transport.Envelope]()
	conn := transport.NewConnection(os.Stdin, os.Stdout, inbox, outbox,
		transport.WithLogger(logger.Named("transport")),
		transport.WithMaxContentLength(cfg.MaxContentLength),
	)
	server := lsp.NewServer(example.New(settingsFrom(cfg)), inbox, outbox,
		lsp.WithMode(schedMode),
		lsp.WithLogger(logger.Named("lsp")),
		lsp.WithPendingTTL(cfg.PendingRequestTTL.Std()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenCtx, cancelListen := context.WithCancel(ctx)
	listened := make(chan error, 1)
	go func() { listened <- conn.Listen(listenCtx) }()

	if err := server.Run(ctx); err != nil {
		logger.Error("run failed", zap.Error(err))
	}
	cancelListen()
	if err := <-listened; err != nil {
		logger.Error("connection stopped", zap.Error(err))
	}

	return server.ExitCode()
}

func settingsFrom(cfg config.Config) example.Settings {
	return example.Settings{
		SemanticTokens:   cfg.SemanticTokens,
		InlayHints:       cfg.InlayHints,
		DiagnosticsDelay: cfg.DiagnosticsDelay.Std(),
	}
}
