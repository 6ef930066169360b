// Command lsp-boot-replay feeds a recorded session of framed messages to the
// example server and writes every framed reply to stdout. Delayed tasks only
// run when a later message arrives, so replays are deterministic.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mcncl/lsp-boot/internal/config"
	"github.com/mcncl/lsp-boot/internal/example"
	"github.com/mcncl/lsp-boot/internal/lsp"
	"github.com/mcncl/lsp-boot/internal/queue"
	"github.com/mcncl/lsp-boot/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "Path to a settings file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: lsp-boot-replay [-config file] <transcript>")
		os.Exit(2)
	}

	transcript, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "lsp-boot-replay: %v\n", err)
		os.Exit(2)
	}

	code, err := replay(context.Background(), *configPath, transcript, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lsp-boot-replay: %v\n", err)
		os.Exit(2)
	}
	os.Exit(code)
}

// replay runs transcript through a lockstep server and returns the exit code
// the session ended with.
func replay(ctx context.Context, configPath string, transcript []byte, out io.Writer) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return 0, err
	}
	defer func() { _ = logger.Sync() }()

	inbox := queue.New[transport.ReceivedMessage]()
	outbox := queue.New[*transport.Envelope]()
	conn := transport.NewConnection(bytes.NewReader(transcript), out, inbox, outbox,
		transport.WithLogger(logger.Named("transport")),
		transport.WithMaxContentLength(cfg.MaxContentLength),
	)
	server := lsp.NewServer(example.New(example.Settings{
		SemanticTokens:   cfg.SemanticTokens,
		InlayHints:       cfg.InlayHints,
		DiagnosticsDelay: cfg.DiagnosticsDelay.Std(),
	}), inbox, outbox,
		lsp.WithLogger(logger.Named("lsp")),
		lsp.WithPendingTTL(cfg.PendingRequestTTL.Std()),
	)

	if err := server.Lockstep(ctx, conn); err != nil {
		return 0, err
	}
	return server.ExitCode(), nil
}
