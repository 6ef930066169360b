package lsp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mcncl/lsp-boot/internal/transport"
)

// Lockstep drives a cooperative server and its connection from the calling
// goroutine alone: write pending output, read one message, then run jobs
// until none are left. Delayed tasks only run when a later read returns, so
// it suits scripted sessions rather than interactive editors.
func (s *Server) Lockstep(ctx context.Context, conn *transport.Connection) error {
	coop, ok := s.scheduler.(*Cooperative)
	if !ok {
		return fmt.Errorf("lockstep requires %s mode, server is in %s mode", ModeCooperative, s.mode)
	}

	s.logger.Info("server starting", zap.String("mode", "lockstep"))
	defer s.stop(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		more := conn.Update()
		for {
			res := coop.Update(ctx)
			if res == UpdateShutdown {
				return conn.FlushOutgoing()
			}
			if res == UpdateIdle {
				break
			}
		}
		if !more {
			return conn.FlushOutgoing()
		}
	}
}
