package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-command/runner"
)

// CommandTimeout bounds a single dispatched command, retries included
const CommandTimeout = 15 * time.Second

// NewCommandRunner returns the runner controllers dispatch commands with.
// Failures are returned to the caller, the runner only traces them.
func NewCommandRunner(logger Logger, opts ...runner.Option) *runner.Handler {
	logger = normalizeLogger(logger)
	base := []runner.Option{
		runner.WithTimeout(CommandTimeout),
		runner.WithErrorHandler(func(err error) {
			logger.Debug("command failed", "error", err)
		}),
	}
	return runner.NewHandler(append(base, opts...)...)
}

// Dispatch validates msg and executes cmd under r. The handler's own
// error is returned untouched so the HTTP layer can map it.
func Dispatch[T command.Message](ctx context.Context, r *runner.Handler, cmd command.Commander[T], msg T) error {
	if err := (&command.MessageHandler[T]{}).ValidateMessage(msg); err != nil {
		return err
	}
	return runner.RunCommand(ctx, r, cmd, msg)
}
