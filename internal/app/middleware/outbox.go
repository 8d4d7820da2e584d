package middleware

import (
	"context"
	"fmt"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/outbox"
)

// OutboxFlush hands the events a command recorded (message sent, listing
// created, document deactivated) to the outbox once the command has succeeded.
// A failed command flushes nothing. A failed flush is reported against the
// command key because the command's own writes have already landed.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				return nil, fmt.Errorf("middleware: flush events of %s: %w", cmd.Key(), err)
			}
			return res, nil
		})
	}
}
