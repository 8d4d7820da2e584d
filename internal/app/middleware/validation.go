package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/queries"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
)

// Validatable is implemented by messages that can check their own shape before reaching a handler.
type Validatable interface {
	Validate() error
}

// Validation rejects commands whose Validate method fails. The returned error wraps ErrValidation.
func Validation() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := validate(cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryValidation() QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := validate(q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

// RequireActor refuses commands that carry an empty actor id.
func RequireActor() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if actor, ok := cmd.(commands.Actor); ok && strings.TrimSpace(actor.ActorID()) == "" {
				return nil, ErrUnauthenticated
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func validate(message any) error {
	v, ok := message.(Validatable)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}
