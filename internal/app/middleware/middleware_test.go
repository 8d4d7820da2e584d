package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/outbox"
)

type pingCommand struct {
	Actor string
	Text  string
}

func (pingCommand) Key() string       { return "test.ping" }
func (c pingCommand) ActorID() string { return c.Actor }
func (c pingCommand) Validate() error {
	if c.Text == "" {
		return errors.New("text missing")
	}
	return nil
}

type countingOutbox struct {
	flushes int
	err     error
}

func (o *countingOutbox) Add(context.Context, outbox.EventRecord) error { return nil }
func (o *countingOutbox) Flush(context.Context) error {
	o.flushes++
	return o.err
}

func newBus(fail error) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[pingCommand, string](bus, commands.HandlerFunc[pingCommand, string](
		func(_ context.Context, cmd pingCommand) (string, error) {
			if fail != nil {
				return "", fail
			}
			return "pong:" + cmd.Text, nil
		}))
	return bus
}

func TestChainRunsOuterFirst(t *testing.T) {
	var order []string
	mark := func(name string) CommandMiddleware {
		return func(next commands.Bus) commands.Bus {
			return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
				order = append(order, name)
				return next.Dispatch(ctx, cmd)
			})
		}
	}
	bus := ChainCommands(newBus(nil), mark("a"), mark("b"), mark("c"))
	res, err := commands.Dispatch[pingCommand, string](context.Background(), bus, pingCommand{Actor: "u1", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "pong:x", res)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestValidationAndActorGuards(t *testing.T) {
	bus := ChainCommands(newBus(nil), RequireActor(), Validation())
	ctx := context.Background()

	_, err := bus.Dispatch(ctx, pingCommand{Text: "x"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = bus.Dispatch(ctx, pingCommand{Actor: "u1"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "text missing")
}

func TestOutboxFlushOnlyAfterSuccess(t *testing.T) {
	ctx := context.Background()
	box := &countingOutbox{}

	ok := ChainCommands(newBus(nil), OutboxFlush(box))
	_, err := ok.Dispatch(ctx, pingCommand{Actor: "u1", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, box.flushes)

	boom := errors.New("handler failed")
	failing := ChainCommands(newBus(boom), OutboxFlush(box))
	_, err = failing.Dispatch(ctx, pingCommand{Actor: "u1", Text: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, box.flushes)

	assert.Panics(t, func() { OutboxFlush(nil) })
}

func TestOutboxFlushFailureNamesCommand(t *testing.T) {
	down := errors.New("queue down")
	bus := ChainCommands(newBus(nil), OutboxFlush(&countingOutbox{err: down}))

	res, err := bus.Dispatch(context.Background(), pingCommand{Actor: "u1", Text: "x"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "test.ping")
}

func TestLoggingWithoutLoggerIsTransparent(t *testing.T) {
	base := newBus(nil)
	assert.Same(t, commands.Bus(base), Logging(nil)(base))
}
