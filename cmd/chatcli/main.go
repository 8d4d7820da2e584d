// Command chatcli is a terminal client for the marketplace chat: list the inbox,
// follow a conversation live and send messages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"mujthriftz/internal/infra/restclient"
)

type options struct {
	api     string
	ws      string
	token   string
	timeout time.Duration
	verbose bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "chatcli",
	Short: "Campus marketplace chat from the terminal",
	Long: `chatcli talks to the marketplace API as the user owning --token.

Available subcommands:
  inbox - list conversations with unread badges
  chat  - open one conversation and follow it live
  send  - send a single message`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.api, "api", envOr("MUJTHRIFTZ_API", "http://localhost:8080/api/v1"), "API base URL")
	flags.StringVar(&opts.ws, "ws", envOr("MUJTHRIFTZ_WS", ""), "realtime URL (derived from --api when empty)")
	flags.StringVar(&opts.token, "token", os.Getenv("MUJTHRIFTZ_TOKEN"), "session token")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log realtime activity")

	rootCmd.AddCommand(inboxCmd, chatCmd, sendCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func (o options) client() (*restclient.Client, error) {
	if strings.TrimSpace(o.token) == "" {
		return nil, fmt.Errorf("a session token is required (--token or MUJTHRIFTZ_TOKEN)")
	}
	return restclient.New(o.api, o.token, o.timeout), nil
}

func (o options) socket() *restclient.Socket {
	return restclient.NewSocket(o.realtimeURL(), o.token, o.logger())
}

// realtimeURL maps http(s)://host/api/v1 to ws(s)://host/realtime.
func (o options) realtimeURL() string {
	if o.ws != "" {
		return o.ws
	}
	base := strings.TrimRight(o.api, "/")
	base = strings.TrimSuffix(base, "/api/v1")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/realtime"
}

func (o options) logger() *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
