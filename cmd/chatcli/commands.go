package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mujthriftz/internal/chatsync"
)

var (
	watchInbox bool
	followChat bool
	itemType   string
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List conversations with unread badges",
	Args:  cobra.NoArgs,
	RunE:  runInbox,
}

var chatCmd = &cobra.Command{
	Use:   "chat <conversation-id>",
	Short: "Print a conversation grouped by day",
	Long: `Print a conversation grouped by day.

With --follow the conversation stays open: incoming messages are printed as they
arrive and every line typed on stdin is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <text>...",
	Short: "Send one message",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSend,
}

func init() {
	inboxCmd.Flags().BoolVarP(&watchInbox, "watch", "w", false, "keep running and reprint on new messages")
	chatCmd.Flags().BoolVarP(&followChat, "follow", "f", false, "stay open and send stdin lines")
	chatCmd.Flags().StringVar(&itemType, "item-type", "", "item type attached to sent messages")
	sendCmd.Flags().StringVar(&itemType, "item-type", "", "item type attached to the message")
}

func runInbox(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	client, err := opts.client()
	if err != nil {
		return err
	}
	me, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("who am i: %w", err)
	}
	out := cmd.OutOrStdout()

	var inbox *chatsync.Inbox
	cfg := chatsync.InboxConfig{UserID: me.ID, Messaging: client, Logger: opts.logger()}
	if watchInbox {
		socket := opts.socket()
		defer socket.Close()
		cfg.Realtime = socket
		cfg.OnChange = func() { printInbox(out, inbox) }
	}
	inbox = chatsync.NewInbox(cfg)
	defer inbox.Close()

	if err := inbox.Load(ctx); err != nil {
		return err
	}
	printInbox(out, inbox)
	if !watchInbox {
		return nil
	}
	if err := inbox.Watch(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "some conversations are not live:", err)
	}
	<-ctx.Done()
	return nil
}

func printInbox(w io.Writer, inbox *chatsync.Inbox) {
	if inbox == nil {
		return
	}
	items := inbox.Items()
	fmt.Fprintf(w, "%d unread\n", inbox.Total())
	if len(items) == 0 {
		fmt.Fprintln(w, "  no conversations yet")
		return
	}
	for _, item := range items {
		name := item.Peer.DisplayName
		if name == "" {
			name = item.Peer.ID
		}
		badge := ""
		if item.Unread > 0 {
			badge = fmt.Sprintf(" (%d)", item.Unread)
		}
		fmt.Fprintf(w, "  %s  %s%s  %s\n", item.Conversation.ID, name, badge, item.Conversation.LastMessage)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := opts.client()
	if err != nil {
		return err
	}
	me, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("who am i: %w", err)
	}
	out := cmd.OutOrStdout()

	cfg := chatsync.ChatViewConfig{
		ConversationID: args[0],
		CurrentUser:    me.ID,
		ItemType:       itemType,
		Messaging:      client,
		Logger:         opts.logger(),
	}
	var (
		view    *chatsync.ChatView
		mu      sync.Mutex
		printed = make(map[string]struct{})
		ready   bool
	)
	if followChat {
		socket := opts.socket()
		defer socket.Close()
		cfg.Realtime = socket
		cfg.OnChange = func() {
			mu.Lock()
			defer mu.Unlock()
			if !ready {
				return
			}
			printNew(out, view.Entries(), me.ID, printed)
			if len(view.PeersTyping()) > 0 {
				fmt.Fprintln(out, "  ...typing")
			}
		}
	}
	view = chatsync.NewChatView(cfg)
	defer view.Close()

	if err := view.Open(ctx); err != nil {
		return err
	}
	mu.Lock()
	for _, group := range view.Groups(time.Now()) {
		fmt.Fprintf(out, "-- %s --\n", group.Label)
		printNew(out, group.Entries, me.ID, printed)
	}
	ready = true
	mu.Unlock()
	if err := markRead(ctx, client, me.ID, args[0], opts.logger()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "could not mark as read:", err)
	}
	if !followChat {
		return nil
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			view.Keystroke(ctx)
			if err := view.Send(ctx, line); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "send failed:", err)
			}
		}
	}
}

// markRead clears the opened conversation's badge through the inbox, so the
// server and any badge counts agree with what was just shown.
func markRead(ctx context.Context, messaging chatsync.Messaging, userID, conversationID string, logger *slog.Logger) error {
	inbox := chatsync.NewInbox(chatsync.InboxConfig{UserID: userID, Messaging: messaging, Logger: logger})
	defer inbox.Close()
	if err := inbox.Load(ctx); err != nil {
		return err
	}
	return inbox.Open(ctx, conversationID)
}

// printNew prints the entries not shown yet. A late message can sort into the
// middle of the list, so entries are remembered by key instead of position.
func printNew(w io.Writer, entries []chatsync.Entry, self string, printed map[string]struct{}) {
	for _, e := range entries {
		key := entryKey(e)
		if _, ok := printed[key]; ok {
			continue
		}
		printed[key] = struct{}{}
		printEntry(w, e, self)
	}
}

// entryKey survives confirmation: a sent entry keeps its LocalID after the
// server id and timestamp are adopted.
func entryKey(e chatsync.Entry) string {
	switch {
	case e.LocalID != "":
		return "local:" + e.LocalID
	case e.Message.ID != "":
		return "id:" + e.Message.ID
	}
	return "at:" + e.Message.Timestamp.UTC().Format(time.RFC3339Nano)
}

func printEntry(w io.Writer, e chatsync.Entry, self string) {
	who := "them"
	if e.Message.SenderID == self {
		who = "me"
	}
	state := ""
	switch e.State {
	case chatsync.Pending:
		state = " (sending)"
	case chatsync.Failed:
		state = " (failed)"
	}
	fmt.Fprintf(w, "  [%s] %-4s %s%s\n", e.Message.Timestamp.Local().Format("15:04"), who, e.Message.Text, state)
}

func runSend(cmd *cobra.Command, args []string) error {
	client, err := opts.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	msg, err := client.Send(ctx, chatsync.SendRequest{
		ConversationID: args[0],
		Text:           strings.Join(args[1:], " "),
		Timestamp:      time.Now().UTC(),
		ItemType:       itemType,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s at %s\n", msg.ID, msg.Timestamp.Local().Format(time.Kitchen))
	return nil
}
