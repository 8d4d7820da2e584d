// Package scylla persists conversations, messages and unread counters in ScyllaDB.
package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type SessionConfig struct {
	Hosts             []string
	Keyspace          string
	Consistency       string
	Timeout           time.Duration
	ReplicationFactor int
	Username          string
	Password          string
}

// NewSession creates the keyspace and tables when missing and returns a session bound to the keyspace.
func NewSession(ctx context.Context, cfg SessionConfig, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("scylla: invalid keyspace name %q", cfg.Keyspace)
	}
	consistency, err := parseConsistency(cfg.Consistency)
	if err != nil {
		return nil, err
	}

	bootstrap := newCluster(cfg, consistency)
	base, err := bootstrap.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("scylla: connect: %w", err)
	}
	defer base.Close()
	if err := ensureKeyspace(ctx, base, cfg); err != nil {
		return nil, err
	}

	cluster := newCluster(cfg, consistency)
	cluster.Keyspace = cfg.Keyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("scylla: connect to keyspace %s: %w", cfg.Keyspace, err)
	}
	if err := ensureTables(ctx, session); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace)
	}
	return session, nil
}

func newCluster(cfg SessionConfig, consistency gocql.Consistency) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Consistency = consistency
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}
	return cluster
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	if strings.TrimSpace(raw) == "" {
		return gocql.Quorum, nil
	}
	c, err := gocql.ParseConsistencyWrapper(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return 0, fmt.Errorf("scylla: consistency %q: %w", raw, err)
	}
	return c, nil
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg SessionConfig) error {
	rf := cfg.ReplicationFactor
	if rf <= 0 {
		rf = 1
	}
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.Keyspace, rf,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("scylla: create keyspace: %w", err)
	}
	return nil
}

var schema = []struct {
	name string
	cql  string
}{
	{"conversations", `CREATE TABLE IF NOT EXISTS conversations (
	id text PRIMARY KEY,
	participants list<text>,
	item_id text,
	item_type text,
	last_message text,
	last_sender text,
	created_at timestamp,
	updated_at timestamp
)`},
	{"conversations_by_user", `CREATE TABLE IF NOT EXISTS conversations_by_user (
	user_id text,
	conversation_id text,
	PRIMARY KEY (user_id, conversation_id)
)`},
	{"messages", `CREATE TABLE IF NOT EXISTS messages (
	conversation_id text,
	sent_at timestamp,
	message_id text,
	sender_id text,
	receiver_id text,
	body text,
	status text,
	item_type text,
	PRIMARY KEY (conversation_id, sent_at, message_id)
) WITH CLUSTERING ORDER BY (sent_at ASC, message_id ASC)`},
	{"unread_counts", `CREATE TABLE IF NOT EXISTS unread_counts (
	user_id text,
	conversation_id text,
	unread counter,
	PRIMARY KEY (user_id, conversation_id)
)`},
}

func ensureTables(ctx context.Context, session *gocql.Session) error {
	for _, table := range schema {
		if err := session.Query(table.cql).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("scylla: create %s table: %w", table.name, err)
		}
	}
	return nil
}
