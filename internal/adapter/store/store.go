// Package store implements domain.ConversationStore over database/sql.
// SQLite (modernc.org/sqlite) is the default driver; PostgreSQL goes
// through pgx's database/sql driver. Both share one schema and one set of
// queries written with "?" placeholders.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// SQLStore is a domain.ConversationStore backed by a *sql.DB.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens the store selected by cfg.Driver and migrates its schema.
func Open(ctx context.Context, cfg config.StoreConfig) (*SQLStore, error) {
	switch Dialect(cfg.Driver) {
	case "", SQLite:
		return NewSQLite(ctx, cfg.DSN)
	case Postgres:
		return NewPostgres(ctx, cfg.DSN, cfg.MaxOpenConns)
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", dialect, err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Dialect reports the backend in use.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) exec(ctx context.Context, e execer, query string, args ...any) (sql.Result, error) {
	return e.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT user_id, display_name, language, theme, updated_at FROM profiles WHERE user_id = ?"), userID)
	var p domain.Profile
	var updated int64
	if err := row.Scan(&p.UserID, &p.DisplayName, &p.Language, &p.Theme, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewSubSystemError("store", "Store.GetProfile", domain.ErrProfileNotFound, userID)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func (s *SQLStore) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, s.db, `
		INSERT INTO profiles (user_id, display_name, language, theme, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = excluded.display_name,
			language = excluded.language,
			theme = excluded.theme,
			updated_at = excluded.updated_at`,
		p.UserID, p.DisplayName, p.Language, p.Theme, toMillis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// ListConversations returns the user's conversations, most recently
// updated first, without messages.
func (s *SQLStore) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, id DESC"),
		userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := []domain.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

func (s *SQLStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ?"), id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewSubSystemError("store", "Store.GetConversation", domain.ErrConversationNotFound, id)
	}
	return c, err
}

// GetMessages returns a conversation's messages in conversation order.
func (s *SQLStore) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT id, conversation_id, role, content, status, created_at FROM messages WHERE conversation_id = ? ORDER BY position"),
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var status string
		var created int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &status, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Status = domain.MessageStatus(status)
		m.CreatedAt = fromMillis(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveConversation upserts the conversation row and replaces its message
// list with conv.Messages in one transaction.
func (s *SQLStore) SaveConversation(ctx context.Context, conv *domain.Conversation) error {
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := s.exec(ctx, tx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at`,
		conv.ID, conv.UserID, conv.Title, toMillis(conv.CreatedAt), toMillis(conv.UpdatedAt)); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	if _, err := s.exec(ctx, tx, "DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	for i, m := range conv.Messages {
		if _, err := s.exec(ctx, tx, `
			INSERT INTO messages (id, conversation_id, position, role, content, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, conv.ID, i, m.Role, m.Content, string(m.Status), toMillis(m.CreatedAt)); err != nil {
			return fmt.Errorf("save message %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := s.exec(ctx, tx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := s.exec(ctx, tx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewSubSystemError("store", "Store.DeleteConversation", domain.ErrConversationNotFound, id)
	}
	return tx.Commit()
}

func (s *SQLStore) DeleteAllConversations(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete all: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := s.exec(ctx, tx,
		"DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE user_id = ?)", userID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := s.exec(ctx, tx, "DELETE FROM conversations WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete conversations: %w", err)
	}
	return tx.Commit()
}

// GetUsage returns the day's counter, zero when nothing was recorded.
func (s *SQLStore) GetUsage(ctx context.Context, userID, day string) (domain.Usage, error) {
	u := domain.Usage{UserID: userID, Day: day}
	err := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT message_count FROM daily_usage WHERE user_id = ? AND day = ?"), userID, day).Scan(&u.Count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("get usage: %w", err)
	}
	return u, nil
}

// IncrementUsage atomically bumps the day's counter and returns it.
func (s *SQLStore) IncrementUsage(ctx context.Context, userID, day string) (domain.Usage, error) {
	u := domain.Usage{UserID: userID, Day: day}
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO daily_usage (user_id, day, message_count) VALUES (?, ?, 1)
		ON CONFLICT (user_id, day) DO UPDATE SET message_count = daily_usage.message_count + 1
		RETURNING message_count`), userID, day).Scan(&u.Count)
	if err != nil {
		return u, fmt.Errorf("increment usage: %w", err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*domain.Conversation, error) {
	var c domain.Conversation
	var created, updated int64
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

var _ domain.ConversationStore = (*SQLStore)(nil)
