package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx executed by store methods. Both the pool and an
// open transaction satisfy it, so callers pick their atomicity scope.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is the pool surface the store needs.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists conversations and messages in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// WithTx runs fn inside a single transaction. fn receives the transaction as a
// Querier; any error rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chat: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("chat: commit tx: %w", err)
	}
	return nil
}

// CreateConversation inserts a new OPEN conversation. Returns
// ErrConversationExists if the id is already taken.
func (s *Store) CreateConversation(ctx context.Context, q Querier, id uuid.UUID) error {
	if q == nil {
		q = s.pool
	}
	query := `
		INSERT INTO conversations (id, status)
		VALUES ($1, 'OPEN')
	`
	if _, err := q.Exec(ctx, query, id); err != nil {
		if isUniqueViolation(err) {
			return ErrConversationExists
		}
		return fmt.Errorf("chat: create conversation: %w", err)
	}
	return nil
}

// GetConversation loads one conversation by id.
func (s *Store) GetConversation(ctx context.Context, q Querier, id uuid.UUID) (*Conversation, error) {
	if q == nil {
		q = s.pool
	}
	query := `
		SELECT id, status, created_at, closed_at
		FROM conversations
		WHERE id = $1
	`
	var c Conversation
	var status string
	if err := q.QueryRow(ctx, query, id).Scan(&c.ID, &status, &c.CreatedAt, &c.ClosedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("chat: get conversation: %w", err)
	}
	c.Status = ConversationStatus(status)
	return &c, nil
}

// ConversationExists reports whether a conversation row exists.
func (s *Store) ConversationExists(ctx context.Context, q Querier, id uuid.UUID) (bool, error) {
	if q == nil {
		q = s.pool
	}
	query := `SELECT 1 FROM conversations WHERE id = $1`
	var exists int
	if err := q.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("chat: check conversation: %w", err)
	}
	return true, nil
}

// CloseConversation transitions OPEN → CLOSED. Returns ErrConversationNotFound
// if no row exists and ErrConversationClosed if it was closed already.
func (s *Store) CloseConversation(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	query := `
		UPDATE conversations
		SET status = 'CLOSED', closed_at = $2
		WHERE id = $1 AND status = 'OPEN'
	`
	tag, err := s.pool.Exec(ctx, query, id, closedAt)
	if err != nil {
		return fmt.Errorf("chat: close conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		conv, err := s.GetConversation(ctx, nil, id)
		if err != nil {
			return err
		}
		if conv.Status == StatusClosed {
			return ErrConversationClosed
		}
		return fmt.Errorf("chat: close conversation %s: no rows updated", id)
	}
	return nil
}

// ListConversationIDs returns the ids of every conversation.
func (s *Store) ListConversationIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM conversations ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chat: list conversation ids: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("chat: scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertMessage persists a message, bound or orphaned.
func (s *Store) InsertMessage(ctx context.Context, q Querier, m *Message) error {
	if q == nil {
		q = s.pool
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `
		INSERT INTO messages (id, conversation_id, direction, content, event_timestamp, processed, expected_conversation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, query,
		m.ID, m.ConversationID, string(m.Direction), m.Content,
		m.EventTimestamp, m.Processed, m.ExpectedConversationID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrMessageExists
		}
		return fmt.Errorf("chat: insert message: %w", err)
	}
	return nil
}

// GetMessageForUpdate loads a message under a row-level exclusive lock. Must be
// called inside a transaction or the lock is released immediately.
func (s *Store) GetMessageForUpdate(ctx context.Context, q Querier, id uuid.UUID) (*Message, error) {
	if q == nil {
		q = s.pool
	}
	query := `
		SELECT id, conversation_id, direction, content, event_timestamp, processed, expected_conversation_id, created_at
		FROM messages
		WHERE id = $1
		FOR UPDATE
	`
	return s.scanMessageRow(q.QueryRow(ctx, query, id))
}

// ListUnprocessedInbound returns a conversation's unprocessed INBOUND messages
// ordered ascending by event timestamp, the exact input the windowing engine
// requires.
func (s *Store) ListUnprocessedInbound(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	query := `
		SELECT id, conversation_id, direction, content, event_timestamp, processed, expected_conversation_id, created_at
		FROM messages
		WHERE conversation_id = $1
			AND direction = 'INBOUND'
			AND processed = false
		ORDER BY event_timestamp ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: list unprocessed inbound: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListMessages returns all of a conversation's messages ordered by event timestamp.
func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	query := `
		SELECT id, conversation_id, direction, content, event_timestamp, processed, expected_conversation_id, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY event_timestamp ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MarkProcessed flips the processed flag for the given message ids.
func (s *Store) MarkProcessed(ctx context.Context, q Querier, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if q == nil {
		q = s.pool
	}
	query := `
		UPDATE messages
		SET processed = true
		WHERE id = ANY($1)
	`
	if _, err := q.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("chat: mark processed: %w", err)
	}
	return nil
}

// BindMessage attaches an orphaned message to its conversation and clears the
// provisional expected id.
func (s *Store) BindMessage(ctx context.Context, q Querier, messageID, conversationID uuid.UUID) error {
	if q == nil {
		q = s.pool
	}
	query := `
		UPDATE messages
		SET conversation_id = $2, expected_conversation_id = NULL
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, messageID, conversationID)
	if err != nil {
		return fmt.Errorf("chat: bind message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteMessage removes a message row.
func (s *Store) DeleteMessage(ctx context.Context, q Querier, id uuid.UUID) error {
	if q == nil {
		q = s.pool
	}
	query := `DELETE FROM messages WHERE id = $1`
	if _, err := q.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("chat: delete message: %w", err)
	}
	return nil
}

func (s *Store) scanMessageRow(row pgx.Row) (*Message, error) {
	var m Message
	var direction string
	err := row.Scan(
		&m.ID, &m.ConversationID, &direction, &m.Content,
		&m.EventTimestamp, &m.Processed, &m.ExpectedConversationID, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("chat: scan message: %w", err)
	}
	m.Direction = Direction(direction)
	return &m, nil
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	var result []Message
	for rows.Next() {
		var m Message
		var direction string
		err := rows.Scan(
			&m.ID, &m.ConversationID, &direction, &m.Content,
			&m.EventTimestamp, &m.Processed, &m.ExpectedConversationID, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		m.Direction = Direction(direction)
		result = append(result, m)
	}
	return result, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
