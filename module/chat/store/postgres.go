package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"socialchat/module/chat/model"
	"socialchat/tools/errs"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is the relational backend on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, pings and optionally applies the schema.
func NewPostgres(ctx context.Context, databaseURL string, migrate bool) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errs.WrapMsg(err, "pgxpool new")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "postgres ping")
	}
	s := &Postgres{pool: pool}
	if migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return errs.WrapMsg(err, "apply schema")
	}
	return nil
}

func (s *Postgres) Users() UserStore                 { return pgUsers{s} }
func (s *Postgres) Conversations() ConversationStore { return pgConvs{s} }
func (s *Postgres) Messages() MessageStore           { return pgMsgs{s} }

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close(context.Context) error {
	s.pool.Close()
	return nil
}

type pgUsers struct{ *Postgres }

func (s pgUsers) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, COALESCE(profile_picture, ''), gender
		FROM users WHERE id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return nil, errs.WrapMsg(err, "find users")
	}
	defer rows.Close()

	out := make([]*model.User, 0, len(ids))
	for rows.Next() {
		u := &model.User{}
		var gender string
		if err := rows.Scan(&u.ID, &u.Name, &u.ProfilePicture, &gender); err != nil {
			return nil, errs.WrapMsg(err, "scan user")
		}
		u.Gender = model.ParseGender(gender)
		out = append(out, u)
	}
	return out, errs.Wrap(rows.Err())
}

func (s pgUsers) Upsert(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, profile_picture, gender)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, profile_picture = EXCLUDED.profile_picture, gender = EXCLUDED.gender
	`, u.ID, u.Name, u.ProfilePicture, string(model.ParseGender(string(u.Gender))))
	return errs.WrapMsg(err, "upsert user")
}

type pgConvs struct{ *Postgres }

const convSelect = `
	SELECT c.id::text, COALESCE(c.last_message_id::text, ''), c.created_at, c.updated_at,
	       COALESCE(array_agg(p.user_id::text) FILTER (WHERE p.user_id IS NOT NULL), '{}')
	FROM conversations c
	LEFT JOIN conversation_participants p ON p.conversation_id = c.id
`

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	c := &model.Conversation{}
	if err := row.Scan(&c.ID, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt, &c.ParticipantIDs); err != nil {
		return nil, err
	}
	return c, nil
}

func (s pgConvs) Create(ctx context.Context, c *model.Conversation) error {
	inserted, err := s.insert(ctx, c)
	if err != nil {
		return err
	}
	if !inserted {
		return errs.New("pair conversation already exists", "id", c.ID)
	}
	return nil
}

func (s pgConvs) CreatePair(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	if model.PairKeyOf(c.ParticipantIDs) == "" {
		return nil, errs.ErrValidation.WrapMsg("a pair needs two distinct participants")
	}
	inserted, err := s.insert(ctx, c)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return s.FindPair(ctx, c.ParticipantIDs[0], c.ParticipantIDs[1])
	}
	return s.Get(ctx, c.ID)
}

// insert reports false when the pair key is already taken; the unique
// index decides between concurrent inserts.
func (s pgConvs) insert(ctx context.Context, c *model.Conversation) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, errs.WrapMsg(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (id, pair_key, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		ON CONFLICT (pair_key) DO NOTHING
		RETURNING id::text
	`, c.ID, model.PairKeyOf(c.ParticipantIDs), c.CreatedAt, c.UpdatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.WrapMsg(err, "insert conversation")
	}
	batch := &pgx.Batch{}
	for _, uid := range c.ParticipantIDs {
		batch.Queue(`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`, c.ID, uid)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return false, errs.WrapMsg(err, "insert participants")
	}
	if err := tx.Commit(ctx); err != nil {
		return false, errs.WrapMsg(err, "commit conversation")
	}
	return true, nil
}

func (s pgConvs) Get(ctx context.Context, id string) (*model.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, convSelect+`
		WHERE c.id = $1
		GROUP BY c.id
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get conversation")
	}
	return c, nil
}

func (s pgConvs) FindPair(ctx context.Context, a, b string) (*model.Conversation, error) {
	key := model.PairKeyOf([]string{a, b})
	if key == "" {
		return nil, errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	c, err := scanConversation(s.pool.QueryRow(ctx, convSelect+`
		WHERE c.pair_key = $1
		GROUP BY c.id
	`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find pair")
	}
	return c, nil
}

func (s pgConvs) ListForUser(ctx context.Context, userID string) ([]*model.Conversation, error) {
	rows, err := s.pool.Query(ctx, convSelect+`
		WHERE c.id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = $1)
		GROUP BY c.id
		ORDER BY c.updated_at DESC, c.id
	`, userID)
	if err != nil {
		return nil, errs.WrapMsg(err, "list conversations")
	}
	defer rows.Close()

	out := make([]*model.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, errs.WrapMsg(err, "scan conversation")
		}
		out = append(out, c)
	}
	return out, errs.Wrap(rows.Err())
}

func (s pgConvs) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET last_message_id = $2, updated_at = $3 WHERE id = $1
	`, conversationID, messageID, at)
	if err != nil {
		return errs.WrapMsg(err, "set last message")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	return nil
}

type pgMsgs struct{ *Postgres }

const msgColumns = `id::text, conversation_id::text, sender_id::text, content, type,
	COALESCE(image_url, ''), is_read, seq, created_at, updated_at`

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	var typ string
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &typ,
		&m.ImageURL, &m.IsRead, &m.Seq, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Type = model.MessageType(typ)
	return m, nil
}

func (s pgMsgs) Create(ctx context.Context, m *model.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, image_url, is_read, seq, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
	`, m.ID, m.ConversationID, m.SenderID, m.Content, string(m.Type), m.ImageURL, m.IsRead, m.Seq, m.CreatedAt, m.UpdatedAt)
	return errs.WrapMsg(err, "insert message")
}

func (s pgMsgs) Get(ctx context.Context, id string) (*model.Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx, `SELECT `+msgColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound.WrapMsg("Message not found")
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get message")
	}
	return m, nil
}

func (s pgMsgs) collect(rows pgx.Rows) ([]*model.Message, error) {
	defer rows.Close()
	out := make([]*model.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errs.WrapMsg(err, "scan message")
		}
		out = append(out, m)
	}
	return out, errs.Wrap(rows.Err())
}

func (s pgMsgs) ListPage(ctx context.Context, conversationID string, limit, offset int) ([]*model.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+msgColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, errs.WrapMsg(err, "list messages")
	}
	return s.collect(rows)
}

func (s pgMsgs) Latest(ctx context.Context, conversationIDs []string) (map[string]*model.Message, error) {
	out := make(map[string]*model.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (conversation_id) `+msgColumns+`
		FROM messages
		WHERE conversation_id = ANY($1::uuid[])
		ORDER BY conversation_id, created_at DESC, seq DESC
	`, conversationIDs)
	if err != nil {
		return nil, errs.WrapMsg(err, "latest messages")
	}
	list, err := s.collect(rows)
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		out[m.ConversationID] = m
	}
	return out, nil
}

func (s pgMsgs) MarkRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_read = true, updated_at = now() WHERE id = $1 AND NOT is_read
	`, id)
	if err != nil {
		return errs.WrapMsg(err, "mark read")
	}
	if tag.RowsAffected() == 0 {
		// already read, or gone
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s pgMsgs) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return errs.WrapMsg(err, "delete message")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound.WrapMsg("Message not found")
	}
	return nil
}
