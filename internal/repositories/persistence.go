// Package repositories provides the optional durable write-through behind the
// in-memory stores. The in-memory stores remain the source of truth for live
// broadcast; failures here are logged and never surfaced to clients.
package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"presence-service/internal/models"
)

// Persistence abstracts the durable store boundary.
type Persistence interface {
	SaveMessage(ctx context.Context, msg models.Message) error
	SaveRoom(ctx context.Context, room models.RoomSummary) error
	DeleteRoom(ctx context.Context, name string) error
	Close() error
}

// PostgresStore is a sqlx implementation of Persistence.
type PostgresStore struct {
	db *sqlx.DB
}

// Connect opens the database and applies migrations.
func Connect(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
            name TEXT PRIMARY KEY,
            created_by TEXT NOT NULL,
            created_at BIGINT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            room TEXT NOT NULL,
            sender_id TEXT NOT NULL,
            sender_name TEXT NOT NULL,
            text TEXT NOT NULL,
            timestamp BIGINT NOT NULL,
            private BOOLEAN DEFAULT FALSE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages (room, timestamp);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// SaveMessage inserts a message, ignoring duplicates.
func (s *PostgresStore) SaveMessage(ctx context.Context, msg models.Message) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (id, room, sender_id, sender_name, text, timestamp, private)
        VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		msg.ID, msg.Room, msg.SenderID, msg.SenderName, msg.Text, msg.Timestamp, msg.Private)
	return err
}

// SaveRoom upserts room metadata.
func (s *PostgresStore) SaveRoom(ctx context.Context, room models.RoomSummary) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO rooms (name, created_by, created_at)
        VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		room.Name, room.CreatedBy, room.CreatedAt)
	return err
}

// DeleteRoom removes the room and its messages.
func (s *PostgresStore) DeleteRoom(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE room=$1`, name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE name=$1`, name)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
