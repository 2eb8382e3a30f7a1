package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ynotnauk/go-irc/entities"
)

const topicSchema = `
CREATE TABLE IF NOT EXISTS topics (
	network TEXT NOT NULL,
	channel TEXT NOT NULL,
	topic   TEXT NOT NULL,
	set_by  TEXT NOT NULL,
	set_at  INTEGER NOT NULL,
	PRIMARY KEY (network, channel)
)`

// SQLiteTopicStore persists the last known topic of every channel so it
// survives restarts.
type SQLiteTopicStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLiteTopicStore(databasePath string) (*SQLiteTopicStore, error) {
	if databasePath == "" {
		return nil, ErrBlankStoreLocation
	}
	if databasePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(databasePath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("open topic database: %w", err)
	}
	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(topicSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create topic schema: %w", err)
	}
	return &SQLiteTopicStore{db: db, timeout: 5 * time.Second}, nil
}

func (s *SQLiteTopicStore) SetTopic(network string, channel string, topic *entities.TopicInfo) error {
	var setAt int64
	if !topic.SetAt.IsZero() {
		setAt = topic.SetAt.UnixMilli()
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO topics (network, channel, topic, set_by, set_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (network, channel) DO UPDATE SET
			topic = excluded.topic, set_by = excluded.set_by, set_at = excluded.set_at`,
		network, strings.ToLower(channel), topic.Topic, topic.SetBy, setAt,
	)
	if err != nil {
		return fmt.Errorf("store topic for %s: %w", channel, err)
	}
	return nil
}

func (s *SQLiteTopicStore) GetTopic(network string, channel string) (*entities.TopicInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	var (
		topic entities.TopicInfo
		setAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT topic, set_by, set_at FROM topics WHERE network = ? AND channel = ?`,
		network, strings.ToLower(channel),
	).Scan(&topic.Topic, &topic.SetBy, &setAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTopicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load topic for %s: %w", channel, err)
	}
	if setAt != 0 {
		topic.SetAt = time.UnixMilli(setAt)
	}
	return &topic, nil
}

func (s *SQLiteTopicStore) Close() error {
	return s.db.Close()
}
