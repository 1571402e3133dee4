package storage

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/gosight/gosight/scriptgen/internal/config"
)

type ClickHouse struct {
	conn driver.Conn
}

// ConversionRow represents a row in the script_conversions table
type ConversionRow struct {
	ConversionID string
	ProjectID    string
	SessionID    string
	Source       string
	Target       string
	StartURL     string
	EventCount   uint32
	ActionCount  uint32
	SkippedCount uint32
	WarningCount uint32
	ScriptBytes  uint32
	DurationMs   uint32
	Cached       uint8
	Browser      string
	OS           string
	Country      string
	CreatedAt    time.Time
}

func NewClickHouse(cfg config.ClickHouseConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &ClickHouse{conn: conn}, nil
}

func (c *ClickHouse) InsertConversions(ctx context.Context, rows []ConversionRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO script_conversions (
			conversion_id, project_id, session_id, source, target, start_url,
			event_count, action_count, skipped_count, warning_count,
			script_bytes, duration_ms, cached,
			browser, os, country, created_at
		)
	`)
	if err != nil {
		return err
	}

	for _, r := range rows {
		err := batch.Append(
			r.ConversionID, r.ProjectID, r.SessionID, r.Source, r.Target, r.StartURL,
			r.EventCount, r.ActionCount, r.SkippedCount, r.WarningCount,
			r.ScriptBytes, r.DurationMs, r.Cached,
			r.Browser, r.OS, r.Country, r.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}
