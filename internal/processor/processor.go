package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/scriptgen/internal/config"
	"github.com/gosight/gosight/scriptgen/internal/pipeline"
	"github.com/gosight/gosight/scriptgen/internal/recording"
	"github.com/gosight/gosight/scriptgen/internal/storage"
)

// ConversionStore persists conversion audit rows
type ConversionStore interface {
	InsertConversions(ctx context.Context, rows []storage.ConversionRow) error
}

// ScriptPublisher publishes generated scripts
type ScriptPublisher interface {
	PublishScript(ctx context.Context, key string, msg interface{}) error
}

// RecordingMessage is the payload consumed from the recordings topic
type RecordingMessage struct {
	ProjectID string            `json:"project_id"`
	SessionID string            `json:"session_id"`
	Target    string            `json:"target"`
	TestName  string            `json:"test_name"`
	Events    []recording.Event `json:"events"`
}

// ScriptMessage is the payload produced to the scripts topic
type ScriptMessage struct {
	ConversionID string   `json:"conversion_id"`
	ProjectID    string   `json:"project_id"`
	SessionID    string   `json:"session_id"`
	Target       string   `json:"target"`
	StartURL     string   `json:"start_url"`
	Script       string   `json:"script"`
	ActionCount  int      `json:"action_count"`
	SkippedCount int      `json:"skipped_count"`
	Warnings     []string `json:"warnings,omitempty"`
	GeneratedAt  int64    `json:"generated_at"`
}

// RowMeta carries request context that is not part of a conversion result
type RowMeta struct {
	ProjectID string
	SessionID string
	Source    string
	Cached    bool
	Browser   string
	OS        string
	Country   string
}

// NewConversionRow builds an audit row for a conversion result
func NewConversionRow(res *pipeline.Result, meta RowMeta) storage.ConversionRow {
	row := storage.ConversionRow{
		ConversionID: res.ConversionID,
		ProjectID:    meta.ProjectID,
		SessionID:    meta.SessionID,
		Source:       meta.Source,
		Target:       string(res.Target),
		StartURL:     res.StartURL,
		EventCount:   uint32(res.EventCount),
		ActionCount:  uint32(res.ActionCount),
		SkippedCount: uint32(res.SkippedCount),
		WarningCount: uint32(len(res.Warnings)),
		ScriptBytes:  uint32(len(res.Script)),
		DurationMs:   uint32(res.Duration.Milliseconds()),
		Browser:      meta.Browser,
		OS:           meta.OS,
		Country:      meta.Country,
		CreatedAt:    time.Now(),
	}
	if meta.Cached {
		row.Cached = 1
	}
	return row
}

// ScriptProcessor converts recordings from Kafka, publishes the scripts and
// writes audit rows to ClickHouse in batches
type ScriptProcessor struct {
	converter *pipeline.Converter
	publisher ScriptPublisher
	store     ConversionStore
	batchCfg  config.BatchConfig

	rowBuffer []storage.ConversionRow

	mu        sync.Mutex
	lastFlush time.Time
	ticker    *time.Ticker
	done      chan struct{}
	stopOnce  sync.Once
}

// NewScriptProcessor creates a new script processor. publisher and store
// may be nil, in which case publishing or auditing is skipped.
func NewScriptProcessor(converter *pipeline.Converter, publisher ScriptPublisher, store ConversionStore, batchCfg config.BatchConfig) *ScriptProcessor {
	if batchCfg.Size <= 0 {
		batchCfg.Size = 100
	}
	if batchCfg.FlushInterval <= 0 {
		batchCfg.FlushInterval = 5 * time.Second
	}

	p := &ScriptProcessor{
		converter: converter,
		publisher: publisher,
		store:     store,
		batchCfg:  batchCfg,
		rowBuffer: make([]storage.ConversionRow, 0, batchCfg.Size),
		lastFlush: time.Now(),
		done:      make(chan struct{}),
	}

	// Start flush ticker
	p.ticker = time.NewTicker(batchCfg.FlushInterval)
	go p.flushLoop()

	return p
}

// Process converts a single recording message
func (p *ScriptProcessor) Process(ctx context.Context, value []byte) error {
	var msg RecordingMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("%w: %v", recording.ErrMalformedInput, err)
	}

	res, err := p.converter.ConvertEvents(ctx, msg.Events, pipeline.Request{
		Target:   msg.Target,
		TestName: msg.TestName,
	})
	if err != nil {
		return fmt.Errorf("convert session %s: %w", msg.SessionID, err)
	}

	if p.publisher != nil {
		out := ScriptMessage{
			ConversionID: res.ConversionID,
			ProjectID:    msg.ProjectID,
			SessionID:    msg.SessionID,
			Target:       string(res.Target),
			StartURL:     res.StartURL,
			Script:       res.Script,
			ActionCount:  res.ActionCount,
			SkippedCount: res.SkippedCount,
			Warnings:     res.Warnings,
			GeneratedAt:  time.Now().UnixMilli(),
		}
		if err := p.publisher.PublishScript(ctx, msg.SessionID, out); err != nil {
			log.Error().Err(err).Str("session_id", msg.SessionID).Msg("Failed to publish script")
		}
	}

	p.Record(NewConversionRow(res, RowMeta{
		ProjectID: msg.ProjectID,
		SessionID: msg.SessionID,
		Source:    "kafka",
	}))

	return nil
}

// Record buffers an audit row, flushing when the batch is full
func (p *ScriptProcessor) Record(row storage.ConversionRow) {
	if p.store == nil {
		return
	}

	p.mu.Lock()
	p.rowBuffer = append(p.rowBuffer, row)
	shouldFlush := len(p.rowBuffer) >= p.batchCfg.Size
	p.mu.Unlock()

	if shouldFlush {
		p.Flush()
	}
}

func (p *ScriptProcessor) flushLoop() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.Flush()
		}
	}
}

// Flush writes all buffered rows to the store
func (p *ScriptProcessor) Flush() {
	p.mu.Lock()
	if len(p.rowBuffer) == 0 || p.store == nil {
		p.mu.Unlock()
		return
	}

	rows := p.rowBuffer
	p.rowBuffer = make([]storage.ConversionRow, 0, p.batchCfg.Size)
	p.lastFlush = time.Now()
	p.mu.Unlock()

	start := time.Now()
	if err := p.store.InsertConversions(context.Background(), rows); err != nil {
		log.Error().Err(err).Int("count", len(rows)).Msg("Failed to insert conversions")
		return
	}
	log.Info().
		Int("count", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Flushed conversions to ClickHouse")
}

// Stop stops the processor
func (p *ScriptProcessor) Stop() {
	p.stopOnce.Do(func() {
		p.ticker.Stop()
		close(p.done)
		p.Flush() // Final flush
	})
}
