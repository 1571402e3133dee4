package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/scriptgen/internal/config"
	"github.com/gosight/gosight/scriptgen/internal/pipeline"
	"github.com/gosight/gosight/scriptgen/internal/recording"
	"github.com/gosight/gosight/scriptgen/internal/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	batches [][]storage.ConversionRow
	err     error
}

func (f *fakeStore) InsertConversions(ctx context.Context, rows []storage.ConversionRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, rows)
	return f.err
}

func (f *fakeStore) rows() []storage.ConversionRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ConversionRow
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakePublisher struct {
	mu       sync.Mutex
	keys     []string
	messages []ScriptMessage
	err      error
}

func (f *fakePublisher) PublishScript(ctx context.Context, key string, msg interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.messages = append(f.messages, msg.(ScriptMessage))
	return f.err
}

const recordingMessage = `{
	"project_id": "proj-1",
	"session_id": "sess-1",
	"target": "fragment",
	"events": [
		{"type":4,"data":{"href":"https://example.com"},"timestamp":1},
		{"type":2,"data":{"node":{"id":1,"childNodes":[{"id":5,"tagName":"button","attributes":{"id":"go"}}]}},"timestamp":2},
		{"type":3,"data":{"source":2,"type":2,"id":5},"timestamp":3},
		{"type":3,"data":{"source":2,"type":2,"id":77},"timestamp":4}
	]
}`

func newProcessor(pub ScriptPublisher, store ConversionStore, size int) *ScriptProcessor {
	conv := pipeline.NewConverter(config.GeneratorConfig{DefaultTarget: "playwright"})
	return NewScriptProcessor(conv, pub, store, config.BatchConfig{Size: size, FlushInterval: time.Hour})
}

func TestProcess_PublishesAndRecords(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeStore{}
	p := newProcessor(pub, store, 10)

	require.NoError(t, p.Process(context.Background(), []byte(recordingMessage)))

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, "sess-1", pub.keys[0])
	assert.Equal(t, "proj-1", msg.ProjectID)
	assert.Equal(t, "fragment", msg.Target)
	assert.Equal(t, "https://example.com", msg.StartURL)
	assert.Contains(t, msg.Script, `await page.locator("#go").click();`)
	assert.Equal(t, 2, msg.ActionCount)
	assert.Equal(t, 1, msg.SkippedCount)
	assert.NotEmpty(t, msg.ConversionID)

	// below batch size: nothing written until Stop
	assert.Empty(t, store.rows())
	p.Stop()

	rows := store.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, msg.ConversionID, rows[0].ConversionID)
	assert.Equal(t, "kafka", rows[0].Source)
	assert.Equal(t, uint32(4), rows[0].EventCount)
	assert.Equal(t, uint32(2), rows[0].ActionCount)
	assert.Equal(t, uint32(1), rows[0].SkippedCount)
	assert.Equal(t, uint32(len(msg.Script)), rows[0].ScriptBytes)
}

func TestProcess_FlushesWhenBatchFull(t *testing.T) {
	store := &fakeStore{}
	p := newProcessor(nil, store, 2)
	defer p.Stop()

	require.NoError(t, p.Process(context.Background(), []byte(recordingMessage)))
	require.NoError(t, p.Process(context.Background(), []byte(recordingMessage)))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.batches, 1)
	assert.Len(t, store.batches[0], 2)
}

func TestProcess_Errors(t *testing.T) {
	p := newProcessor(nil, nil, 10)
	defer p.Stop()

	err := p.Process(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, recording.ErrMalformedInput)

	err = p.Process(context.Background(), []byte(`{"session_id":"s","events":[]}`))
	assert.ErrorIs(t, err, recording.ErrMissingSnapshot)
}

func TestProcess_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	store := &fakeStore{}
	p := newProcessor(pub, store, 1)
	defer p.Stop()

	require.NoError(t, p.Process(context.Background(), []byte(recordingMessage)))
	assert.Len(t, store.rows(), 1)
}

func TestStop_Idempotent(t *testing.T) {
	p := newProcessor(nil, &fakeStore{}, 10)
	p.Stop()
	assert.NotPanics(t, p.Stop)
}

func TestNewConversionRow(t *testing.T) {
	res := &pipeline.Result{
		ConversionID: "c1",
		Script:       "abc",
		StartURL:     "https://example.com",
		Target:       "python",
		EventCount:   10,
		ActionCount:  3,
		SkippedCount: 1,
		Warnings:     []string{"w1", "w2"},
		Duration:     1500 * time.Millisecond,
	}

	row := NewConversionRow(res, RowMeta{ProjectID: "p", SessionID: "s", Source: "http", Cached: true, Browser: "Firefox", Country: "FR"})

	assert.Equal(t, "c1", row.ConversionID)
	assert.Equal(t, "python", row.Target)
	assert.Equal(t, uint32(10), row.EventCount)
	assert.Equal(t, uint32(2), row.WarningCount)
	assert.Equal(t, uint32(3), row.ScriptBytes)
	assert.Equal(t, uint32(1500), row.DurationMs)
	assert.Equal(t, uint8(1), row.Cached)
	assert.Equal(t, "Firefox", row.Browser)
	assert.Equal(t, "FR", row.Country)
	assert.False(t, row.CreatedAt.IsZero())
}
