package actions

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/scriptgen/internal/recording"
)

func click(id, ts int64) recording.Event {
	return recording.Event{
		Type:      recording.EventTypeIncrementalSnapshot,
		Data:      []byte(fmt.Sprintf(`{"source":2,"type":2,"id":%d,"x":1,"y":1}`, id)),
		Timestamp: ts,
	}
}

func input(id int64, text string, ts int64) recording.Event {
	return recording.Event{
		Type:      recording.EventTypeIncrementalSnapshot,
		Data:      []byte(fmt.Sprintf(`{"source":5,"text":%q,"isChecked":false,"id":%d}`, text, id)),
		Timestamp: ts,
	}
}

func raw(eventType recording.EventType, data string, ts int64) recording.Event {
	return recording.Event{Type: eventType, Data: []byte(data), Timestamp: ts}
}

func value(a Action) string {
	if a.Value == nil {
		return "<nil>"
	}
	return *a.Value
}

func TestExtract_CoalescesInputBeforeClick(t *testing.T) {
	t.Parallel()

	acts := Extract([]recording.Event{
		input(7, "ab", 100),
		input(7, "abc", 110),
		click(5, 120),
	})

	require.Len(t, acts, 2)
	assert.Equal(t, KindInput, acts[0].Kind)
	assert.Equal(t, int64(7), acts[0].TargetID)
	assert.Equal(t, "abc", value(acts[0]))
	assert.Equal(t, int64(110), acts[0].Timestamp)

	assert.Equal(t, KindClick, acts[1].Kind)
	assert.Equal(t, int64(5), acts[1].TargetID)
	assert.Nil(t, acts[1].Value)
	assert.Equal(t, int64(120), acts[1].Timestamp)
}

func TestExtract_FlushesInInsertionOrder(t *testing.T) {
	t.Parallel()

	acts := Extract([]recording.Event{
		input(1, "a", 10),
		input(2, "b", 20),
		input(1, "aa", 30), // overwrites entry 1 but keeps its position
		click(9, 40),
	})

	require.Len(t, acts, 3)
	assert.Equal(t, int64(1), acts[0].TargetID)
	assert.Equal(t, "aa", value(acts[0]))
	assert.Equal(t, int64(30), acts[0].Timestamp)
	assert.Equal(t, int64(2), acts[1].TargetID)
	assert.Equal(t, int64(9), acts[2].TargetID)
}

func TestExtract_FlushesAtEndOfStream(t *testing.T) {
	t.Parallel()

	acts := Extract([]recording.Event{
		click(3, 5),
		input(4, "x", 10),
		input(6, "y", 20),
	})

	require.Len(t, acts, 3)
	assert.Equal(t, KindClick, acts[0].Kind)
	assert.Equal(t, int64(4), acts[1].TargetID)
	assert.Equal(t, int64(6), acts[2].TargetID)
}

func TestExtract_BufferResetsAfterClick(t *testing.T) {
	t.Parallel()

	acts := Extract([]recording.Event{
		input(4, "first", 10),
		click(3, 20),
		input(4, "second", 30),
		click(3, 40),
	})

	require.Len(t, acts, 4)
	assert.Equal(t, "first", value(acts[0]))
	assert.Equal(t, "second", value(acts[2]))
}

func TestExtract_IgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	acts := Extract([]recording.Event{
		raw(recording.EventTypeMeta, `{"href":"https://example.com"}`, 1),
		raw(recording.EventTypeFullSnapshot, `{"node":{"id":1}}`, 2),
		raw(recording.EventTypeIncrementalSnapshot, `{"source":0,"adds":[],"removes":[],"texts":[],"attributes":[]}`, 3),
		raw(recording.EventTypeIncrementalSnapshot, `{"source":1,"positions":[{"x":1,"y":2,"id":5,"timeOffset":0}]}`, 4),
		raw(recording.EventTypeIncrementalSnapshot, `{"source":2,"type":1,"id":5}`, 5),
		raw(recording.EventTypeIncrementalSnapshot, `{"source":3,"id":1,"x":0,"y":100}`, 6),
		raw(recording.EventTypeIncrementalSnapshot, `{"source":2,"type":2}`, 7),
		raw(recording.EventTypeIncrementalSnapshot, `{"source":5,"text":"lost"}`, 8),
		raw(recording.EventTypeIncrementalSnapshot, `not json`, 9),
		raw(recording.EventTypeCustom, `{"tag":"x"}`, 10),
	})

	assert.Empty(t, acts)
}

func TestExtract_InputWithoutText(t *testing.T) {
	t.Parallel()

	acts := Extract([]recording.Event{
		raw(recording.EventTypeIncrementalSnapshot, `{"source":5,"isChecked":true,"id":11}`, 1),
	})

	require.Len(t, acts, 1)
	assert.Equal(t, "", value(acts[0]))
}

func TestExtract_IsolatedPerCall(t *testing.T) {
	t.Parallel()

	first := Extract([]recording.Event{input(1, "a", 1)})
	second := Extract([]recording.Event{click(2, 2)})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, KindClick, second[0].Kind)
}
