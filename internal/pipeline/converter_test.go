package pipeline

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/scriptgen/internal/actions"
	"github.com/gosight/gosight/scriptgen/internal/codegen"
	"github.com/gosight/gosight/scriptgen/internal/config"
	"github.com/gosight/gosight/scriptgen/internal/recording"
	"github.com/gosight/gosight/scriptgen/internal/selector"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/login.json")
	require.NoError(t, err)
	return data
}

func newTestConverter() *Converter {
	return NewConverter(config.GeneratorConfig{
		DefaultTarget:     "playwright",
		PlaceholderURL:    "https://placeholder.test",
		MaskedPlaceholder: codegen.DefaultMaskedPlaceholder,
	})
}

func TestConvert_LoginRecording(t *testing.T) {
	t.Parallel()

	res, err := newTestConverter().Convert(context.Background(), loadFixture(t), Request{})
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/login", res.StartURL)
	assert.Equal(t, codegen.TargetPlaywright, res.Target)
	assert.NotEmpty(t, res.ConversionID)

	require.Len(t, res.Actions, 5)

	email := res.Actions[0]
	assert.Equal(t, actions.KindInput, email.Kind)
	assert.Equal(t, int64(4), email.TargetID)
	require.NotNil(t, email.Value)
	assert.Equal(t, "alice@example.com", *email.Value)
	assert.Equal(t, int64(1746333243000), email.Timestamp)
	assert.Equal(t, selector.Selector(`[name="email"]`), email.Selector)

	password := res.Actions[1]
	assert.Equal(t, selector.Selector(`[data-testid="password"]`), password.Selector)

	submit := res.Actions[2]
	assert.Equal(t, actions.KindClick, submit.Kind)
	assert.Equal(t, selector.Selector("#submit-btn"), submit.Selector)

	// node 99 was added by a mutation after the snapshot
	assert.Equal(t, "node not found for id `99`", res.Actions[3].Selector.Reason())
	assert.Equal(t, "section", res.Actions[4].Selector.Reason())

	assert.Equal(t, 5, res.ActionCount)
	assert.Equal(t, 2, res.SkippedCount)
	assert.Len(t, res.Warnings, 2)

	script := res.Script
	assert.Contains(t, script, `await page.goto("https://shop.example.com/login");`)
	assert.Contains(t, script, `.fill("alice@example.com");`)
	assert.NotContains(t, script, "QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVo=")
	assert.Contains(t, script, codegen.DefaultMaskedPlaceholder)
	assert.Contains(t, script, `await page.locator("#submit-btn").click();`)
	assert.Contains(t, script, "SKIPPED: no selector could be generated (node not found for id `99`)")
	assert.Contains(t, script, "SKIPPED: no selector could be generated (section)")
	assert.Equal(t, 3, strings.Count(script, "await page.locator("))
}

func TestConvert_SingleClickByID(t *testing.T) {
	t.Parallel()

	data := `[
		{"type":2,"data":{"node":{"id":1,"childNodes":[{"id":5,"tagName":"button","attributes":{"id":"submit-btn"}}]}},"timestamp":1},
		{"type":3,"data":{"source":2,"type":2,"id":5},"timestamp":2}
	]`

	res, err := newTestConverter().Convert(context.Background(), []byte(data), Request{Target: "fragment"})
	require.NoError(t, err)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, selector.Selector("#submit-btn"), res.Actions[0].Selector)
	assert.Equal(t, "https://placeholder.test", res.StartURL)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "placeholder")
	assert.NotContains(t, res.Script, "page.goto")
}

func TestConvert_Errors(t *testing.T) {
	t.Parallel()

	c := newTestConverter()
	ctx := context.Background()

	_, err := c.Convert(ctx, []byte(`[{"type":4,"data":{"href":"https://x.test"},"timestamp":1}]`), Request{})
	assert.ErrorIs(t, err, recording.ErrMissingSnapshot)

	_, err = c.Convert(ctx, []byte(`{"events": 12}`), Request{})
	assert.ErrorIs(t, err, recording.ErrMalformedInput)

	_, err = c.Convert(ctx, []byte(`[{"type":2,"data":{"initialOffset":{}},"timestamp":1}]`), Request{})
	assert.ErrorIs(t, err, recording.ErrMalformedInput)

	_, err = c.Convert(ctx, loadFixture(t), Request{Target: "selenium"})
	assert.ErrorIs(t, err, codegen.ErrUnknownTarget)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Convert(cancelled, loadFixture(t), Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvert_AllTargets(t *testing.T) {
	t.Parallel()

	c := newTestConverter()
	data := loadFixture(t)

	for _, target := range codegen.Targets() {
		res, err := c.Convert(context.Background(), data, Request{Target: string(target), TestName: "login flow"})
		require.NoError(t, err, target)
		assert.Equal(t, target, res.Target)
		assert.Contains(t, res.Script, "#submit-btn", target)
	}
}

func TestConvert_DepthWarning(t *testing.T) {
	t.Parallel()

	c := NewConverter(config.GeneratorConfig{MaxDepth: 2})
	data := `[{"type":2,"data":{"node":{"id":1,"childNodes":[{"id":2,"childNodes":[{"id":3}]}]}},"timestamp":1}]`

	res, err := c.Convert(context.Background(), []byte(data), Request{})
	require.NoError(t, err)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "deeper than 2 levels") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", res.Warnings)
}

func TestConvert_ConcurrentCallsAreIsolated(t *testing.T) {
	t.Parallel()

	c := newTestConverter()
	data := loadFixture(t)

	want, err := c.Convert(context.Background(), data, Request{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	scripts := make([]string, 16)
	for i := range scripts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Convert(context.Background(), data, Request{})
			if err == nil {
				scripts[i] = res.Script
			}
		}(i)
	}
	wg.Wait()

	for _, s := range scripts {
		assert.Equal(t, want.Script, s)
	}
}

func TestConvert_RageClickWarning(t *testing.T) {
	t.Parallel()

	data := `[
		{"type":2,"data":{"node":{"id":1,"childNodes":[{"id":5,"tagName":"button","attributes":{"id":"buy"}}]}},"timestamp":1},
		{"type":3,"data":{"source":2,"type":2,"id":5},"timestamp":100},
		{"type":3,"data":{"source":2,"type":2,"id":5},"timestamp":250},
		{"type":3,"data":{"source":2,"type":2,"id":5},"timestamp":400}
	]`

	res, err := newTestConverter().Convert(context.Background(), []byte(data), Request{Target: "fragment"})
	require.NoError(t, err)

	// every click is still replayed
	assert.Equal(t, 3, res.ActionCount)
	assert.Equal(t, 3, strings.Count(res.Script, `await page.locator("#buy").click();`))
	assert.Contains(t, res.Warnings, "possible rage click: 3 rapid clicks on node 5 between 100 and 400")
}
