// Package pipeline composes the conversion stages: load, reconstruct,
// extract, synthesize selectors, generate code. Each call owns all of its
// state, so one Converter can serve concurrent requests.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/scriptgen/internal/actions"
	"github.com/gosight/gosight/scriptgen/internal/codegen"
	"github.com/gosight/gosight/scriptgen/internal/config"
	"github.com/gosight/gosight/scriptgen/internal/dom"
	"github.com/gosight/gosight/scriptgen/internal/recording"
	"github.com/gosight/gosight/scriptgen/internal/selector"
)

// Request carries per-conversion overrides of the generator config
type Request struct {
	Target   string
	TestName string
}

// Result is the outcome of one conversion
type Result struct {
	ConversionID string
	Script       string
	StartURL     string
	Target       codegen.Target
	Actions      []selector.ActionWithSelector
	EventCount   int
	ActionCount  int
	SkippedCount int
	Warnings     []string
	Duration     time.Duration
}

// Converter turns rrweb recordings into automation scripts
type Converter struct {
	cfg    config.GeneratorConfig
	logger zerolog.Logger
}

// NewConverter creates a converter with the given defaults
func NewConverter(cfg config.GeneratorConfig) *Converter {
	return &Converter{
		cfg:    cfg,
		logger: log.With().Str("component", "converter").Logger(),
	}
}

// Convert parses raw recording JSON and converts it
func (c *Converter) Convert(ctx context.Context, data []byte, req Request) (*Result, error) {
	events, err := recording.Parse(data)
	if err != nil {
		return nil, err
	}
	return c.ConvertEvents(ctx, events, req)
}

// ConvertEvents converts an already decoded event sequence
func (c *Converter) ConvertEvents(ctx context.Context, events []recording.Event, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	target := req.Target
	if target == "" {
		target = c.cfg.DefaultTarget
	}
	t, err := codegen.ParseTarget(target)
	if err != nil {
		return nil, err
	}

	rec, err := recording.Validate(events, c.cfg.PlaceholderURL)
	if err != nil {
		return nil, err
	}
	warnings := append([]string(nil), rec.Warnings...)

	maxDepth := c.cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = dom.DefaultMaxDepth
	}
	nodes, stats, err := dom.Reconstruct(rec.Snapshot.Data, dom.WithMaxDepth(maxDepth))
	if err != nil {
		return nil, err
	}
	if stats.SkippedTooDeep > 0 {
		msg := fmt.Sprintf("snapshot deeper than %d levels, %d subtrees skipped", maxDepth, stats.SkippedTooDeep)
		warnings = append(warnings, msg)
		c.logger.Warn().Int("skipped", stats.SkippedTooDeep).Int("max_depth", maxDepth).Msg("Snapshot truncated")
	}

	acts := actions.Extract(rec.Events)
	for _, rc := range actions.DetectRageClicks(acts, actions.DefaultRageMinClicks, actions.DefaultRageWindowMs) {
		warnings = append(warnings, "possible rage click: "+rc.String())
		c.logger.Debug().Int64("target_id", rc.TargetID).Int("clicks", rc.Count).Msg("Rage click in recording")
	}
	resolved := selector.Resolve(nodes, acts)

	skipped := 0
	for _, a := range resolved {
		if !a.Selector.Failed() {
			continue
		}
		skipped++
		msg := fmt.Sprintf("%s at %d skipped: %s", a.Kind, a.Timestamp, a.Selector.Reason())
		warnings = append(warnings, msg)
		c.logger.Debug().
			Str("kind", string(a.Kind)).
			Int64("target_id", a.TargetID).
			Str("reason", a.Selector.Reason()).
			Msg("No selector for action")
	}

	testName := req.TestName
	if testName == "" {
		testName = c.cfg.TestName
	}

	script, err := codegen.Generate(resolved, codegen.Options{
		Target:              t,
		StartURL:            rec.StartURL,
		TestName:            testName,
		DismissCookieBanner: c.cfg.DismissCookieBanner,
		MaskedPlaceholder:   c.cfg.MaskedPlaceholder,
		Template:            c.cfg.Template,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		ConversionID: uuid.New().String(),
		Script:       script,
		StartURL:     rec.StartURL,
		Target:       t,
		Actions:      resolved,
		EventCount:   len(events),
		ActionCount:  len(resolved),
		SkippedCount: skipped,
		Warnings:     warnings,
		Duration:     time.Since(start),
	}

	c.logger.Info().
		Str("conversion_id", result.ConversionID).
		Str("target", string(t)).
		Int("events", len(events)).
		Int("nodes", stats.Nodes).
		Int("actions", result.ActionCount).
		Int("skipped", skipped).
		Dur("duration", result.Duration).
		Msg("Recording converted")

	return result, nil
}
