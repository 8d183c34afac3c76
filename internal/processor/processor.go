// Package processor holds the text-transform collaborator used by the
// editor's AI actions. The Stub simulates a slow remote model.
package processor

import (
	"bytes"
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"time"
	"unicode/utf8"

	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/internal/metrics"
	"github.com/nkkko/textai/internal/telemetry"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Processor transforms text for an AI action
type Processor interface {
	ProcessText(ctx context.Context, text string, action proto.AIAction) (string, error)
}

// Config contains stub configuration
type Config struct {
	// Fixed part of the simulated latency
	Delay time.Duration

	// Random extra latency in [0, Jitter)
	Jitter time.Duration

	// Probability in [0, 1] that a call fails
	FailureRate float64

	// Random seed; zero seeds from the clock
	Seed int64
}

// DefaultConfig returns the stub defaults: two to four seconds per call
func DefaultConfig() Config {
	return Config{
		Delay:  2 * time.Second,
		Jitter: 2 * time.Second,
	}
}

var whitespace = regexp.MustCompile(`\s+`)

var funcs = template.FuncMap{
	// first n characters
	"head": func(n int, s string) string {
		if utf8.RuneCountInString(s) <= n {
			return s
		}
		return string([]rune(s)[:n])
	},
	"squash": func(s string) string {
		return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	},
	"chars": utf8.RuneCountInString,
	"tenth": func(s string) int {
		n := utf8.RuneCountInString(s)
		return (n + 9) / 10
	},
}

const genericTemplate = "Processed text:\n\n{{.}}\n\n[Generic AI processing applied]"

var templateSources = map[proto.AIAction]string{
	proto.AIActionImprove: "Improved version:\n\n{{.}}\n\n" +
		"[This text was tuned for clarity and impact. Sentences were restructured to flow better and words were chosen with more precision.]",
	proto.AIActionTranslate: "English translation:\n\n" +
		"[This is a simulated translation of your text. A real application would call a translation service here.]\n\n" +
		"Original length: {{chars .}} characters",
	proto.AIActionCorrect: "Corrected text:\n\n{{squash .}}\n\n" +
		"[Spelling, grammar and punctuation were checked and corrected.]",
	proto.AIActionSummarize: "Summary:\n\n" +
		"• Key point 1 drawn from your text\n" +
		"• Key point 2 extracted from the content\n" +
		"• Key point 3 distilling the main ideas\n\n" +
		"[This summary captures the essence of your original text in about {{tenth .}} words.]",
	proto.AIActionExpand: "{{.}}\n\nFurther development:\n\n" +
		"This idea can be taken further by considering several important aspects. First, the practical implications of the approach deserve analysis. Second, the different perspectives that enrich the reflection should be examined.\n\n" +
		"It is also essential to account for the contextual factors that shape the situation. This analysis clarifies the underlying stakes and points to opportunities for improvement.",
	proto.AIActionTone: "Professional tone:\n\n{{.}}\n\n" +
		"[The tone was adapted for a professional context, with more formal vocabulary and structure, while keeping the original message.]",
	proto.AIActionFormat: "# Main Title\n\n## Introduction\n{{head 100 .}}...\n\n" +
		"## Body\n- Point 1\n- Point 2\n- Point 3\n\n## Conclusion\n[Summary of the points covered]\n\n" +
		"*Document restructured with a clear hierarchy and well-defined sections.*",
	proto.AIActionOptimize: "{{.}}\n\n---\n\n**SEO optimizations applied:**\n" +
		"• Main keywords identified and woven in naturally\n" +
		"• Heading hierarchy improved (H1, H2, H3)\n" +
		"• Suggested meta description: \"{{head 150 .}}...\"\n" +
		"• Keyword density tuned for search engines\n" +
		"• Readability improved for a better user experience",
}

var (
	templates = func() map[proto.AIAction]*template.Template {
		out := make(map[proto.AIAction]*template.Template, len(templateSources))
		for action, src := range templateSources {
			out[action] = template.Must(template.New(string(action)).Funcs(funcs).Parse(src))
		}
		return out
	}()
	generic = template.Must(template.New("generic").Funcs(funcs).Parse(genericTemplate))
)

// Stub is a Processor that waits a while and fills a template per action.
// Unknown actions use a generic template.
type Stub struct {
	config Config
	mu     sync.Mutex
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewStub creates a stub processor
func NewStub(config ...Config) *Stub {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Stub{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
		logger: log.With().Str("component", "processor").Logger(),
	}
}

// ProcessText waits the simulated latency and renders the action's template
func (s *Stub) ProcessText(ctx context.Context, text string, action proto.AIAction) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "processor.process_text",
		trace.WithAttributes(telemetry.AttrAction.String(string(action))))
	defer span.End()

	m := metrics.GetMetrics()
	start := time.Now()
	defer func() {
		m.ProcessorDuration.Observe(time.Since(start).Seconds())
	}()

	delay, fail := s.roll()
	s.logger.Debug().Str("action", string(action)).Dur("delay", delay).Msg("Processing text")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		m.ProcessorRequestsTotal.WithLabelValues(string(action), "canceled").Inc()
		err := apierrors.UpstreamError("canceled", "processing was cancelled").WithCause(ctx.Err())
		telemetry.MarkSpanError(ctx, err)
		return "", err
	}

	if fail {
		m.ProcessorRequestsTotal.WithLabelValues(string(action), "error").Inc()
		err := apierrors.UpstreamError("processing_failed", "processing failed")
		telemetry.MarkSpanError(ctx, err)
		return "", err
	}

	tmpl, ok := templates[action]
	if !ok {
		tmpl = generic
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, text); err != nil {
		m.ProcessorRequestsTotal.WithLabelValues(string(action), "error").Inc()
		return "", apierrors.UpstreamError("template_failed", err.Error()).WithCause(err)
	}

	m.ProcessorRequestsTotal.WithLabelValues(string(action), "ok").Inc()
	return buf.String(), nil
}

// roll draws the latency and failure outcome for one call
func (s *Stub) roll() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.config.Delay
	if s.config.Jitter > 0 {
		delay += time.Duration(s.rng.Int63n(int64(s.config.Jitter)))
	}
	fail := s.config.FailureRate > 0 && s.rng.Float64() < s.config.FailureRate
	return delay, fail
}
