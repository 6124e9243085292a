// Package narration turns catalog text into spoken audio through the
// generation service: summarize, translate, synthesize, package.
package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/loqa-books/internal/audio"
	"github.com/loqalabs/loqa-books/internal/config"
	"github.com/loqalabs/loqa-books/internal/llm"
	"github.com/loqalabs/loqa-books/internal/tts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/loqa-books/internal/narration"

const (
	TranslateAlways = "always"
	TranslateAuto   = "auto"
	TranslateNever  = "never"
)

// Pipeline runs each stage against the configured backends. Stages do not
// retry; a failure is returned as a *StageError.
type Pipeline struct {
	gen      llm.Generator
	synth    tts.Synthesizer
	llmCfg   config.LLMConfig
	ttsCfg   config.TTSConfig
	cfg      config.NarrationConfig
	format   audio.Format
	logger   *slog.Logger
	tracer   trace.Tracer
	latency  metric.Float64Histogram
	failures metric.Int64Counter
}

func NewPipeline(cfg config.Config, gen llm.Generator, synth tts.Synthesizer, logger *slog.Logger) (*Pipeline, error) {
	meter := otel.Meter(instrumentationName)
	latency, err := meter.Float64Histogram("books.narration.stage.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Latency of narration pipeline stages"))
	if err != nil {
		return nil, fmt.Errorf("create stage histogram: %w", err)
	}
	failures, err := meter.Int64Counter("books.narration.stage.failures",
		metric.WithDescription("Failed narration pipeline stages"))
	if err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}
	return &Pipeline{
		gen:    gen,
		synth:  synth,
		llmCfg: cfg.LLM,
		ttsCfg: cfg.TTS,
		cfg:    cfg.Narration,
		format: audio.Format{
			SampleRate:    cfg.TTS.SampleRate,
			Channels:      cfg.TTS.Channels,
			BitsPerSample: cfg.TTS.BitsPerSample,
		},
		logger:   logger.With(slog.String("component", "narration")),
		tracer:   otel.Tracer(instrumentationName),
		latency:  latency,
		failures: failures,
	}, nil
}

// Summarize asks for a structured summary of a known book.
func (p *Pipeline) Summarize(ctx context.Context, title, author string, lang Language) (Summary, error) {
	var summary Summary
	if strings.TrimSpace(title) == "" {
		return summary, &StageError{Stage: StageSummarize, Err: fmt.Errorf("%w: empty title", ErrInvalidInput)}
	}
	err := p.observe(ctx, StageSummarize, func(ctx context.Context) error {
		req := p.request(summaryPrompt(title, author, lang))
		req.Format = llm.FormatJSON
		out, err := llm.Collect(ctx, p.gen, req)
		if err != nil {
			return externalErr("generate summary", err)
		}
		out = stripFence(out)
		if out == "" {
			return external("empty summary response")
		}
		if err := json.Unmarshal([]byte(out), &summary); err != nil {
			return externalErr("decode summary", err)
		}
		if summary.MainIdea == "" {
			return external("summary response missing main idea")
		}
		return nil
	})
	return summary, err
}

// SummarizeDocument summarizes an uploaded document as markdown.
func (p *Pipeline) SummarizeDocument(ctx context.Context, doc Document, lang Language) (string, error) {
	if len(doc.Data) == 0 {
		return "", &StageError{Stage: StageSummarizeDocument, Err: fmt.Errorf("%w: empty document", ErrInvalidInput)}
	}
	var text string
	err := p.observe(ctx, StageSummarizeDocument, func(ctx context.Context) error {
		req := p.request(documentPrompt(lang))
		req.Attachments = []llm.Attachment{{MIMEType: doc.MIMEType, Data: doc.Data}}
		out, err := llm.Collect(ctx, p.gen, req)
		if err != nil {
			return externalErr("generate document summary", err)
		}
		text = strings.TrimSpace(out)
		if text == "" {
			return external("empty document summary")
		}
		return nil
	})
	return text, err
}

// Translate renders text in lang. A failed or empty translation falls back to
// the original text; the error is logged and counted but not returned.
func (p *Pipeline) Translate(ctx context.Context, text string, from, to Language) string {
	if !p.shouldTranslate(from, to) {
		return text
	}
	translated := text
	err := p.observe(ctx, StageTranslate, func(ctx context.Context) error {
		out, err := llm.Collect(ctx, p.gen, p.request(translatePrompt(truncateRunes(text, p.cfg.MaxTranslateRune), to)))
		if err != nil {
			return externalErr("translate", err)
		}
		if out = strings.TrimSpace(out); out != "" {
			translated = out
		}
		return nil
	})
	if err != nil {
		p.logger.Warn("translation failed, using original text",
			slog.String("language", string(to)),
			slog.String("error", err.Error()))
		return text
	}
	return translated
}

func (p *Pipeline) shouldTranslate(from, to Language) bool {
	switch p.cfg.Translate {
	case TranslateNever:
		return false
	case TranslateAlways:
		return true
	default:
		return from == "" || from != to
	}
}

// Synthesize collects the synthesizer's chunks until the stream ends.
func (p *Pipeline) Synthesize(ctx context.Context, text string, gender VoiceGender) (audio.Asset, error) {
	asset := audio.Asset{Format: p.format}
	err := p.observe(ctx, StageSynthesize, func(ctx context.Context) error {
		chunks, errs := p.synth.Synthesize(ctx, tts.SynthRequest{Text: text, Voice: p.voice(gender)})
		var pcm []byte
		for chunks != nil || errs != nil {
			select {
			case chunk, ok := <-chunks:
				if !ok {
					chunks = nil
					continue
				}
				if len(pcm) == 0 && chunk.SampleRate > 0 {
					asset.Format.SampleRate = chunk.SampleRate
					if chunk.Channels > 0 {
						asset.Format.Channels = chunk.Channels
					}
				}
				pcm = append(pcm, chunk.PCM...)
			case err, ok := <-errs:
				if ok && err != nil {
					return externalErr("synthesize", err)
				}
				errs = nil
			case <-ctx.Done():
				return externalErr("synthesize", ctx.Err())
			}
		}
		if len(pcm) == 0 {
			return external("no audio returned")
		}
		asset.PCM = pcm
		return nil
	})
	return asset, err
}

// Package wraps the asset in a WAV container.
func (p *Pipeline) Package(ctx context.Context, asset audio.Asset) ([]byte, error) {
	var out []byte
	err := p.observe(ctx, StagePackage, func(context.Context) error {
		if uint64(len(asset.PCM)) > audio.MaxDataLen {
			return ErrAudioTooLarge
		}
		out = audio.Package(asset)
		return nil
	})
	return out, err
}

// Narrate runs translate, synthesize and package in order.
func (p *Pipeline) Narrate(ctx context.Context, req Request) (Narration, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Narration{}, fmt.Errorf("%w: nothing to narrate", ErrInvalidInput)
	}
	lang := req.Language
	if lang == "" {
		lang = Language(p.cfg.DefaultLanguage)
	}
	ctx, span := p.tracer.Start(ctx, "narration.narrate",
		trace.WithAttributes(attribute.String("language", string(lang)), attribute.String("voice", string(req.Gender))))
	defer span.End()

	text := p.Translate(ctx, req.Text, req.SourceLanguage, lang)
	asset, err := p.Synthesize(ctx, text, req.Gender)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Narration{}, err
	}
	container, err := p.Package(ctx, asset)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Narration{}, err
	}
	span.SetAttributes(attribute.Float64("duration_seconds", asset.Duration().Seconds()))
	return Narration{Text: text, Asset: asset, Container: container}, nil
}

func (p *Pipeline) voice(g VoiceGender) string {
	if g == Male {
		return p.ttsCfg.VoiceMale
	}
	return p.ttsCfg.VoiceFemale
}

func (p *Pipeline) request(prompt string) llm.Request {
	req := llm.OptionsFromConfig(p.llmCfg)
	req.Prompt = prompt
	return req
}

func (p *Pipeline) observe(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "narration."+string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	attrs := metric.WithAttributes(attribute.String("stage", string(stage)))
	p.latency.Record(ctx, time.Since(start).Seconds(), attrs)
	if err == nil {
		return nil
	}
	p.failures.Add(ctx, 1, attrs)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// stripFence removes a markdown code fence some models wrap JSON output in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
