package narration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/loqalabs/loqa-books/internal/audio"
	"github.com/loqalabs/loqa-books/internal/config"
	"github.com/loqalabs/loqa-books/internal/llm"
	"github.com/loqalabs/loqa-books/internal/tts"
)

type fakeGen struct {
	mu    sync.Mutex
	reqs  []llm.Request
	reply func(llm.Request) (string, error)
}

func (f *fakeGen) Generate(ctx context.Context, req llm.Request, consumer func(llm.Chunk) error) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	out, err := f.reply(req)
	if err != nil {
		return err
	}
	return consumer(llm.Chunk{Content: out})
}

func (f *fakeGen) calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.reqs...)
}

type fakeSynth struct {
	chunks []tts.SynthChunk
	err    error
	voices []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, req tts.SynthRequest) (<-chan tts.SynthChunk, <-chan error) {
	f.voices = append(f.voices, req.Voice)
	chunks := make(chan tts.SynthChunk, len(f.chunks))
	errs := make(chan error, 1)
	for _, c := range f.chunks {
		chunks <- c
	}
	if f.err != nil {
		errs <- f.err
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newPipeline(t *testing.T, gen llm.Generator, synth tts.Synthesizer, mutate func(*config.Config)) *Pipeline {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewPipeline(cfg, gen, synth, newLogger())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func echo(req llm.Request) (string, error) { return "translated", nil }

func TestSummarizeParsesJSON(t *testing.T) {
	gen := &fakeGen{reply: func(llm.Request) (string, error) {
		return "```json\n{\"mainIdea\":\"Small habits compound.\",\"keyPoints\":[\"a\",\"b\",\"c\"],\"lessons\":[\"x\"],\"quote\":\"q\"}\n```", nil
	}}
	p := newPipeline(t, gen, &fakeSynth{}, nil)

	s, err := p.Summarize(context.Background(), "Atomic Habits", "James Clear", English)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.MainIdea != "Small habits compound." || len(s.KeyPoints) != 3 || s.Quote != "q" {
		t.Fatalf("unexpected summary %+v", s)
	}
	req := gen.calls()[0]
	if req.Format != llm.FormatJSON {
		t.Fatalf("expected json format, got %q", req.Format)
	}
	if !strings.Contains(req.Prompt, "Atomic Habits") || !strings.Contains(req.Prompt, "English") {
		t.Fatalf("prompt missing book or language: %s", req.Prompt)
	}
}

func TestSummarizeEmptyResponse(t *testing.T) {
	gen := &fakeGen{reply: func(llm.Request) (string, error) { return "  ", nil }}
	p := newPipeline(t, gen, &fakeSynth{}, nil)

	_, err := p.Summarize(context.Background(), "Sapiens", "Yuval Noah Harari", French)
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageSummarize {
		t.Fatalf("expected summarize stage, got %v", err)
	}
}

func TestSummarizeBackendError(t *testing.T) {
	gen := &fakeGen{reply: func(llm.Request) (string, error) { return "", errors.New("quota exceeded") }}
	p := newPipeline(t, gen, &fakeSynth{}, nil)

	_, err := p.Summarize(context.Background(), "Sapiens", "Yuval Noah Harari", French)
	if !errors.Is(err, ErrExternalService) || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestSummarizeRejectsEmptyTitle(t *testing.T) {
	gen := &fakeGen{reply: echo}
	p := newPipeline(t, gen, &fakeSynth{}, nil)
	if _, err := p.Summarize(context.Background(), " ", "", French); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(gen.calls()) != 0 {
		t.Fatal("generator should not be called")
	}
}

func TestSummarizeDocument(t *testing.T) {
	gen := &fakeGen{reply: func(llm.Request) (string, error) { return "## Introduction\n...", nil }}
	p := newPipeline(t, gen, &fakeSynth{}, nil)

	out, err := p.SummarizeDocument(context.Background(), Document{Name: "report.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.7")}, Spanish)
	if err != nil {
		t.Fatalf("summarize document: %v", err)
	}
	if !strings.HasPrefix(out, "## Introduction") {
		t.Fatalf("unexpected summary %q", out)
	}
	req := gen.calls()[0]
	if len(req.Attachments) != 1 || req.Attachments[0].MIMEType != "application/pdf" {
		t.Fatalf("document not attached: %+v", req.Attachments)
	}
	if !strings.Contains(req.Prompt, "Español") {
		t.Fatalf("prompt missing language: %s", req.Prompt)
	}

	if _, err := p.SummarizeDocument(context.Background(), Document{Name: "empty.pdf"}, Spanish); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty document, got %v", err)
	}
}

func TestTranslateTruncatesInput(t *testing.T) {
	gen := &fakeGen{reply: echo}
	p := newPipeline(t, gen, &fakeSynth{}, func(c *config.Config) { c.Narration.MaxTranslateRune = 5 })

	out := p.Translate(context.Background(), "héllo wörld", "", Arabic)
	if out != "translated" {
		t.Fatalf("expected translation, got %q", out)
	}
	prompt := gen.calls()[0].Prompt
	if !strings.Contains(prompt, `"héllo"`) || strings.Contains(prompt, "wörld") {
		t.Fatalf("expected input truncated to 5 runes: %s", prompt)
	}
}

func TestTranslateFallsBackToOriginal(t *testing.T) {
	gen := &fakeGen{reply: func(llm.Request) (string, error) { return "", errors.New("unavailable") }}
	p := newPipeline(t, gen, &fakeSynth{}, nil)
	if out := p.Translate(context.Background(), "original text", "", English); out != "original text" {
		t.Fatalf("expected fallback to original, got %q", out)
	}

	gen.reply = func(llm.Request) (string, error) { return "", nil }
	if out := p.Translate(context.Background(), "original text", "", English); out != "original text" {
		t.Fatalf("expected fallback on empty translation, got %q", out)
	}
}

func TestTranslatePolicy(t *testing.T) {
	cases := []struct {
		policy string
		from   Language
		to     Language
		calls  int
	}{
		{TranslateAuto, French, French, 0},
		{TranslateAuto, English, French, 1},
		{TranslateAuto, "", French, 1},
		{TranslateAlways, French, French, 1},
		{TranslateNever, English, French, 0},
	}
	for _, tc := range cases {
		gen := &fakeGen{reply: echo}
		p := newPipeline(t, gen, &fakeSynth{}, func(c *config.Config) { c.Narration.Translate = tc.policy })
		p.Translate(context.Background(), "texte", tc.from, tc.to)
		if got := len(gen.calls()); got != tc.calls {
			t.Fatalf("policy %s %q->%q: expected %d calls, got %d", tc.policy, tc.from, tc.to, tc.calls, got)
		}
	}
}

func TestSynthesizeCollectsChunks(t *testing.T) {
	synth := &fakeSynth{chunks: []tts.SynthChunk{
		{SampleRate: 16000, Channels: 1, PCM: []byte{1, 2}},
		{SampleRate: 16000, Channels: 1, PCM: []byte{3, 4}, Final: true},
	}}
	p := newPipeline(t, &fakeGen{reply: echo}, synth, nil)

	asset, err := p.Synthesize(context.Background(), "hello", Male)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(asset.PCM) != "\x01\x02\x03\x04" || asset.Format.SampleRate != 16000 || asset.Format.BitsPerSample != 16 {
		t.Fatalf("unexpected asset %+v", asset)
	}
	if synth.voices[0] != "Fenrir" {
		t.Fatalf("expected male voice Fenrir, got %s", synth.voices[0])
	}
}

func TestSynthesizeNoAudio(t *testing.T) {
	p := newPipeline(t, &fakeGen{reply: echo}, &fakeSynth{}, nil)
	_, err := p.Synthesize(context.Background(), "hello", Female)
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageSynthesize || !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected synthesize external error, got %v", err)
	}
}

func TestNarrate(t *testing.T) {
	pcm := make([]byte, 4800)
	synth := &fakeSynth{chunks: []tts.SynthChunk{{SampleRate: 24000, Channels: 1, PCM: pcm, Final: true}}}
	p := newPipeline(t, &fakeGen{reply: echo}, synth, nil)

	n, err := p.Narrate(context.Background(), Request{Text: "Once upon a time", Language: French, Gender: Female})
	if err != nil {
		t.Fatalf("narrate: %v", err)
	}
	if n.Text != "translated" {
		t.Fatalf("expected spoken text to be the translation, got %q", n.Text)
	}
	if len(n.Container) != audio.HeaderSize+len(pcm) {
		t.Fatalf("unexpected container length %d", len(n.Container))
	}
	info, err := audio.Inspect(n.Container)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Duration != 0.1 {
		t.Fatalf("expected 0.1s, got %v", info.Duration)
	}
	if synth.voices[0] != "Kore" {
		t.Fatalf("expected female voice Kore, got %s", synth.voices[0])
	}
}

func TestNarrateStopsAtFailedStage(t *testing.T) {
	synth := &fakeSynth{err: errors.New("tts offline")}
	p := newPipeline(t, &fakeGen{reply: echo}, synth, nil)

	_, err := p.Narrate(context.Background(), Request{Text: "hello", Language: English})
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageSynthesize {
		t.Fatalf("expected synthesize failure, got %v", err)
	}
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}

	if _, err := p.Narrate(context.Background(), Request{Text: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty text, got %v", err)
	}
}

func TestParseLanguage(t *testing.T) {
	for in, want := range map[string]Language{
		"fr":       French,
		"English":  English,
		"العربية":  Arabic,
		"español":  Spanish,
		" ES ":     Spanish,
		"Français": French,
	} {
		got, err := ParseLanguage(in)
		if err != nil || got != want {
			t.Fatalf("ParseLanguage(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseLanguage("klingon"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if g, err := ParseVoiceGender(""); err != nil || g != Female {
		t.Fatalf("expected default female voice, got %q %v", g, err)
	}
	if _, err := ParseVoiceGender("robot"); err == nil {
		t.Fatal("expected error for unknown voice")
	}
}
