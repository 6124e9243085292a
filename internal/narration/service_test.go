package narration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/loqalabs/loqa-books/internal/bus"
	"github.com/loqalabs/loqa-books/internal/config"
	"github.com/loqalabs/loqa-books/internal/llm"
	"github.com/loqalabs/loqa-books/internal/natsserver"
	"github.com/loqalabs/loqa-books/internal/protocol"
	"github.com/loqalabs/loqa-books/internal/tts"
	"github.com/nats-io/nats.go"
)

type loadedAudio struct {
	id        string
	container []byte
}

type chanPlayer chan loadedAudio

func (p chanPlayer) Load(id string, container []byte) { p <- loadedAudio{id, container} }

func startBus(t *testing.T) *bus.Client {
	t.Helper()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1, StoreDir: t.TempDir()}, newLogger())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	cfg := config.Default().Bus
	cfg.Servers = []string{srv.ClientURL()}
	client, err := bus.Connect(context.Background(), "narration-test", cfg, newLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func newService(t *testing.T, client *bus.Client, synth tts.Synthesizer, player Player) *Service {
	t.Helper()
	p := newPipeline(t, &fakeGen{reply: func(llm.Request) (string, error) { return "bonjour", nil }}, synth, nil)
	cfg := config.Default().Narration
	svc := NewService(context.Background(), cfg, client, p, player, newLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func collectStatus(t *testing.T, client *bus.Client) <-chan protocol.NarrationStatus {
	t.Helper()
	out := make(chan protocol.NarrationStatus, 16)
	sub, err := client.Conn().Subscribe(protocol.SubjectNarrationStatus, func(msg *nats.Msg) {
		var st protocol.NarrationStatus
		if err := json.Unmarshal(msg.Data, &st); err == nil {
			out <- st
		}
	})
	if err != nil {
		t.Fatalf("subscribe status: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return out
}

func waitState(t *testing.T, statuses <-chan protocol.NarrationStatus, want string) protocol.NarrationStatus {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-statuses:
			if st.State == want {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestServiceNarratesSubmittedJob(t *testing.T) {
	client := startBus(t)
	statuses := collectStatus(t, client)
	player := make(chanPlayer, 1)
	synth := &fakeSynth{chunks: []tts.SynthChunk{{SampleRate: 24000, Channels: 1, PCM: make([]byte, 48000), Final: true}}}
	svc := newService(t, client, synth, player)

	job, err := svc.Submit(protocol.NarrationRequest{BookID: "1", Text: "Atomic Habits", Language: "fr", Gender: "male"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID == "" || job.State != protocol.NarrationQueued {
		t.Fatalf("unexpected job %+v", job)
	}

	waitState(t, statuses, protocol.NarrationRunning)
	done := waitState(t, statuses, protocol.NarrationDone)
	if done.JobID != job.ID || done.BookID != "1" || done.DurationSeconds != 1 {
		t.Fatalf("unexpected done status %+v", done)
	}

	select {
	case got := <-player:
		if got.id != job.ID || len(got.container) != 44+48000 {
			t.Fatalf("unexpected audio handed to player: %s %d", got.id, len(got.container))
		}
	case <-time.After(time.Second):
		t.Fatal("player never received the narration")
	}

	tracked, ok := svc.Job(job.ID)
	if !ok || tracked.State != protocol.NarrationDone {
		t.Fatalf("expected tracked done job, got %+v", tracked)
	}
}

func TestServiceReportsFailedStage(t *testing.T) {
	client := startBus(t)
	statuses := collectStatus(t, client)
	svc := newService(t, client, &fakeSynth{}, make(chanPlayer, 1))

	job, err := svc.Submit(protocol.NarrationRequest{Text: "hello", Language: "en"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	failed := waitState(t, statuses, protocol.NarrationFailed)
	if failed.JobID != job.ID || failed.Stage != string(StageSynthesize) || failed.Message == "" {
		t.Fatalf("unexpected failure status %+v", failed)
	}
}

func TestServiceRejectsBadLanguage(t *testing.T) {
	client := startBus(t)
	svc := newService(t, client, &fakeSynth{}, nil)
	if _, err := svc.Submit(protocol.NarrationRequest{Text: "x", Language: "tlh"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestServiceDisabled(t *testing.T) {
	cfg := config.Default().Narration
	cfg.Enabled = false
	svc := NewService(context.Background(), cfg, nil, nil, nil, newLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer svc.Close()
	if !svc.Healthy() {
		t.Fatal("disabled service should report healthy")
	}
	if _, err := svc.Submit(protocol.NarrationRequest{Text: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
