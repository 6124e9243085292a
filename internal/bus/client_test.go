package bus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/loqa-books/internal/config"
	"github.com/loqalabs/loqa-books/internal/natsserver"
	"github.com/nats-io/nats.go"
)

func connect(t *testing.T) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1, StoreDir: t.TempDir()}, logger)
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	cfg := config.Default().Bus
	cfg.Servers = []string{srv.ClientURL()}
	c, err := Connect(context.Background(), "bus-test", cfg, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestPublishJSON(t *testing.T) {
	c := connect(t)
	sub, err := c.Conn().SubscribeSync("books.test")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := c.Publish("books.test", map[string]int{"n": 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg, err := sub.NextMsg(time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(msg.Data, &got); err != nil || got["n"] != 7 {
		t.Fatalf("unexpected payload %s (%v)", msg.Data, err)
	}
	if !c.Healthy() {
		t.Fatal("expected healthy connection")
	}
}

func TestPublishRejectsUnencodable(t *testing.T) {
	c := connect(t)
	if err := c.Publish("books.test", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestEnsureStreamIsIdempotent(t *testing.T) {
	c := connect(t)
	for i := 0; i < 2; i++ {
		if err := c.EnsureStream("TEST", []string{"books.test.>"}, time.Hour); err != nil {
			t.Fatalf("ensure stream (pass %d): %v", i, err)
		}
	}
	if _, err := c.JetStream().Publish("books.test.one", []byte("x")); err != nil {
		t.Fatalf("jetstream publish: %v", err)
	}
	info, err := c.JetStream().StreamInfo("TEST")
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info.State.Msgs != 1 || info.Config.Storage != nats.FileStorage {
		t.Fatalf("unexpected stream state %+v", info)
	}
}

func TestConnectRequiresServers(t *testing.T) {
	cfg := config.Default().Bus
	cfg.Servers = nil
	if _, err := Connect(context.Background(), "x", cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected error without servers")
	}
}
