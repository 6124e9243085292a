package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

type mockSummary struct {
	MainIdea  string   `json:"mainIdea"`
	KeyPoints []string `json:"keyPoints"`
	Lessons   []string `json:"lessons"`
	Quote     string   `json:"quote"`
}

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	prompt := strings.TrimSpace(req.Prompt)
	content := "[mock completion for " + prompt + "]"
	if req.Format == FormatJSON {
		data, err := json.Marshal(mockSummary{
			MainIdea:  content,
			KeyPoints: []string{"mock key point 1", "mock key point 2", "mock key point 3"},
			Lessons:   []string{"mock lesson 1", "mock lesson 2", "mock lesson 3"},
			Quote:     "mock quote",
		})
		if err != nil {
			return err
		}
		content = string(data)
	}
	return consumer(Chunk{
		SessionID: req.SessionID,
		Content:   content,
		Partial:   false,
		Latency:   20 * time.Millisecond,
		TraceID:   req.TraceID,
	})
}
