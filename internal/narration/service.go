package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-books/internal/bus"
	"github.com/loqalabs/loqa-books/internal/config"
	"github.com/loqalabs/loqa-books/internal/protocol"
	"github.com/nats-io/nats.go"
)

const maxJobs = 64

var ErrDisabled = errors.New("narration disabled")

// Player receives each finished narration.
type Player interface {
	Load(id string, container []byte)
}

// Job is the runtime's view of one narration request.
type Job struct {
	ID       string
	BookID   string
	State    string
	Stage    Stage
	Error    string
	Duration float64
	Updated  time.Time
}

// Service runs narration requests arriving on the bus and reports their
// progress on the status subject.
type Service struct {
	cfg      config.NarrationConfig
	bus      *bus.Client
	pipeline *Pipeline
	player   Player
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger

	mu    sync.Mutex
	jobs  map[string]*Job
	order []string
}

func NewService(parent context.Context, cfg config.NarrationConfig, busClient *bus.Client, pipeline *Pipeline, player Player, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:      cfg,
		bus:      busClient,
		pipeline: pipeline,
		player:   player,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(slog.String("component", "narration-service")),
		jobs:     make(map[string]*Job),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectNarrationRequest, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe narration requests: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || s.sub != nil }

// Submit queues req on the bus and returns the queued job.
func (s *Service) Submit(req protocol.NarrationRequest) (Job, error) {
	if !s.cfg.Enabled {
		return Job{}, ErrDisabled
	}
	if _, err := ParseLanguage(orDefault(req.Language, s.cfg.DefaultLanguage)); err != nil {
		return Job{}, err
	}
	if _, err := ParseVoiceGender(req.Gender); err != nil {
		return Job{}, err
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	req.Timestamp = time.Now().UTC()
	job := s.update(req.JobID, req.BookID, func(j *Job) { j.State = protocol.NarrationQueued })
	s.publishStatus(job)
	if err := s.bus.Publish(protocol.SubjectNarrationRequest, req); err != nil {
		s.publishStatus(s.update(req.JobID, req.BookID, func(j *Job) {
			j.State = protocol.NarrationFailed
			j.Error = err.Error()
		}))
		return Job{}, fmt.Errorf("publish narration request: %w", err)
	}
	return job, nil
}

// Job returns a snapshot of a tracked job.
func (s *Service) Job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.NarrationRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode narration request", slogError(err))
		return
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(req)
	}()
}

func (s *Service) run(req protocol.NarrationRequest) {
	ctx, cancel := context.WithTimeout(s.ctx, time.Duration(s.cfg.TimeoutMS)*time.Millisecond)
	defer cancel()

	s.publishStatus(s.update(req.JobID, req.BookID, func(j *Job) { j.State = protocol.NarrationRunning }))

	nreq, err := s.decode(req)
	if err != nil {
		s.fail(req, err)
		return
	}

	start := time.Now()
	result, err := s.pipeline.Narrate(ctx, nreq)
	if err != nil {
		s.fail(req, err)
		return
	}
	if s.player != nil {
		s.player.Load(req.JobID, result.Container)
	}
	duration := result.Asset.Duration().Seconds()
	s.publishStatus(s.update(req.JobID, req.BookID, func(j *Job) {
		j.State = protocol.NarrationDone
		j.Duration = duration
	}))
	s.logger.Info("narration complete",
		slog.String("job_id", req.JobID),
		slog.Float64("audio_seconds", duration),
		slog.Duration("latency", time.Since(start)))
}

func (s *Service) decode(req protocol.NarrationRequest) (Request, error) {
	lang, err := ParseLanguage(orDefault(req.Language, s.cfg.DefaultLanguage))
	if err != nil {
		return Request{}, err
	}
	var source Language
	if req.SourceLanguage != "" {
		if source, err = ParseLanguage(req.SourceLanguage); err != nil {
			return Request{}, err
		}
	}
	gender, err := ParseVoiceGender(req.Gender)
	if err != nil {
		return Request{}, err
	}
	return Request{Text: req.Text, SourceLanguage: source, Language: lang, Gender: gender}, nil
}

func (s *Service) fail(req protocol.NarrationRequest, err error) {
	var stage Stage
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	s.logger.Warn("narration failed",
		slog.String("job_id", req.JobID),
		slog.String("stage", string(stage)),
		slogError(err))
	s.publishStatus(s.update(req.JobID, req.BookID, func(j *Job) {
		j.State = protocol.NarrationFailed
		j.Stage = stage
		j.Error = err.Error()
	}))
}

// update applies fn to the job, creating it if needed, and returns a copy.
func (s *Service) update(id, bookID string, fn func(*Job)) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		j = &Job{ID: id, BookID: bookID}
		s.jobs[id] = j
		s.order = append(s.order, id)
		if len(s.order) > maxJobs {
			delete(s.jobs, s.order[0])
			s.order = s.order[1:]
		}
	}
	fn(j)
	j.Updated = time.Now().UTC()
	return *j
}

func (s *Service) publishStatus(j Job) {
	status := protocol.NarrationStatus{
		JobID:           j.ID,
		BookID:          j.BookID,
		State:           j.State,
		Stage:           string(j.Stage),
		Message:         j.Error,
		DurationSeconds: j.Duration,
		Timestamp:       j.Updated,
	}
	if err := s.bus.Publish(protocol.SubjectNarrationStatus, status); err != nil {
		s.logger.Warn("failed to publish narration status", slogError(err))
	}
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
