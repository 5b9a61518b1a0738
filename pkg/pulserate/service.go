package pulserate

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/PulseRate/pkg/logger"
	"github.com/himanishpuri/PulseRate/pkg/models"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/ppg"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/recording"
)

// subscriberBuffer is the number of readings queued per subscriber before
// new readings are dropped for it.
const subscriberBuffer = 32

// liveSession couples a stored session with its in-memory window. mu
// serialises every append and read on the monitor.
type liveSession struct {
	mu      sync.Mutex
	info    models.Session
	monitor *ppg.Monitor
}

// pulseService is the default implementation of the Service interface.
type pulseService struct {
	storage Storage
	log     Logger
	config  *Config

	mu       sync.RWMutex
	sessions map[string]*liveSession
	closed   bool

	subMu sync.Mutex
	subs  map[chan models.Reading]struct{}

	samples   atomic.Uint64
	estimates atomic.Uint64
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Fail before touching the database if the monitor cannot be built
	monitorCfg := ppg.Config{
		SampleRate:      cfg.SampleRate,
		WindowSize:      cfg.WindowSize,
		SmoothingWindow: cfg.SmoothingWindow,
	}
	if err := monitorCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", cfg.SampleRate)
	}
	if cfg.ComputeInterval <= 0 {
		return nil, fmt.Errorf("invalid compute interval: %s", cfg.ComputeInterval)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &pulseService{
		storage:  stor,
		log:      cfg.Logger,
		config:   cfg,
		sessions: make(map[string]*liveSession),
		subs:     make(map[chan models.Reading]struct{}),
	}, nil
}

// StartSession registers a session with the service's default window
// configuration.
func (s *pulseService) StartSession(label, source string) (*models.Session, error) {
	return s.startSession(label, source, ppg.Config{
		SampleRate:      s.config.SampleRate,
		WindowSize:      s.config.WindowSize,
		SmoothingWindow: s.config.SmoothingWindow,
	})
}

func (s *pulseService) startSession(label, source string, cfg ppg.Config) (*models.Session, error) {
	monitor, err := ppg.NewMonitor(cfg)
	if err != nil {
		return nil, err
	}

	session, err := s.storage.CreateSession(models.Session{
		Label:           label,
		Source:          source,
		SampleRate:      cfg.SampleRate,
		WindowSize:      cfg.WindowSize,
		SmoothingWindow: cfg.SmoothingWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	s.sessions[session.ID] = &liveSession{info: *session, monitor: monitor}

	s.log.Infof("Started session %s (%s, window=%d, smoothing=%d)",
		session.ID, source, cfg.WindowSize, cfg.SmoothingWindow)
	return session, nil
}

// live returns the in-memory session, reopening a stored one with an empty
// window when it is not loaded.
func (s *pulseService) live(sessionID string) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[sessionID]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrServiceClosed
	}
	if ok {
		return ls, nil
	}

	info, err := s.storage.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	monitor, err := ppg.NewMonitor(ppg.Config{
		SampleRate:      info.SampleRate,
		WindowSize:      info.WindowSize,
		SmoothingWindow: info.SmoothingWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.sessions[sessionID]; ok {
		return ls, nil
	}
	ls = &liveSession{info: *info, monitor: monitor}
	s.sessions[sessionID] = ls
	s.log.Debugf("Reopened session %s with an empty window", sessionID)
	return ls, nil
}

func (s *pulseService) AppendSample(sessionID string, value float64, ts ppg.Ticks) error {
	ls, err := s.live(sessionID)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	ls.monitor.AppendSample(value, ts)
	ls.mu.Unlock()

	s.samples.Add(1)
	return nil
}

// AppendSamples appends a batch in order under one lock so readers never see
// half a batch.
func (s *pulseService) AppendSamples(sessionID string, samples []models.SampleInput) error {
	ls, err := s.live(sessionID)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	for _, in := range samples {
		ls.monitor.AppendSample(in.Value, ppg.Ticks(in.TimestampMs))
	}
	ls.mu.Unlock()

	s.samples.Add(uint64(len(samples)))
	return nil
}

// EstimateHeartRate returns nil, nil when the window does not yet hold
// enough signal. A produced reading is stored and sent to subscribers.
func (s *pulseService) EstimateHeartRate(sessionID string) (*models.Reading, error) {
	ls, err := s.live(sessionID)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	peaks := ls.monitor.FindPeaks()
	bpm, ok := ppg.RateFromPeaks(peaks)
	var takenAt ppg.Ticks
	if ts := ls.monitor.Window().Timestamps(); len(ts) > 0 {
		takenAt = ts[len(ts)-1]
	}
	ls.mu.Unlock()

	if !ok {
		s.log.Debugf("Session %s: no estimate (%d peaks)", sessionID, len(peaks))
		return nil, nil
	}

	return s.record(models.Reading{
		SessionID: sessionID,
		BPM:       bpm,
		PeakCount: len(peaks),
		TakenAtMs: uint32(takenAt),
	})
}

func (s *pulseService) record(reading models.Reading) (*models.Reading, error) {
	stored, err := s.storage.StoreReading(reading)
	if err != nil {
		return nil, fmt.Errorf("failed to store reading: %w", err)
	}
	s.estimates.Add(1)
	s.publish(*stored)
	return stored, nil
}

func (s *pulseService) FindPeaks(sessionID string) ([]ppg.Peak, error) {
	ls, err := s.live(sessionID)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.monitor.FindPeaks(), nil
}

// ProcessRecording replays one channel of a WAV recording through a new
// session. Timestamps come from the sample index, and an estimate is taken
// every ComputeInterval of signal time. The window length in seconds follows
// the service configuration, rescaled to the recording's sample rate.
func (s *pulseService) ProcessRecording(ctx context.Context, path, label string, channel int) (*RecordingReport, error) {
	s.log.Infof("Processing recording: %s (channel %d)", path, channel)

	rec, err := recording.ReadWAV(path, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	if len(rec.Samples) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyRecording)
	}

	scale := float64(rec.SampleRate) / float64(s.config.SampleRate)
	cfg := ppg.Config{
		SampleRate:      rec.SampleRate,
		WindowSize:      ppg.WindowSizeFor(rec.SampleRate, float64(s.config.WindowSize)/float64(s.config.SampleRate)),
		SmoothingWindow: ppg.WindowSizeFor(1, float64(s.config.SmoothingWindow)*scale),
	}

	if label == "" {
		label = filepath.Base(path)
	}
	session, err := s.startSession(label, "recording", cfg)
	if err != nil {
		return nil, err
	}
	defer s.EndSession(session.ID)

	ls, err := s.live(session.ID)
	if err != nil {
		return nil, err
	}

	every := ppg.WindowSizeFor(rec.SampleRate, s.config.ComputeInterval.Seconds())
	report := &RecordingReport{
		SessionID:  session.ID,
		Filename:   filepath.Base(path),
		SampleRate: rec.SampleRate,
		Duration:   rec.Duration(),
	}

	for i, v := range rec.Samples {
		ts := ppg.TicksAt(time.Duration(i) * time.Second / time.Duration(rec.SampleRate))
		ls.mu.Lock()
		ls.monitor.AppendSample(v, ts)
		ls.mu.Unlock()
		report.SampleCount++

		if (i+1)%every != 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reading, err := s.EstimateHeartRate(session.ID)
		if err != nil {
			return nil, err
		}
		if reading == nil {
			report.Missed++
			continue
		}
		report.Readings = append(report.Readings, *reading)
	}
	s.samples.Add(uint64(report.SampleCount))

	s.log.Infof("Recording %s: %d samples, %d readings, %d missed",
		report.Filename, report.SampleCount, len(report.Readings), report.Missed)
	return report, nil
}

func (s *pulseService) GetSession(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	ls, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		info := ls.info
		return &info, nil
	}
	return s.storage.GetSession(sessionID)
}

func (s *pulseService) ListSessions() ([]models.Session, error) {
	return s.storage.ListSessions()
}

func (s *pulseService) ListReadings(sessionID string) ([]models.Reading, error) {
	if _, err := s.GetSession(sessionID); err != nil {
		return nil, err
	}
	return s.storage.ListReadings(sessionID)
}

// EndSession drops the in-memory window. The stored session and its readings
// remain.
func (s *pulseService) EndSession(sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		if _, err := s.storage.GetSession(sessionID); err != nil {
			return err
		}
	}
	s.log.Debugf("Ended session %s", sessionID)
	return nil
}

func (s *pulseService) DeleteSession(sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if err := s.storage.DeleteSession(sessionID); err != nil {
		return err
	}
	s.log.Infof("Deleted session %s", sessionID)
	return nil
}

// Subscribe returns a channel of every reading produced from now on, and a
// function that cancels the subscription. Slow subscribers miss readings
// rather than stall producers.
func (s *pulseService) Subscribe() (<-chan models.Reading, func()) {
	ch := make(chan models.Reading, subscriberBuffer)

	s.subMu.Lock()
	if s.subs == nil {
		close(ch)
		s.subMu.Unlock()
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *pulseService) publish(r models.Reading) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- r:
		default:
			s.log.Warnf("Subscriber queue full, dropping reading for session %s", r.SessionID)
		}
	}
}

func (s *pulseService) Stats() Stats {
	s.mu.RLock()
	live := len(s.sessions)
	s.mu.RUnlock()

	s.subMu.Lock()
	subs := len(s.subs)
	s.subMu.Unlock()

	return Stats{
		LiveSessions:    live,
		SamplesAppended: s.samples.Load(),
		Estimates:       s.estimates.Load(),
		Subscribers:     subs,
	}
}

// Close closes all subscriptions and the storage backend.
func (s *pulseService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.sessions = make(map[string]*liveSession)
	s.mu.Unlock()

	s.subMu.Lock()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.subMu.Unlock()

	return s.storage.Close()
}
