package pulserate

import (
	"context"

	"github.com/himanishpuri/PulseRate/pkg/models"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/ppg"
)

type Service interface {
	StartSession(label, source string) (*models.Session, error)
	AppendSample(sessionID string, value float64, ts ppg.Ticks) error
	AppendSamples(sessionID string, samples []models.SampleInput) error
	EstimateHeartRate(sessionID string) (*models.Reading, error)
	FindPeaks(sessionID string) ([]ppg.Peak, error)
	ProcessRecording(ctx context.Context, path, label string, channel int) (*RecordingReport, error)
	GetSession(sessionID string) (*models.Session, error)
	ListSessions() ([]models.Session, error)
	ListReadings(sessionID string) ([]models.Reading, error)
	EndSession(sessionID string) error
	DeleteSession(sessionID string) error
	Subscribe() (<-chan models.Reading, func())
	Stats() Stats
	Close() error
}

type Storage interface {
	CreateSession(session models.Session) (*models.Session, error)
	GetSession(sessionID string) (*models.Session, error)
	ListSessions() ([]models.Session, error)
	StoreReading(reading models.Reading) (*models.Reading, error)
	ListReadings(sessionID string) ([]models.Reading, error)
	DeleteSession(sessionID string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
