package pulserate

import (
	"errors"

	"github.com/himanishpuri/PulseRate/pkg/models"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) CreateSession(session models.Session) (*models.Session, error) {
	return s.db.CreateSession(session)
}

func (s *storageAdapter) GetSession(sessionID string) (*models.Session, error) {
	session, err := s.db.GetSession(sessionID)
	return session, translate(err)
}

func (s *storageAdapter) ListSessions() ([]models.Session, error) {
	return s.db.ListSessions()
}

func (s *storageAdapter) StoreReading(reading models.Reading) (*models.Reading, error) {
	return s.db.StoreReading(reading)
}

func (s *storageAdapter) ListReadings(sessionID string) ([]models.Reading, error) {
	return s.db.ListReadings(sessionID)
}

func (s *storageAdapter) DeleteSession(sessionID string) error {
	return translate(s.db.DeleteSession(sessionID))
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

// translate maps storage misses onto ErrSessionNotFound.
func translate(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}
