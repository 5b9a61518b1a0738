//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/PulseRate/pkg/models"
	"github.com/himanishpuri/PulseRate/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "pulserate.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("record not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Session struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	Label           string `gorm:"index:idx_session_label"`
	Source          string
	SampleRate      int
	WindowSize      int
	SmoothingWindow int
	CreatedAt       time.Time
}

type Reading struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	SessionID string  `gorm:"type:varchar(36);index:idx_reading_session"`
	BPM       float64 `gorm:"column:bpm"`
	PeakCount int
	TakenAtMs uint32
	CreatedAt time.Time `gorm:"index:idx_reading_created"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("PULSE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// sqlite serialises writers; one connection avoids SQLITE_BUSY under
	// concurrent ingest
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Session{}, &Reading{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) CreateSession(s models.Session) (*models.Session, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	if s.ID == "" {
		s.ID = utils.GenerateUUID()
	}
	row := Session{
		ID:              s.ID,
		Label:           s.Label,
		Source:          s.Source,
		SampleRate:      s.SampleRate,
		WindowSize:      s.WindowSize,
		SmoothingWindow: s.SmoothingWindow,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	out := toModelSession(row)
	return &out, nil
}

func (c *DBClient) GetSession(id string) (*models.Session, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var row Session
	if err := c.DB.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}

	out := toModelSession(row)
	return &out, nil
}

func (c *DBClient) ListSessions() ([]models.Session, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var rows []Session
	if err := c.DB.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	out := make([]models.Session, len(rows))
	for i, r := range rows {
		out[i] = toModelSession(r)
	}
	return out, nil
}

// DeleteSession removes a session and its readings.
func (c *DBClient) DeleteSession(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&Reading{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Session{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (c *DBClient) StoreReading(r models.Reading) (*models.Reading, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	row := Reading{
		SessionID: r.SessionID,
		BPM:       r.BPM,
		PeakCount: r.PeakCount,
		TakenAtMs: r.TakenAtMs,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("storing reading: %w", err)
	}

	out := toModelReading(row)
	return &out, nil
}

// StoreReadings inserts readings in batches.
func (c *DBClient) StoreReadings(readings []models.Reading) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if len(readings) == 0 {
		return nil
	}

	rows := make([]Reading, len(readings))
	for i, r := range readings {
		rows[i] = Reading{
			SessionID: r.SessionID,
			BPM:       r.BPM,
			PeakCount: r.PeakCount,
			TakenAtMs: r.TakenAtMs,
		}
	}
	if err := c.DB.CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("batch insert readings: %w", err)
	}
	return nil
}

// ListReadings returns a session's readings oldest first.
func (c *DBClient) ListReadings(sessionID string) ([]models.Reading, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var rows []Reading
	if err := c.DB.Where("session_id = ?", sessionID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}

	out := make([]models.Reading, len(rows))
	for i, r := range rows {
		out[i] = toModelReading(r)
	}
	return out, nil
}

func (c *DBClient) CountReadings(sessionID string) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}

	var count int64
	if err := c.DB.Model(&Reading{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func toModelSession(r Session) models.Session {
	return models.Session{
		ID:              r.ID,
		Label:           r.Label,
		Source:          r.Source,
		SampleRate:      r.SampleRate,
		WindowSize:      r.WindowSize,
		SmoothingWindow: r.SmoothingWindow,
		CreatedAt:       r.CreatedAt,
	}
}

func toModelReading(r Reading) models.Reading {
	return models.Reading{
		ID:        r.ID,
		SessionID: r.SessionID,
		BPM:       r.BPM,
		PeakCount: r.PeakCount,
		TakenAtMs: r.TakenAtMs,
		CreatedAt: r.CreatedAt,
	}
}
