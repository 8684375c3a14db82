package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ErenAtasun/MaskHeist/internal/engine"
)

var ErrNoDatabase = errors.New("store: no database configured")

// RoundRecord is one finished round. Rows are only ever inserted.
type RoundRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionCode  string    `gorm:"size:16;index" json:"session_code"`
	Round        int       `json:"round"`
	Winner       string    `gorm:"size:16" json:"winner"`
	Reason       string    `gorm:"size:32" json:"reason"`
	HiderID      string    `gorm:"size:36" json:"hider_id"`
	HiderScore   int       `json:"hider_score"`
	SeekerScore  int       `json:"seeker_score"`
	Participants int       `json:"participants"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	CreatedAt    time.Time `json:"-"`
}

func (RoundRecord) TableName() string { return "round_records" }

func FromSummary(s engine.RoundSummary) RoundRecord {
	return RoundRecord{
		SessionCode:  s.SessionCode,
		Round:        s.Round,
		Winner:       string(s.Winner),
		Reason:       s.Reason,
		HiderID:      s.HiderID,
		HiderScore:   s.HiderScore,
		SeekerScore:  s.SeekerScore,
		Participants: s.Participants,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
	}
}

// Open connects to postgres and migrates the round table.
func Open(ctx context.Context, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, ErrNoDatabase
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&RoundRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

func (r *GormRecorder) RecordRound(ctx context.Context, s engine.RoundSummary) error {
	rec := FromSummary(s)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record round %d of %s: %w", s.Round, s.SessionCode, err)
	}
	return nil
}

// History returns the latest rounds of a session, newest first.
func (r *GormRecorder) History(ctx context.Context, code string, limit int) ([]RoundRecord, error) {
	var out []RoundRecord
	err := r.db.WithContext(ctx).
		Where("session_code = ?", code).
		Order("ended_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("round history of %s: %w", code, err)
	}
	return out, nil
}

// Nop discards rounds. Used when no database is configured.
type Nop struct{}

func (Nop) RecordRound(context.Context, engine.RoundSummary) error { return nil }

func (Nop) History(context.Context, string, int) ([]RoundRecord, error) {
	return nil, ErrNoDatabase
}
