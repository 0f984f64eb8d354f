package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
)

// ErrConflict is returned when a mutating call loses a write race: the open
// interval it meant to close is no longer open, or the interval it meant to
// supersede is already superseded. Callers retry after re-reading.
var ErrConflict = errors.New("store: conflicting concurrent write")

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Store defines the interface for all database operations. It is the timeline
// store boundary of the engine: append-only interval writes, idempotent
// violation upserts, and the cached driver availability fields.
type Store interface {
	DB() *gorm.DB

	GetDriver(ctx context.Context, id int64) (model.Driver, error)
	ListDrivers(ctx context.Context) ([]model.Driver, error)
	UpdateDriverAvailability(ctx context.Context, driverID int64, driveMins, dutyMins, cycleMins int, asOf time.Time) error

	GetInterval(ctx context.Context, id int64) (model.DutyInterval, error)
	OpenInterval(ctx context.Context, driverID int64) (*model.DutyInterval, error)
	// LoadIntervals returns the driver's active (non-superseded) intervals
	// overlapping [from, to], ordered by start time. Zero bounds are
	// unbounded.
	LoadIntervals(ctx context.Context, driverID int64, from, to time.Time) ([]model.DutyInterval, error)
	// LoadRecorded returns every interval, superseded ones included, that was
	// recorded (created) no later than asOf and starts no later than asOf,
	// ordered by start time. Used for audit-stable reconstruction.
	LoadRecorded(ctx context.Context, driverID int64, asOf time.Time) ([]model.DutyInterval, error)
	// CloseAndAppend atomically sets the end of the driver's open interval
	// (when openID is non-nil) and creates next as the new record.
	CloseAndAppend(ctx context.Context, openID *int64, closeAt time.Time, next *model.DutyInterval) error
	// Supersede atomically marks the original interval superseded and creates
	// the replacement pointing back at it.
	Supersede(ctx context.Context, originalID int64, replacement *model.DutyInterval) error

	UpsertViolations(ctx context.Context, violations []model.Violation) error
	GetViolation(ctx context.Context, id int64) (model.Violation, error)
	ListViolations(ctx context.Context, driverID int64, acknowledged *bool) ([]model.Violation, error)
	AcknowledgeViolation(ctx context.Context, id int64) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) GetDriver(ctx context.Context, id int64) (model.Driver, error) {
	var driver model.Driver
	if err := s.db.WithContext(ctx).First(&driver, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Driver{}, fmt.Errorf("driver %d: %w", id, ErrNotFound)
		}
		return model.Driver{}, fmt.Errorf("failed to fetch driver %d: %w", id, err)
	}
	return driver, nil
}

func (s *gormStore) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	var drivers []model.Driver
	if err := s.db.WithContext(ctx).Order("id").Find(&drivers).Error; err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	return drivers, nil
}

// UpdateDriverAvailability refreshes the cached availability fields. The
// interval log remains the source of truth; these columns exist so dispatch
// queries do not recompute the rolling windows.
func (s *gormStore) UpdateDriverAvailability(ctx context.Context, driverID int64, driveMins, dutyMins, cycleMins int, asOf time.Time) error {
	result := s.db.WithContext(ctx).Model(&model.Driver{}).
		Where("id = ?", driverID).
		Updates(map[string]any{
			"available_drive_mins": driveMins,
			"available_duty_mins":  dutyMins,
			"available_cycle_mins": cycleMins,
			"availability_as_of":   asOf,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update availability for driver %d: %w", driverID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("driver %d: %w", driverID, ErrNotFound)
	}
	return nil
}

func (s *gormStore) GetInterval(ctx context.Context, id int64) (model.DutyInterval, error) {
	var interval model.DutyInterval
	if err := s.db.WithContext(ctx).First(&interval, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.DutyInterval{}, fmt.Errorf("interval %d: %w", id, ErrNotFound)
		}
		return model.DutyInterval{}, fmt.Errorf("failed to fetch interval %d: %w", id, err)
	}
	return interval, nil
}

func (s *gormStore) OpenInterval(ctx context.Context, driverID int64) (*model.DutyInterval, error) {
	var interval model.DutyInterval
	err := s.db.WithContext(ctx).
		Where("driver_id = ? AND end_time IS NULL AND superseded = ?", driverID, false).
		First(&interval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open interval for driver %d: %w", driverID, err)
	}
	return &interval, nil
}

func (s *gormStore) LoadIntervals(ctx context.Context, driverID int64, from, to time.Time) ([]model.DutyInterval, error) {
	q := s.db.WithContext(ctx).
		Where("driver_id = ? AND superseded = ?", driverID, false)
	if !from.IsZero() {
		q = q.Where("end_time IS NULL OR end_time > ?", from)
	}
	if !to.IsZero() {
		q = q.Where("start_time <= ?", to)
	}

	var intervals []model.DutyInterval
	if err := q.Order("start_time ASC").Find(&intervals).Error; err != nil {
		return nil, fmt.Errorf("failed to load intervals for driver %d: %w", driverID, err)
	}
	return intervals, nil
}

func (s *gormStore) LoadRecorded(ctx context.Context, driverID int64, asOf time.Time) ([]model.DutyInterval, error) {
	var intervals []model.DutyInterval
	err := s.db.WithContext(ctx).
		Where("driver_id = ? AND created_at <= ? AND start_time <= ?", driverID, asOf, asOf).
		Order("start_time ASC").
		Find(&intervals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recorded intervals for driver %d: %w", driverID, err)
	}
	return intervals, nil
}

func (s *gormStore) CloseAndAppend(ctx context.Context, openID *int64, closeAt time.Time, next *model.DutyInterval) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if openID != nil {
			result := tx.Model(&model.DutyInterval{}).
				Where("id = ? AND end_time IS NULL", *openID).
				Update("end_time", closeAt)
			if result.Error != nil {
				return fmt.Errorf("failed to close interval %d: %w", *openID, result.Error)
			}
			// Another writer closed it first; the caller's view is stale.
			if result.RowsAffected == 0 {
				return ErrConflict
			}
		}
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("failed to create interval for driver %d: %w", next.DriverID, err)
		}
		return nil
	})
}

func (s *gormStore) Supersede(ctx context.Context, originalID int64, replacement *model.DutyInterval) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.DutyInterval{}).
			Where("id = ? AND superseded = ?", originalID, false).
			Update("superseded", true)
		if result.Error != nil {
			return fmt.Errorf("failed to mark interval %d superseded: %w", originalID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}
		replacement.SupersedesID = &originalID
		if err := tx.Create(replacement).Error; err != nil {
			return fmt.Errorf("failed to create superseding interval for %d: %w", originalID, err)
		}
		return nil
	})
}

// UpsertViolations inserts detected violations, silently keeping existing rows
// for the same (driver_id, rule_code, window_start) key. Violations are
// immutable once created, so a re-detection never updates them.
func (s *gormStore) UpsertViolations(ctx context.Context, violations []model.Violation) error {
	if len(violations) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "driver_id"},
			{Name: "rule_code"},
			{Name: "window_start"},
		},
		DoNothing: true,
	}).Create(&violations).Error
	if err != nil {
		return fmt.Errorf("batch upsert violations failed: %w", err)
	}
	return nil
}

func (s *gormStore) GetViolation(ctx context.Context, id int64) (model.Violation, error) {
	var v model.Violation
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Violation{}, fmt.Errorf("violation %d: %w", id, ErrNotFound)
		}
		return model.Violation{}, fmt.Errorf("failed to fetch violation %d: %w", id, err)
	}
	return v, nil
}

func (s *gormStore) ListViolations(ctx context.Context, driverID int64, acknowledged *bool) ([]model.Violation, error) {
	q := s.db.WithContext(ctx).Where("driver_id = ?", driverID)
	if acknowledged != nil {
		q = q.Where("acknowledged = ?", *acknowledged)
	}
	var violations []model.Violation
	if err := q.Order("window_start ASC").Find(&violations).Error; err != nil {
		return nil, fmt.Errorf("failed to list violations for driver %d: %w", driverID, err)
	}
	return violations, nil
}

// AcknowledgeViolation flips the acknowledged flag, the only mutation a
// violation permits.
func (s *gormStore) AcknowledgeViolation(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Model(&model.Violation{}).
		Where("id = ?", id).
		Update("acknowledged", true)
	if result.Error != nil {
		return fmt.Errorf("failed to acknowledge violation %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("violation %d: %w", id, ErrNotFound)
	}
	return nil
}
