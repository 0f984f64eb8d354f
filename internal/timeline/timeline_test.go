package timeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/store"
)

var dbSeq int

// newTestTimeline opens a fresh in-memory SQLite database, migrates the
// schema, and seeds one driver.
func newTestTimeline(t *testing.T) (*Timeline, store.Store, *gorm.DB) {
	t.Helper()

	dbSeq++
	dsn := fmt.Sprintf("file:timeline_test_%d?mode=memory&cache=shared", dbSeq)
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := testDB.DB()
		sqlDB.Close()
	})

	require.NoError(t, testDB.AutoMigrate(&model.Driver{}, &model.DutyInterval{}, &model.Violation{}))
	require.NoError(t, testDB.Create(&model.Driver{ID: 1, Name: "Test Driver"}).Error)

	s := store.NewGormStore(testDB)
	return New(s), s, testDB
}

var day = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func hrs(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

func TestAppendStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("First event opens an interval", func(t *testing.T) {
		tl, s, _ := newTestTimeline(t)

		iv, err := tl.AppendStatus(ctx, 1, model.StatusDriving, hrs(8), model.SourceELD, Metadata{Location: "Port of Oakland", Odometer: 120000})
		require.NoError(t, err)
		assert.True(t, iv.Open())
		assert.Equal(t, hrs(8), iv.StartTime.UTC())
		assert.Equal(t, model.SourceELD, iv.Source)
		assert.Equal(t, "Port of Oakland", iv.Location)

		openIv, err := s.OpenInterval(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, openIv)
		assert.Equal(t, iv.ID, openIv.ID)
	})

	t.Run("Next event closes the previous open interval", func(t *testing.T) {
		tl, s, _ := newTestTimeline(t)

		first, err := tl.AppendStatus(ctx, 1, model.StatusDriving, hrs(8), model.SourceELD, Metadata{})
		require.NoError(t, err)
		second, err := tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(12), model.SourceELD, Metadata{})
		require.NoError(t, err)

		closed, err := s.GetInterval(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, closed.EndTime)
		assert.Equal(t, hrs(12), closed.EndTime.UTC(), "previous interval is closed at the event time")

		openIv, err := s.OpenInterval(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, openIv)
		assert.Equal(t, second.ID, openIv.ID)
	})

	t.Run("Event at or before the open interval start is rejected", func(t *testing.T) {
		tl, _, _ := newTestTimeline(t)

		_, err := tl.AppendStatus(ctx, 1, model.StatusDriving, hrs(8), model.SourceELD, Metadata{})
		require.NoError(t, err)

		_, err = tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(7), model.SourceELD, Metadata{})
		assert.ErrorIs(t, err, ErrOutOfOrderEvent)

		_, err = tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(8), model.SourceELD, Metadata{})
		assert.ErrorIs(t, err, ErrOutOfOrderEvent, "zero-length intervals are not allowed")
	})

	t.Run("Event before recorded history is rejected when no interval is open", func(t *testing.T) {
		tl, _, testDB := newTestTimeline(t)

		end := hrs(12)
		require.NoError(t, testDB.Create(&model.DutyInterval{
			DriverID: 1, Status: model.StatusDriving, StartTime: hrs(8), EndTime: &end,
			Source: model.SourceELD, CreatedAt: hrs(12),
		}).Error)

		_, err := tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(10), model.SourceELD, Metadata{})
		assert.ErrorIs(t, err, ErrOutOfOrderEvent)

		_, err = tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(12), model.SourceELD, Metadata{})
		assert.NoError(t, err, "resuming exactly at the recorded end is in order")
	})

	t.Run("Unknown status or source is rejected", func(t *testing.T) {
		tl, _, _ := newTestTimeline(t)

		_, err := tl.AppendStatus(ctx, 1, model.DutyStatus("NAPPING"), hrs(8), model.SourceELD, Metadata{})
		assert.ErrorIs(t, err, ErrInvalidInterval)

		_, err = tl.AppendStatus(ctx, 1, model.StatusDriving, hrs(8), model.IntervalSource("FAX"), Metadata{})
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})
}

func TestAppendInferred(t *testing.T) {
	ctx := context.Background()

	t.Run("Inferred fill is bounded by the next recorded interval", func(t *testing.T) {
		tl, _, testDB := newTestTimeline(t)

		end := hrs(4)
		require.NoError(t, testDB.Create(&model.DutyInterval{
			DriverID: 1, Status: model.StatusDriving, StartTime: hrs(0), EndTime: &end,
			Source: model.SourceELD, CreatedAt: hrs(4),
		}).Error)
		require.NoError(t, testDB.Create(&model.DutyInterval{
			DriverID: 1, Status: model.StatusDriving, StartTime: hrs(14),
			Source: model.SourceELD, CreatedAt: hrs(14),
		}).Error)

		iv, err := tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(4), model.SourceInferred, Metadata{})
		require.NoError(t, err)
		require.NotNil(t, iv.EndTime)
		assert.Equal(t, hrs(14), iv.EndTime.UTC(), "fill stops where the next recorded interval begins")
		assert.Equal(t, model.SourceInferred, iv.Source)
	})

	t.Run("Inferred fill never overrides a recorded interval", func(t *testing.T) {
		tl, _, testDB := newTestTimeline(t)

		end := hrs(4)
		require.NoError(t, testDB.Create(&model.DutyInterval{
			DriverID: 1, Status: model.StatusDriving, StartTime: hrs(0), EndTime: &end,
			Source: model.SourceELD, CreatedAt: hrs(4),
		}).Error)

		_, err := tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(2), model.SourceInferred, Metadata{})
		assert.ErrorIs(t, err, ErrConflictingInterval)
	})

	t.Run("Trailing inferred fill stays open", func(t *testing.T) {
		tl, _, testDB := newTestTimeline(t)

		end := hrs(4)
		require.NoError(t, testDB.Create(&model.DutyInterval{
			DriverID: 1, Status: model.StatusDriving, StartTime: hrs(0), EndTime: &end,
			Source: model.SourceELD, CreatedAt: hrs(4),
		}).Error)

		iv, err := tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(4), model.SourceInferred, Metadata{})
		require.NoError(t, err)
		assert.True(t, iv.Open())
	})
}

func TestAmendInterval(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, tl *Timeline) model.DutyInterval {
		t.Helper()
		iv, err := tl.AppendStatus(ctx, 1, model.StatusDriving, hrs(8), model.SourceELD, Metadata{Location: "I-880 N", Odometer: 120100})
		require.NoError(t, err)
		_, err = tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(12), model.SourceELD, Metadata{})
		require.NoError(t, err)
		return iv
	}

	t.Run("Amendment supersedes the original", func(t *testing.T) {
		tl, s, _ := newTestTimeline(t)
		original := seed(t, tl)

		newEnd := hrs(11)
		replacement, err := tl.AmendInterval(ctx, original.ID, model.StatusOnDutyNotDriving, hrs(8), &newEnd, "driver was loading, not driving")
		require.NoError(t, err)

		assert.Equal(t, model.SourceManual, replacement.Source)
		require.NotNil(t, replacement.SupersedesID)
		assert.Equal(t, original.ID, *replacement.SupersedesID)
		require.NotNil(t, replacement.EditReason)
		assert.Equal(t, "driver was loading, not driving", *replacement.EditReason)
		assert.Equal(t, "I-880 N", replacement.Location, "metadata carries over from the original")
		assert.Equal(t, int64(120100), replacement.Odometer)

		stored, err := s.GetInterval(ctx, original.ID)
		require.NoError(t, err)
		assert.True(t, stored.Superseded, "the original row survives, flagged")

		active, err := s.LoadIntervals(ctx, 1, time.Time{}, time.Time{})
		require.NoError(t, err)
		for _, iv := range active {
			assert.NotEqual(t, original.ID, iv.ID, "superseded intervals leave the active timeline")
		}
	})

	t.Run("Empty edit reason is rejected", func(t *testing.T) {
		tl, _, _ := newTestTimeline(t)
		original := seed(t, tl)

		_, err := tl.AmendInterval(ctx, original.ID, model.StatusOffDuty, hrs(8), nil, "   ")
		assert.ErrorIs(t, err, ErrMissingEditReason)
	})

	t.Run("End before start is rejected", func(t *testing.T) {
		tl, _, _ := newTestTimeline(t)
		original := seed(t, tl)

		badEnd := hrs(7)
		_, err := tl.AmendInterval(ctx, original.ID, model.StatusOffDuty, hrs(8), &badEnd, "typo in the end time")
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})

	t.Run("Amending twice is rejected", func(t *testing.T) {
		tl, _, _ := newTestTimeline(t)
		original := seed(t, tl)

		newEnd := hrs(12)
		_, err := tl.AmendInterval(ctx, original.ID, model.StatusOffDuty, hrs(8), &newEnd, "first correction")
		require.NoError(t, err)

		_, err = tl.AmendInterval(ctx, original.ID, model.StatusSleeperBerth, hrs(8), &newEnd, "second correction")
		assert.ErrorIs(t, err, ErrAlreadySuperseded)
	})

	t.Run("Replacement overlapping another active interval is rejected", func(t *testing.T) {
		tl, _, _ := newTestTimeline(t)
		original := seed(t, tl)

		// The open off-duty interval starts at 12:00; stretching the
		// replacement past it collides.
		newEnd := hrs(13)
		_, err := tl.AmendInterval(ctx, original.ID, model.StatusDriving, hrs(8), &newEnd, "extended the drive")
		assert.ErrorIs(t, err, ErrConflictingInterval)
	})
}

func TestReconstruct(t *testing.T) {
	ctx := context.Background()
	tl, _, _ := newTestTimeline(t)

	// Pin the record clock so the amendment is created at a known instant.
	recordedAt := hrs(12)
	tl.now = func() time.Time { return recordedAt }

	original, err := tl.AppendStatus(ctx, 1, model.StatusDriving, hrs(8), model.SourceELD, Metadata{})
	require.NoError(t, err)
	_, err = tl.AppendStatus(ctx, 1, model.StatusOffDuty, hrs(12), model.SourceELD, Metadata{})
	require.NoError(t, err)

	recordedAt = hrs(20)
	newEnd := hrs(12)
	replacement, err := tl.AmendInterval(ctx, original.ID, model.StatusOnDutyNotDriving, hrs(8), &newEnd, "loading at the yard")
	require.NoError(t, err)

	t.Run("Before the amendment the original is visible", func(t *testing.T) {
		active, err := tl.Reconstruct(ctx, 1, hrs(15))
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, original.ID, active[0].ID)
		assert.Equal(t, model.StatusDriving, active[0].Status)
	})

	t.Run("After the amendment the replacement is visible", func(t *testing.T) {
		active, err := tl.Reconstruct(ctx, 1, hrs(21))
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, replacement.ID, active[0].ID)
		assert.Equal(t, model.StatusOnDutyNotDriving, active[0].Status)
	})
}
