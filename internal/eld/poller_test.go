package eld

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nanneboina449/draymaster-tms-sub002/config"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/engine"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/store"
)

var pollerDBSeq int

func newTestEngine(t *testing.T) (*engine.Engine, store.Store) {
	t.Helper()

	pollerDBSeq++
	dsn := fmt.Sprintf("file:poller_test_%d?mode=memory&cache=shared", pollerDBSeq)
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
	require.NoError(t, testDB.Create(&model.Driver{ID: 2, Name: "Second Driver"}).Error)

	s := store.NewGormStore(testDB)
	return engine.New(s, engine.Config{CycleDays: 8, DefaultTimezone: "UTC"}, nil), s
}

func eldConfig(url string) *config.Config {
	return &config.Config{
		ELD: config.ELDConfig{
			Enabled: true,
			Request: config.ELDRequest{
				URL:      url,
				PageSize: 10,
			},
			CodeOffDutyValues: []int{1},
			CodeSleeperValues: []int{4},
			CodeDrivingValues: []int{2},
			CodeOnDutyValues:  []int{3},
		},
	}
}

func TestStatusForCode(t *testing.T) {
	s := NewService(eldConfig(""), nil)

	testCases := []struct {
		code     int
		expected model.DutyStatus
		known    bool
	}{
		{1, model.StatusOffDuty, true},
		{2, model.StatusDriving, true},
		{3, model.StatusOnDutyNotDriving, true},
		{4, model.StatusSleeperBerth, true},
		{99, "", false},
	}

	for _, tc := range testCases {
		status, ok := s.statusForCode(tc.code)
		assert.Equal(t, tc.known, ok, "code %d", tc.code)
		assert.Equal(t, tc.expected, status, "code %d", tc.code)
	}
}

func TestPollOnce(t *testing.T) {
	start := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	events := []VendorEvent{
		// Delivered out of order; the poller must sort before reporting.
		{ID: 2, DriverRef: "DRV-001", Code: 1, Timestamp: fmt.Sprint(start.Add(4 * time.Hour).Unix()), Location: "Yard"},
		{ID: 1, DriverRef: "DRV-001", Code: 2, Timestamp: fmt.Sprint(start.Unix()), Location: "Port of Oakland", Odometer: "120000.4"},
		{ID: 3, DriverRef: "bad-ref", Code: 2, Timestamp: fmt.Sprint(start.Add(5 * time.Hour).Unix())},
		{ID: 4, DriverRef: "DRV-001", Code: 77, Timestamp: fmt.Sprint(start.Add(5 * time.Hour).Unix())},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp ApiResponse
		resp.Data.Page = 1
		resp.Data.PageSize = 10
		resp.Data.Total = len(events)
		resp.Data.Items = events
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	eng, s := newTestEngine(t)
	svc := NewService(eldConfig(server.URL), eng)

	svc.PollOnce(context.Background())
	eng.Wait()

	ctx := context.Background()
	intervals, err := s.LoadIntervals(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, intervals, 2, "malformed and unmapped events are dropped")

	assert.Equal(t, model.StatusDriving, intervals[0].Status)
	assert.Equal(t, model.SourceELD, intervals[0].Source)
	assert.Equal(t, "Port of Oakland", intervals[0].Location)
	assert.Equal(t, int64(120000), intervals[0].Odometer)
	require.NotNil(t, intervals[0].EndTime)
	assert.True(t, intervals[0].EndTime.Equal(start.Add(4*time.Hour)))

	assert.Equal(t, model.StatusOffDuty, intervals[1].Status)
	assert.True(t, intervals[1].Open())

	// Re-delivering the same page must not duplicate or reorder anything.
	svc.PollOnce(context.Background())
	eng.Wait()

	intervals, err = s.LoadIntervals(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, intervals, 2)
}

func TestPollOnceTracksDriversIndependently(t *testing.T) {
	start := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	// Cycle 1 carries only driver 1; cycle 2 adds driver 2's first event,
	// which is older than anything driver 1 has reported. It must still be
	// accepted: one driver's progress says nothing about another's.
	var events []VendorEvent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp ApiResponse
		resp.Data.Page = 1
		resp.Data.PageSize = 10
		resp.Data.Total = len(events)
		resp.Data.Items = events
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	eng, s := newTestEngine(t)
	svc := NewService(eldConfig(server.URL), eng)
	ctx := context.Background()

	events = []VendorEvent{
		{ID: 1, DriverRef: "DRV-001", Code: 2, Timestamp: fmt.Sprint(start.Add(2 * time.Hour).Unix())},
	}
	svc.PollOnce(ctx)
	eng.Wait()

	events = []VendorEvent{
		{ID: 1, DriverRef: "DRV-001", Code: 2, Timestamp: fmt.Sprint(start.Add(2 * time.Hour).Unix())},
		{ID: 2, DriverRef: "DRV-002", Code: 3, Timestamp: fmt.Sprint(start.Add(1 * time.Hour).Unix())},
	}
	svc.PollOnce(ctx)
	eng.Wait()

	intervals, err := s.LoadIntervals(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, intervals, 1, "driver 1's re-delivered event stays deduplicated")

	intervals, err = s.LoadIntervals(ctx, 2, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, model.StatusOnDutyNotDriving, intervals[0].Status)
	assert.True(t, intervals[0].StartTime.Equal(start.Add(1*time.Hour)))
}

func TestPollOnceAbortsOnFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	eng, s := newTestEngine(t)
	svc := NewService(eldConfig(server.URL), eng)

	svc.PollOnce(context.Background())
	eng.Wait()

	intervals, err := s.LoadIntervals(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, intervals, "a failed fetch reports nothing")
}
