package eld

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/nanneboina449/draymaster-tms-sub002/config"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/engine"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/parse"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/timeline"
)

// Service polls the ELD vendor feed and reports the events into the engine.
type Service struct {
	cfg    *config.Config
	engine *engine.Engine
	client *http.Client

	// lastSeen holds, per driver, the newest event time seen in a previous
	// cycle; events at or before it are skipped so re-delivered pages do not
	// spam the engine with out-of-order rejections. Keyed per driver because
	// the feed interleaves drivers and one driver's fresh event may carry an
	// earlier timestamp than another driver's already-processed one.
	lastSeen map[int64]time.Time
}

// NewService creates and initializes a new poller service.
func NewService(cfg *config.Config, eng *engine.Engine) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.ELD.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.ELD.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Poller will not use a proxy.", cfg.ELD.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:      cfg,
		engine:   eng,
		lastSeen: make(map[int64]time.Time),
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// statusForCode maps a vendor status code onto a duty status using the
// configured value lists.
func (s *Service) statusForCode(code int) (model.DutyStatus, bool) {
	for _, v := range s.cfg.ELD.CodeOffDutyValues {
		if code == v {
			return model.StatusOffDuty, true
		}
	}
	for _, v := range s.cfg.ELD.CodeSleeperValues {
		if code == v {
			return model.StatusSleeperBerth, true
		}
	}
	for _, v := range s.cfg.ELD.CodeDrivingValues {
		if code == v {
			return model.StatusDriving, true
		}
	}
	for _, v := range s.cfg.ELD.CodeOnDutyValues {
		if code == v {
			return model.StatusOnDutyNotDriving, true
		}
	}
	return "", false
}

// Run starts the polling process in a loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.ELD.Enabled {
		log.Println("ELD poller is disabled. Not starting.")
		return
	}
	log.Println("Starting ELD poller service...")

	s.PollOnce(ctx)

	timer := time.NewTimer(s.cfg.ELD.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("ELD poller service shutting down.")
			return
		case <-timer.C:
			s.PollOnce(ctx)
			timer.Reset(s.cfg.ELD.Interval)
		}
	}
}

// PollOnce fetches one round of vendor events and reports them to the
// engine in timestamp order.
func (s *Service) PollOnce(ctx context.Context) {
	log.Println("Executing ELD poll cycle...")

	var allEvents []VendorEvent
	total := 1
	pageSize := s.cfg.ELD.Request.PageSize
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			log.Printf("Error fetching page %d: %v", page, err)
			// A partial feed must not be treated as the whole truth.
			return
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		allEvents = append(allEvents, resp.Data.Items...)
	}

	if len(allEvents) == 0 {
		log.Println("ELD poll cycle finished: no events.")
		return
	}

	var loc *time.Location
	if s.cfg.ELD.Timezone != "" {
		l, err := time.LoadLocation(s.cfg.ELD.Timezone)
		if err != nil {
			log.Printf("Error loading ELD feed timezone %q: %v. Poll cycle aborted.", s.cfg.ELD.Timezone, err)
			return
		}
		loc = l
	}

	type parsedEvent struct {
		driverID int64
		status   model.DutyStatus
		at       time.Time
		meta     timeline.Metadata
	}
	parsedEvents := make([]parsedEvent, 0, len(allEvents))
	for _, ev := range allEvents {
		driverID, err := parse.DriverRef(ev.DriverRef)
		if err != nil {
			log.Printf("Error parsing driver ref for event %d: %v", ev.ID, err)
			continue
		}
		status, ok := s.statusForCode(ev.Code)
		if !ok {
			log.Printf("Unrecognized status code %d on event %d; skipping", ev.Code, ev.ID)
			continue
		}
		at, err := parse.Timestamp(ev.Timestamp, loc)
		if err != nil {
			log.Printf("Error parsing timestamp for event %d: %v", ev.ID, err)
			continue
		}
		odometer, err := parse.Odometer(ev.Odometer)
		if err != nil {
			log.Printf("Warning: bad odometer on event %d: %v", ev.ID, err)
		}
		parsedEvents = append(parsedEvents, parsedEvent{
			driverID: driverID,
			status:   status,
			at:       at.UTC(),
			meta:     timeline.Metadata{Location: ev.Location, Odometer: odometer},
		})
	}

	sort.SliceStable(parsedEvents, func(i, j int) bool {
		return parsedEvents[i].at.Before(parsedEvents[j].at)
	})

	reported, skipped := 0, 0
	for _, ev := range parsedEvents {
		if !ev.at.After(s.lastSeen[ev.driverID]) {
			skipped++
			continue
		}
		_, err := s.engine.ReportStatusChange(ctx, ev.driverID, ev.status, ev.at, model.SourceELD, ev.meta)
		switch {
		case err == nil:
			reported++
		case errors.Is(err, timeline.ErrOutOfOrderEvent):
			// Vendor re-delivery of an already-recorded event.
			skipped++
		default:
			log.Printf("Error reporting status change for driver %d: %v", ev.driverID, err)
		}
		if ev.at.After(s.lastSeen[ev.driverID]) {
			s.lastSeen[ev.driverID] = ev.at
		}
	}

	log.Printf("ELD poll cycle finished: %d reported, %d skipped.", reported, skipped)
}

// fetchPage fetches a single page of events from the vendor API.
func (s *Service) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.ELD.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ELD.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range s.cfg.ELD.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
