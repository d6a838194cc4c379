package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/slot-scheduler/internal/config"
	"github.com/clinicdesk/slot-scheduler/internal/db"
	"github.com/clinicdesk/slot-scheduler/internal/schedule"
)

// The simulator plays virtual front-desk users: each worker fetches a
// practitioner's day, replays a mouse-drag over the grid through the same
// DragSelector the UI uses, and POSTs the committed interval. Gestures
// the selector rejects client-side never reach the API, which is the
// point: the server's conflict rate measures only races, not user error.

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	GestureRatio   float64
	StartRatio     float64
	ReadRatio      float64
	PractLimit     int
	PatientLimit   int
	DaySpread      int // gestures target a random day within this many days from now
	ColumnHeightPx float64
	PostgresDSN    string
}

type DataPool struct {
	Patients      []uuid.UUID
	Practitioners []uuid.UUID
	mu            sync.RWMutex
	appointments  []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	idx := rand.Intn(len(dp.appointments))
	return dp.appointments[idx], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	DayView  OperationMetrics
	Gesture  OperationMetrics // a whole drag; "conflict" = selector rejected it
	Booking  OperationMetrics
	Start    OperationMetrics
	Complete OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d gesture=%.2f start=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.GestureRatio, cfg.StartRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d practitioners", len(dataPool.Patients), len(dataPool.Practitioners))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		GestureRatio:   getFloat("SIM_GESTURE_RATIO", 0.5),
		StartRatio:     getFloat("SIM_START_RATIO", 0.2),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.3),
		PractLimit:     getInt("SIM_PRACTITIONER_LIMIT", 100),
		PatientLimit:   getInt("SIM_PATIENT_LIMIT", 4000),
		DaySpread:      getInt("SIM_DAY_SPREAD", 7),
		ColumnHeightPx: getFloat("SIM_COLUMN_HEIGHT_PX", 800),
		PostgresDSN:    baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.GestureRatio + cfg.StartRatio + cfg.ReadRatio
	if total > 0 {
		cfg.GestureRatio /= total
		cfg.StartRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id FROM patients LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM practitioners LIMIT $1
	`, cfg.PractLimit)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Practitioners = append(dataPool.Practitioners, id)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Practitioners) == 0 {
		return nil, fmt.Errorf("no practitioners loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.GestureRatio {
				s.doGestureBooking(ctx, rng)
			} else if r < s.config.GestureRatio+s.config.StartRatio {
				if rng.Intn(2) == 0 {
					s.doTransition(ctx, "start", &s.metrics.Start)
				} else {
					s.doTransition(ctx, "complete", &s.metrics.Complete)
				}
			} else {
				s.doDayView(ctx, rng)
			}
		}
	}
}

type dayViewPayload struct {
	Grid struct {
		StartOfDayMinutes int `json:"start_of_day_minutes"`
		EndOfDayMinutes   int `json:"end_of_day_minutes"`
		TickMinutes       int `json:"tick_minutes"`
	} `json:"grid"`
	Appointments []struct {
		StartTick int `json:"start_tick"`
		EndTick   int `json:"end_tick"`
	} `json:"appointments"`
}

// doGestureBooking fetches a day, replays a drag over it, and books the
// committed interval if the selector let the gesture through.
func (s *Simulator) doGestureBooking(ctx context.Context, rng *rand.Rand) {
	practID := s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date := time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaySpread))
	day := schedule.Day(date)

	view, ok := s.fetchDayView(ctx, practID, day)
	if !ok {
		return
	}

	grid, err := schedule.NewTimeGrid(view.Grid.StartOfDayMinutes, view.Grid.EndOfDayMinutes, view.Grid.TickMinutes)
	if err != nil {
		s.metrics.Gesture.Record(0, false, false)
		return
	}

	snapshot := make([]schedule.TimeInterval, 0, len(view.Appointments))
	for _, a := range view.Appointments {
		snapshot = append(snapshot, schedule.NewTimeInterval(day, a.StartTick, a.EndTick))
	}

	gestureStart := time.Now()

	var committed *schedule.TimeInterval
	sel := schedule.NewDragSelector(grid,
		func(time.Time) []schedule.TimeInterval { return snapshot },
		func(iv schedule.TimeInterval) { committed = &iv },
		true)

	// A drag: press somewhere, wobble the pointer downward, release.
	height := s.config.ColumnHeightPx
	pressAt := rng.Float64() * height
	if err := sel.BeginAt(day, pressAt, height); err != nil {
		s.metrics.Gesture.Record(time.Since(gestureStart), false, false)
		return
	}
	target := pressAt + rng.Float64()*height/4
	steps := 3 + rng.Intn(5)
	for i := 1; i <= steps; i++ {
		sel.MoveTo(pressAt+(target-pressAt)*float64(i)/float64(steps), height)
	}
	_, didCommit := sel.End()

	s.metrics.Gesture.Record(time.Since(gestureStart), didCommit, !didCommit)

	if !didCommit || committed == nil {
		return
	}

	s.doBooking(ctx, patientID, practID, day, *committed)
}

func (s *Simulator) fetchDayView(ctx context.Context, practID uuid.UUID, day time.Time) (*dayViewPayload, bool) {
	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/schedule/%s/%s", s.config.APIBaseURL, practID.String(), day.Format("2006-01-02")), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		s.metrics.DayView.Record(latency, false, false)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.metrics.DayView.Record(latency, false, false)
		return nil, false
	}

	var view dayViewPayload
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		s.metrics.DayView.Record(latency, false, false)
		return nil, false
	}

	s.metrics.DayView.Record(latency, true, false)
	return &view, true
}

func (s *Simulator) doDayView(ctx context.Context, rng *rand.Rand) {
	practID := s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
	day := schedule.Day(time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaySpread)))
	s.fetchDayView(ctx, practID, day)
}

func (s *Simulator) doBooking(ctx context.Context, patientID, practID uuid.UUID, day time.Time, iv schedule.TimeInterval) {
	start := time.Now()

	reqBody := map[string]any{
		"patient_id":      patientID.String(),
		"practitioner_id": practID.String(),
		"date":            day.Format("2006-01-02"),
		"start_tick":      iv.StartTick,
		"end_tick":        iv.EndTick,
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			success = true
			var apptResp struct {
				ID uuid.UUID `json:"id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 {
				json.Unmarshal(bodyBytes, &apptResp)
				if apptResp.ID != uuid.Nil {
					s.pool.AddAppointment(apptResp.ID)
				}
			}
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doTransition(ctx context.Context, action string, om *OperationMetrics) {
	apptID, ok := s.pool.GetRandomAppointment()
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/appointments/%s/%s", s.config.APIBaseURL, apptID.String(), action), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	om.Record(latency, success, conflict)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Day view", &s.metrics.DayView)
	printOperationReport("Drag gesture (conflict = selector rejected)", &s.metrics.Gesture)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Start consult", &s.metrics.Start)
	printOperationReport("Complete consult", &s.metrics.Complete)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
