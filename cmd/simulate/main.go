package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL  string
	Specialty   string
	Concurrency int
	Slots       int
	Timeout     time.Duration
	PostgresDSN string
}

// target is one slot every worker races for.
type target struct {
	ProfessionalID uuid.UUID
	Professional   string
	Date           string
	Time           string
	Capacity       int
}

// RaceMetrics tallies the outcome of every booking attempt against one slot.
type RaceMetrics struct {
	mu        sync.Mutex
	Outcomes  map[string]int
	Latencies []time.Duration
}

func (m *RaceMetrics) Record(outcome string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Outcomes == nil {
		m.Outcomes = make(map[string]int)
	}
	m.Outcomes[outcome]++
	m.Latencies = append(m.Latencies, latency)
}

func (m *RaceMetrics) Stats() (avg, p50, p95, max time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Latencies) == 0 {
		return 0, 0, 0, 0
	}
	latencies := append([]time.Duration(nil), m.Latencies...)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	at := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), at(50), at(95), latencies[len(latencies)-1]
}

type Simulator struct {
	config   SimConfig
	patients []uuid.UUID
	client   *http.Client
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}
	logging.Init("simulate", baseCfg.Env)

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	log.Info().
		Str("specialty", cfg.Specialty).
		Int("concurrency", cfg.Concurrency).
		Int("slots", cfg.Slots).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	patients, err := loadPatients(ctx, pgPool, cfg.Concurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("load patients")
	}

	sim := &Simulator{config: cfg, patients: patients, client: &http.Client{Timeout: cfg.Timeout}}

	targets, err := sim.findTargets(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("find open slots")
	}

	overbooked := false
	for _, t := range targets {
		m := sim.race(context.Background(), t)
		printReport(t, m)
		if m.Outcomes["created"] > t.Capacity {
			overbooked = true
		}
	}
	if overbooked {
		fmt.Println("FAIL: a slot accepted more bookings than its capacity")
		os.Exit(1)
	}
}

func loadConfig(base config.Config) SimConfig {
	return SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Specialty:   getEnv("SIM_SPECIALTY", "CLINICO_GERAL"),
		Concurrency: getInt("SIM_CONCURRENCY", 50),
		Slots:       getInt("SIM_SLOTS", 3),
		Timeout:     getDuration("SIM_REQUEST_TIMEOUT", 10*time.Second),
		PostgresDSN: base.PostgresDSN,
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("SIM_CONCURRENCY must be > 0")
	}
	if cfg.Slots <= 0 {
		return fmt.Errorf("SIM_SLOTS must be > 0")
	}
	return nil
}

func loadPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients WHERE active ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) < limit {
		return nil, fmt.Errorf("need %d active patients, found %d", limit, len(out))
	}
	return out, nil
}

// findTargets picks the first open slots the API reports for the specialty.
func (s *Simulator) findTargets(ctx context.Context) ([]target, error) {
	q := url.Values{"specialty": {s.config.Specialty}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/slots?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /slots returned %d", resp.StatusCode)
	}

	var days []api.DaySlotsResponse
	if err := json.NewDecoder(resp.Body).Decode(&days); err != nil {
		return nil, err
	}

	var out []target
	for _, d := range days {
		for _, sl := range d.Slots {
			// untouched slots only, so capacity is the expected winner count
			if sl.Remaining != sl.Capacity {
				continue
			}
			out = append(out, target{
				ProfessionalID: d.ProfessionalID,
				Professional:   d.ProfessionalName,
				Date:           d.Date,
				Time:           sl.Time,
				Capacity:       sl.Capacity,
			})
			if len(out) == s.config.Slots {
				return out, nil
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no open %s slots", s.config.Specialty)
	}
	return out, nil
}

// race releases every worker at once against the same slot.
func (s *Simulator) race(ctx context.Context, t target) *RaceMetrics {
	m := &RaceMetrics{}
	start := make(chan struct{})

	var wg sync.WaitGroup
	for _, patientID := range s.patients {
		wg.Add(1)
		go func(patientID uuid.UUID) {
			defer wg.Done()
			<-start
			began := time.Now()
			outcome := s.book(ctx, t, patientID)
			m.Record(outcome, time.Since(began))
		}(patientID)
	}

	close(start)
	wg.Wait()
	return m
}

func (s *Simulator) book(ctx context.Context, t target, patientID uuid.UUID) string {
	body, _ := json.Marshal(api.BookAppointmentRequest{
		PatientID:      patientID.String(),
		ProfessionalID: t.ProfessionalID.String(),
		Date:           t.Date,
		Time:           t.Time,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return "client_error"
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "transport_error"
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		return "created"
	}
	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
		return "http_" + strconv.Itoa(resp.StatusCode)
	}
	return errResp.Error
}

func printReport(t target, m *RaceMetrics) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Printf("SLOT %s %s with %s (capacity %d)\n", t.Date, t.Time, t.Professional, t.Capacity)
	fmt.Println(strings.Repeat("=", 80))

	outcomes := make([]string, 0, len(m.Outcomes))
	total := 0
	for o, n := range m.Outcomes {
		outcomes = append(outcomes, o)
		total += n
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		n := m.Outcomes[o]
		fmt.Printf("  %-24s %5d (%.1f%%)\n", o, n, float64(n)/float64(total)*100)
	}

	avg, p50, p95, max := m.Stats()
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

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
