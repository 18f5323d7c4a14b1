package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/hackgods/doctor-appointment-booking/internal/db"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	CancelRatio   float64
	MoveRatio     float64
	ReadRatio     float64
	PatientLimit  int
	Password      string
	PostgresDSN   string
	BookingWindow time.Duration
}

// session is a logged-in patient.
type session struct {
	username string
	token    string
}

type DataPool struct {
	Doctors  []uuid.UUID
	Sessions []session

	mu           sync.RWMutex
	appointments map[uuid.UUID]string // appointment id -> owning patient's token
}

func (dp *DataPool) AddAppointment(id uuid.UUID, token string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments[id] = token
}

func (dp *DataPool) RemoveAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	delete(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, "", false
	}
	n := rng.IntN(len(dp.appointments))
	for id, token := range dp.appointments {
		if n == 0 {
			return id, token, true
		}
		n--
	}
	return uuid.Nil, "", false
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && (status == http.StatusConflict || status == http.StatusBadRequest):
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, lo, hi, p50, p95
}

type Metrics struct {
	Booking    OperationMetrics
	Cancel     OperationMetrics
	Reschedule OperationMetrics
	ReadByID   OperationMetrics
	ListMine   OperationMetrics
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

	log.Printf("config: duration=%s workers=%d booking=%.2f cancel=%.2f reschedule=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio, cfg.MoveRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.pool, err = sim.loadDataPool(ctx, pgPool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d doctors, %d patient sessions", len(sim.pool.Doctors), len(sim.pool.Sessions))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	_ = godotenv.Load()

	cfg := SimConfig{
		APIBaseURL:    strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		MoveRatio:     getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 100),
		Password:      getEnv("SEED_PASSWORD", "password123"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		BookingWindow: getDuration("BOOKING_WINDOW", 15*24*time.Hour),
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.MoveRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.MoveRatio /= total
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

// loadDataPool reads doctor ids and patient usernames created by seed and
// logs each patient in through the API.
func (s *Simulator) loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dataPool := &DataPool{appointments: make(map[uuid.UUID]string)}

	rows, err := pool.Query(ctx, `SELECT id FROM users WHERE role = 'doctor'`)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `
		SELECT username FROM users
		WHERE role = 'patient' AND username LIKE 'patient\_%'
		ORDER BY username
		LIMIT $1
	`, s.config.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	var usernames []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return nil, err
		}
		usernames = append(usernames, u)
	}
	rows.Close()

	for _, u := range usernames {
		token, err := s.login(ctx, u)
		if err != nil {
			log.Printf("login %s: %v", u, err)
			continue
		}
		dataPool.Sessions = append(dataPool.Sessions, session{username: u, token: token})
	}

	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run seed first")
	}
	if len(dataPool.Sessions) == 0 {
		return nil, fmt.Errorf("no patient could log in")
	}

	return dataPool, nil
}

func (s *Simulator) login(ctx context.Context, username string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	status, err := s.call(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": s.config.Password,
	}, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("status %d", status)
	}
	return out.Token, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := range s.config.Workers {
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
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.MoveRatio:
			s.doReschedule(ctx, rng)
		default:
			if rng.IntN(2) == 0 {
				s.doReadByID(ctx, rng)
			} else {
				s.doListMine(ctx, rng)
			}
		}
	}
}

// randomSlot picks a half-hour slot during clinic hours inside the booking
// window, so bookings for the same doctor collide often.
func (s *Simulator) randomSlot(rng *rand.Rand) time.Time {
	days := max(int(s.config.BookingWindow.Hours()/24)-1, 1)
	day := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1+rng.IntN(days))
	return day.Add(time.Duration(8*60+30*rng.IntN(18)) * time.Minute)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	sess := s.pool.Sessions[rng.IntN(len(s.pool.Sessions))]
	doctorID := s.pool.Doctors[rng.IntN(len(s.pool.Doctors))]

	var out struct {
		ID uuid.UUID `json:"id"`
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments", sess.token, map[string]string{
		"doctor_id":        doctorID.String(),
		"appointment_date": s.randomSlot(rng).Format(time.RFC3339),
	}, &out)
	s.metrics.Booking.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated && out.ID != uuid.Nil {
		s.pool.AddAppointment(out.ID, sess.token)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, token, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments/"+id.String()+"/cancel", token, nil, nil)
	s.metrics.Cancel.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusOK {
		s.pool.RemoveAppointment(id)
	}
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	id, token, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments/"+id.String()+"/reschedule", token, map[string]string{
		"appointment_date": s.randomSlot(rng).Format(time.RFC3339),
	}, nil)
	s.metrics.Reschedule.Record(time.Since(start), status, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, token, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments/"+id.String(), token, nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), status, err)
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	sess := s.pool.Sessions[rng.IntN(len(s.pool.Sessions))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments?limit=20&offset=0", sess.token, nil, nil)
	s.metrics.ListMine.Record(time.Since(start), status, err)
}

// call sends a JSON request and decodes a 2xx body into out when out is
// non-nil.
func (s *Simulator) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List mine", &s.metrics.ListMine)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
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

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
