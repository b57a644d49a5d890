package credits

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ipv-vendor-gateway/internal/events"
)

// Scheduler runs the periodic monthly credit reset
type Scheduler struct {
	manager *Manager
	bus     *events.Bus
	config  *SchedulerConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	lastRun  time.Time
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	CheckInterval time.Duration // How often to look for due licenses
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		CheckInterval: time.Hour,
	}
}

// NewScheduler creates a credit reset scheduler
func NewScheduler(manager *Manager, bus *events.Bus, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	return &Scheduler{
		manager:  manager,
		bus:      bus,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	log.Println("Starting credit reset scheduler")

	s.wg.Add(1)
	go s.runResetLoop()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	log.Println("Stopping credit reset scheduler")
	close(s.stopChan)
	s.wg.Wait()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runResetLoop() {
	defer s.wg.Done()

	// Run one pass on startup to catch resets missed while down
	s.RunResetPass(context.Background())

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunResetPass(context.Background())
		}
	}
}

// RunResetPass resets every license whose reset date has passed. The
// next reset date is advanced one month from the due date, not from
// now, so late passes do not drift the billing anchor.
func (s *Scheduler) RunResetPass(ctx context.Context) {
	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.mu.Unlock()

	licenses, err := s.manager.repo.ListLicensesDueForReset(ctx, time.Now())
	if err != nil {
		log.Printf("Error listing licenses due for reset: %v", err)
		return
	}
	if len(licenses) == 0 {
		return
	}

	log.Printf("Resetting monthly credits for %d licenses", len(licenses))

	var successCount, failCount int
	for _, license := range licenses {
		nextReset := time.Now().AddDate(0, 1, 0)
		if license.CreditsResetDate != nil {
			nextReset = license.CreditsResetDate.AddDate(0, 1, 0)
			for !nextReset.After(time.Now()) {
				nextReset = nextReset.AddDate(0, 1, 0)
			}
		}

		remaining, err := s.manager.repo.ResetMonthlyCredits(ctx, license.ID, nextReset)
		if err != nil {
			log.Printf("Error resetting credits for license %s: %v", license.ID, err)
			failCount++
			continue
		}
		successCount++

		if s.bus != nil {
			s.bus.Publish(events.Event{
				Type: events.CreditsReset,
				Data: map[string]interface{}{
					"license_id":     license.ID,
					"customer_email": license.CustomerEmail,
					"remaining":      remaining,
					"next_reset":     nextReset,
				},
			})
		}
	}

	log.Printf("Credit reset pass complete: %d success, %d failed", successCount, failCount)
}
