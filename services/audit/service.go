package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/loveshotsmedia/l3arn-updated/internal/rbac"
	"github.com/loveshotsmedia/l3arn-updated/models"
	"github.com/loveshotsmedia/l3arn-updated/repositories"
	"go.uber.org/zap"
)

const insertTimeout = 5 * time.Second

// ErrNotStarted is returned when the service is used before Start or after Stop
var ErrNotStarted = errors.New("audit service not started")

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// RequestMeta identifies the HTTP request an access decision was made for
type RequestMeta struct {
	TraceID   string
	RequestID string
	Method    string
	Path      string
	IPAddress string
	UserAgent string
}

func (m RequestMeta) resource() string {
	if m.Method == "" {
		return m.Path
	}
	return m.Method + " " + m.Path
}

// AuditService persists audit events on a pool of background workers so request handling
// never waits on the database.
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	mu          sync.RWMutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 5,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting events and waits for queued ones to be written
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	pending := len(s.eventChan)
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. The event is dropped when the buffer is full.
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("trace_id", event.Log.TraceID))
		return fmt.Errorf("audit event buffer full")
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)),
				zap.String("trace_id", event.Log.TraceID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// ListTenantLogs returns a tenant's most recent audit entries
func (s *AuditService) ListTenantLogs(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditLog, error) {
	return s.auditRepo.ListByTenant(ctx, tenantID, limit, offset)
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int  `json:"buffer_size"`
	PendingEvents int  `json:"pending_events"`
	WorkerCount   int  `json:"worker_count"`
	Started       bool `json:"started"`
}

// LogAuthDenied records a request rejected before a role check could run. userID is empty
// when the token itself was rejected.
func (s *AuditService) LogAuthDenied(meta RequestMeta, userID, reason string) error {
	log := models.NewAuditLog(models.AuditActionAuthDenied, models.ResourceTypeRoute).
		WithUser(userID).
		WithResource(meta.resource()).
		WithTrace(meta.TraceID, meta.RequestID).
		WithClient(meta.IPAddress, meta.UserAgent).
		WithMetadata(map[string]string{"reason": reason})

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogRoleDecision records the outcome of a role check
func (s *AuditService) LogRoleDecision(meta RequestMeta, tenantID, userID string, role, required rbac.Role, granted bool) error {
	action := models.AuditActionRBACDenied
	if granted {
		action = models.AuditActionRBACGranted
	}

	log := models.NewAuditLog(action, models.ResourceTypeRoute).
		WithTenant(tenantID).
		WithUser(userID).
		WithResource(meta.resource()).
		WithTrace(meta.TraceID, meta.RequestID).
		WithClient(meta.IPAddress, meta.UserAgent).
		WithMetadata(map[string]string{
			"role":          string(role),
			"required_role": string(required),
		})

	return s.LogEvent(&AuditEvent{Log: log})
}
