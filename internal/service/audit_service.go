package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/logger"
)

// AuditRepo is the durable sink behind the in-process buffer. Postgres and
// Redis implementations live in the repository package; a nil repo leaves
// the service file-and-ring only.
type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, market string, limit int, from, to *time.Time) ([]*model.AuditLog, error)
}

// AuditService records config-plane mutations asynchronously: entries go to
// a bounded channel consumed by one worker that appends to a daily JSONL
// file and the optional repo. A full channel drops entries rather than
// stalling request handling.
type AuditService struct {
	logChan chan *model.AuditLog
	done    chan struct{}
	logFile *os.File
	buffer  *auditBuffer
	repo    AuditRepo
}

func NewAuditService(logDir string, ringMax int, repo AuditRepo) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	filename := filepath.Join(logDir, "audit-"+time.Now().UTC().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	svc := &AuditService{
		logChan: make(chan *model.AuditLog, 1000),
		done:    make(chan struct{}),
		logFile: f,
		buffer:  newAuditBuffer(ringMax),
		repo:    repo,
	}
	go svc.processLogs()
	return svc, nil
}

func (s *AuditService) Log(entry *model.AuditLog) {
	if entry == nil {
		return
	}
	if s.buffer != nil {
		s.buffer.Add(entry)
	}
	select {
	case s.logChan <- entry:
	default:
		// Protect the request path over completeness.
		logger.Warn("Audit buffer full, dropping entry", "operation", entry.Operation)
	}
}

// List queries the repo when one is configured, falling back to the
// in-process ring so recent history survives without any backing store.
func (s *AuditService) List(ctx context.Context, market string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, market, limit, from, to)
		if err == nil {
			return records, nil
		}
		logger.Warn("Audit repo query failed, serving ring buffer", "error", err)
	}
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.List(market, limit), nil
}

func (s *AuditService) processLogs() {
	defer close(s.done)
	encoder := json.NewEncoder(s.logFile)
	for entry := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), entry); err != nil {
				logger.LogError(context.Background(), err, "Audit repo insert failed")
			}
		}
		if err := encoder.Encode(entry); err != nil {
			logger.LogError(context.Background(), err, "Audit file append failed")
		}
	}
}

// Close drains queued entries before releasing the file, so a graceful
// shutdown never loses the tail of the trail.
func (s *AuditService) Close() {
	close(s.logChan)
	<-s.done
	s.logFile.Close()
}

// auditBuffer is a fixed-size ring of the most recent entries.
type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditLog
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditLog, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.AuditLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

// List walks newest-first, filtering by market when given.
func (b *auditBuffer) List(market string, limit int) []*model.AuditLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditLog, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
			continue
		}
		if market != "" && entry.Market != market {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
