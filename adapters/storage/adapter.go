// Package storage persists execution records. The validation core
// never touches storage itself; callers hand the finished result to a
// Store. At-most-once semantics per execution UUID live here, not in
// the engine.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sage/core/report"
	"sage/internal/errors"
)

// Backend is a storage backend type
type Backend string

const (
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

// ExecutionRecord is one persisted validation run
type ExecutionRecord struct {
	// ID is the execution UUID
	ID string `json:"id"`

	// Casilla groups executions by delivery box
	Casilla string `json:"casilla,omitempty"`

	// Channel is how the file arrived (sftp, email, portal, api, local)
	Channel string `json:"channel,omitempty"`

	// Errors and Warnings mirror the result counts
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`

	// Status is the run verdict
	Status report.Status `json:"status"`

	// CreatedAt timestamp
	CreatedAt time.Time `json:"created_at"`

	// Result is the full serialized envelope for report generation
	Result report.Envelope `json:"result"`
}

// NewRecord builds a record from a finished result
func NewRecord(result *report.Result, casilla, channel string) *ExecutionRecord {
	return &ExecutionRecord{
		ID:        result.ExecutionID,
		Casilla:   casilla,
		Channel:   channel,
		Errors:    result.ErrorCount(),
		Warnings:  result.WarningCount(),
		Status:    result.Status(),
		CreatedAt: time.Now().UTC(),
		Result:    result.Envelope(),
	}
}

// Store is the execution-record interface
type Store interface {
	// Save persists a record; saving an existing ID is an error
	Save(ctx context.Context, record *ExecutionRecord) error

	// Get retrieves a record by execution UUID
	Get(ctx context.Context, id string) (*ExecutionRecord, error)

	// List returns records for a casilla, newest first
	List(ctx context.Context, casilla string) ([]*ExecutionRecord, error)

	// Close closes the store
	Close() error
}

// Open creates a store for the configured backend
func Open(backend Backend, directory string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(directory)
	}
	return nil, errors.Input(fmt.Sprintf("unknown storage backend %q", backend))
}

// FileStore keeps one JSON file per execution under a base directory
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStore creates a file store
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) Save(ctx context.Context, record *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	path := s.pathFor(record.ID)
	if _, err := os.Stat(path); err == nil {
		return errors.Input(fmt.Sprintf("execution %s already recorded", record.ID))
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (s *FileStore) Get(ctx context.Context, id string) (*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Input(fmt.Sprintf("execution %s not found", id))
		}
		return nil, err
	}
	var record ExecutionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &record, nil
}

func (s *FileStore) List(ctx context.Context, casilla string) ([]*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	var out []*ExecutionRecord
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			continue
		}
		var record ExecutionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		if casilla != "" && record.Casilla != casilla {
			continue
		}
		out = append(out, &record)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) pathFor(id string) string {
	return filepath.Join(s.basePath, id+".json")
}

// MemoryStore keeps records in memory, for tests and ephemeral runs
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*ExecutionRecord
	order   []string
}

// NewMemoryStore creates a memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*ExecutionRecord)}
}

func (s *MemoryStore) Save(ctx context.Context, record *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.records[record.ID]; exists {
		return errors.Input(fmt.Sprintf("execution %s already recorded", record.ID))
	}
	s.records[record.ID] = record
	s.order = append(s.order, record.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, errors.Input(fmt.Sprintf("execution %s not found", id))
	}
	return record, nil
}

func (s *MemoryStore) List(ctx context.Context, casilla string) ([]*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ExecutionRecord
	for i := len(s.order) - 1; i >= 0; i-- {
		record := s.records[s.order[i]]
		if casilla != "" && record.Casilla != casilla {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
