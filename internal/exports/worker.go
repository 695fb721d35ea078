// Package exports renders workspace snapshots and field records into blob
// storage on a background worker.
package exports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"foodflow/internal/blob/core"
	servicecore "foodflow/internal/core"
	"foodflow/pkg/domain"
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format names an artifact encoding.
type Format string

const (
	// FormatJSON renders the full workspace snapshot.
	FormatJSON Format = "json"
	// FormatCSV renders completed field records.
	FormatCSV Format = "csv"
)

// ParseFormat validates a requested format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

func (f Format) contentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// ErrQueueFull is returned when the worker cannot accept more jobs.
var ErrQueueFull = errors.New("export queue full")

// Artifact describes one stored export file.
type Artifact struct {
	Format      Format    `json:"format"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	r.Formats = append([]Format(nil), r.Formats...)
	r.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		r.CompletedAt = &t
	}
	return r
}

// Source supplies the data rendered into artifacts.
type Source interface {
	Workspace(ctx context.Context, userID string) (domain.Workspace, error)
	Records(ctx context.Context, userID string) ([]servicecore.FieldRecord, error)
}

// Option customises a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithConcurrency sets how many jobs run in parallel.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithURLExpiry sets how long presigned artifact links stay valid.
func WithURLExpiry(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.urlExpiry = d
		}
	}
}

// WithRetention sets how long finished exports stay retrievable. Older
// records and their artifacts are dropped when the next export is queued.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.retention = d
		}
	}
}

// Worker executes exports asynchronously.
type Worker struct {
	source      Source
	store       core.Store
	logger      *zap.Logger
	now         func() time.Time
	concurrency int
	urlExpiry   time.Duration
	retention   time.Duration

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker writing into store.
func NewWorker(source Source, store core.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source:      source,
		store:       store,
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		concurrency: 1,
		urlExpiry:   15 * time.Minute,
		retention:   24 * time.Hour,
		queue:       make(chan string, 32),
		jobs:        make(map[string]*Record),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

// Stop signals the worker to halt and waits for in-flight jobs.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue schedules an export for userID. Both formats are produced when
// none are requested.
func (w *Worker) Enqueue(ctx context.Context, userID string, formats []Format) (Record, error) {
	if userID == "" {
		return Record{}, fmt.Errorf("export requires a user")
	}
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		if _, err := ParseFormat(string(f)); err != nil {
			return Record{}, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := w.now()
	w.sweep(ctx, now)
	record := Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Formats:   uniq,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Info("export queued", zap.String("export_id", record.ID), zap.String("user_id", userID))
	return queued, nil
}

// sweep forgets exports that finished more than the retention period before
// now and removes their artifacts from the store.
func (w *Worker) sweep(ctx context.Context, now time.Time) {
	cutoff := now.Add(-w.retention)
	var keys []string
	w.mu.Lock()
	for id, record := range w.jobs {
		if record.CompletedAt == nil || !record.CompletedAt.Before(cutoff) {
			continue
		}
		for _, artifact := range record.Artifacts {
			keys = append(keys, artifact.Key)
		}
		delete(w.jobs, id)
	}
	w.mu.Unlock()
	for _, key := range keys {
		if _, err := w.store.Delete(ctx, key); err != nil {
			w.logger.Warn("delete expired export artifact", zap.String("key", key), zap.Error(err))
		}
	}
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(id string) {
	record, ok := w.Get(id)
	if !ok {
		return
	}
	w.updateStatus(id, StatusRunning)

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, err := w.render(w.ctx, record.UserID, format)
		if err != nil {
			w.fail(id, fmt.Sprintf("render %s: %v", format, err))
			return
		}
		artifact, err := w.put(w.ctx, record.UserID, id, format, payload)
		if err != nil {
			w.fail(id, fmt.Sprintf("store %s: %v", format, err))
			return
		}
		artifacts = append(artifacts, artifact)
	}
	w.complete(id, artifacts)
}

func (w *Worker) render(ctx context.Context, userID string, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		records, err := w.source.Records(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := WriteRecordsCSV(&buf, records); err != nil {
			return nil, err
		}
	default:
		ws, err := w.source.Workspace(ctx, userID)
		if err != nil {
			return nil, err
		}
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ws); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (w *Worker) put(ctx context.Context, userID, id string, format Format, payload []byte) (Artifact, error) {
	key := ArtifactKey(userID, id, format)
	info, err := w.store.Put(ctx, key, bytes.NewReader(payload), core.PutOptions{
		ContentType: format.contentType(),
		Metadata:    map[string]string{"export_id": id, "user_id": userID},
	})
	if err != nil {
		return Artifact{}, err
	}
	artifact := Artifact{
		Format:      format,
		Key:         info.Key,
		ContentType: format.contentType(),
		SizeBytes:   info.Size,
		URL:         info.URL,
		CreatedAt:   info.LastModified,
	}
	if artifact.SizeBytes == 0 {
		artifact.SizeBytes = int64(len(payload))
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = w.now()
	}
	url, err := w.store.PresignURL(ctx, key, core.SignedURLOptions{Method: "GET", Expiry: w.urlExpiry})
	switch {
	case err == nil:
		artifact.URL = url
	case errors.Is(err, core.ErrUnsupported):
	default:
		w.logger.Warn("presign export artifact", zap.String("key", key), zap.Error(err))
	}
	return artifact, nil
}

// ArtifactKey is the blob key for an export artifact.
func ArtifactKey(userID, exportID string, format Format) string {
	return path.Join("exports", userID, exportID+"."+string(format))
}

func (w *Worker) updateStatus(id string, status Status) {
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = w.now()
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("export succeeded", zap.String("export_id", id), zap.Int("artifacts", len(artifacts)))
}

func (w *Worker) fail(id, reason string) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export failed", zap.String("export_id", id), zap.String("error", reason))
}

// Open streams a stored artifact of a succeeded export.
func (w *Worker) Open(ctx context.Context, id string, format Format) (Artifact, io.ReadCloser, error) {
	record, ok := w.Get(id)
	if !ok || record.Status != StatusSucceeded {
		return Artifact{}, nil, core.ErrNotFound
	}
	for _, artifact := range record.Artifacts {
		if artifact.Format != format {
			continue
		}
		_, rc, err := w.store.Get(ctx, artifact.Key)
		if err != nil {
			return Artifact{}, nil, err
		}
		return artifact, rc, nil
	}
	return Artifact{}, nil, core.ErrNotFound
}
