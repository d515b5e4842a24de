// internal/healer/report.go
package healer

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sk3lla/mend/api/schemas"
)

var reportJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one JSON line in the healing event log. Only resolutions that
// involved the cache or the model produce a record; plain declared-locator
// successes are not logged.
type Record struct {
	ID                 string              `json:"id"`
	Timestamp          time.Time           `json:"timestamp"`
	TestName           string              `json:"testName,omitempty"`
	Action             schemas.ActionKind  `json:"action"`
	Description        string              `json:"description"`
	URL                string              `json:"url,omitempty"`
	Key                string              `json:"key,omitempty"`
	Outcome            string              `json:"outcome"`
	Success            bool                `json:"success"`
	Strategy           *schemas.Strategy   `json:"strategy,omitempty"`
	Confidence         float64             `json:"confidence,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	Usage              *schemas.TokenUsage `json:"tokenUsage,omitempty"`
	Error              string              `json:"error,omitempty"`
	CandidatesAnalyzed int                 `json:"candidatesAnalyzed,omitempty"`
	DurationMS         int64               `json:"durationMs"`
}

// Reporter appends healing records to a JSON-lines file. Every write is
// awaited but never fatal: a logging failure must not abort a resolution.
type Reporter struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	bannered map[string]bool
}

// NewReporter creates a reporter over the given file path.
func NewReporter(path string, logger *zap.Logger) *Reporter {
	return &Reporter{
		path:     path,
		logger:   logger.Named("report"),
		bannered: make(map[string]bool),
	}
}

// Write appends one record. Failures are logged and swallowed.
func (r *Reporter) Write(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	line, err := reportJSON.Marshal(rec)
	if err != nil {
		r.logger.Warn("Failed to encode healing record", zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		r.logger.Warn("Failed to create report directory", zap.Error(err))
		return
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Warn("Failed to open report file", zap.String("path", r.path), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		r.logger.Warn("Failed to append healing record", zap.Error(err))
	}
}

// Banner emits a one-time notice per test name on its first AI-involving
// failure, pointing at the report file.
func (r *Reporter) Banner(testName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bannered[testName] {
		return
	}
	r.bannered[testName] = true
	r.logger.Warn("Self-healing could not resolve an element in this test; see the report for details",
		zap.String("test", testName),
		zap.String("report", r.path))
}
