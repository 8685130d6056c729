package failure

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/model"
)

// FilePath returns the failure record path of a shard and profile.
func FilePath(reportDir, shardID, profile string) string {
	return filepath.Join(reportDir, fmt.Sprintf("failed-runner-%s-%s.json", shardID, profile))
}

// Recorder accumulates the failures of one shard run for one profile and
// persists the latest FailureRecord. Each write replaces the previous one.
type Recorder struct {
	logger     zerolog.Logger
	classifier Classifier
	path       string
	shardID    string
	profile    string
	records    []model.URLPair
	urlOf      func(model.URLPair) string
	rerun      RerunOptions
	now        func() time.Time

	mu     sync.Mutex
	failed []model.FailedURL
	last   *model.FailureRecord
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	ReportDir  string
	ShardID    string
	Profile    string
	Records    []model.URLPair            // Records of the shard, in run order
	URLOf      func(model.URLPair) string // Absolute URL of a record
	Classifier Classifier
	Rerun      RerunOptions // Template of the re-run command; IDs are filled in
}

// NewRecorder returns a recorder for one shard run.
func NewRecorder(logger zerolog.Logger, cfg RecorderConfig) *Recorder {
	urlOf := cfg.URLOf
	if urlOf == nil {
		urlOf = func(r model.URLPair) string { return r.Comparison }
	}
	rerun := cfg.Rerun
	rerun.Shard = cfg.ShardID
	rerun.Profile = cfg.Profile

	return &Recorder{
		logger:     logger,
		classifier: cfg.Classifier,
		path:       FilePath(cfg.ReportDir, cfg.ShardID, cfg.Profile),
		shardID:    cfg.ShardID,
		profile:    cfg.Profile,
		records:    cfg.Records,
		urlOf:      urlOf,
		rerun:      rerun,
		now:        time.Now,
	}
}

// Path returns the file the recorder writes.
func (r *Recorder) Path() string {
	return r.path
}

// AddFailedRecord notes a record that failed without writing a record.
func (r *Recorder) AddFailedRecord(rec model.URLPair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, model.FailedURL{ID: rec.ID, URL: r.urlOf(rec)})
}

// Failure describes one failure to record.
type Failure struct {
	Type      model.FailureType
	Err       error
	Location  string // Stage that raised the error
	Reason    string // Overrides the error message as failure reason
	Processed int    // Records processed so far, including the failing one
}

// Record classifies f, writes the FailureRecord and returns it.
func (r *Recorder) Record(f Failure) (*model.FailureRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	processed := min(max(f.Processed, 0), len(r.records))

	details := ""
	if f.Err != nil {
		details = f.Err.Error()
	}
	reason := f.Reason
	if reason == "" {
		reason = details
	}

	failed := make([]model.FailedURL, len(r.failed))
	copy(failed, r.failed)

	remaining := make([]model.FailedURL, 0, len(r.records)-processed)
	for _, pending := range r.records[processed:] {
		remaining = append(remaining, model.FailedURL{ID: pending.ID, URL: r.urlOf(pending)})
	}

	rec := &model.FailureRecord{
		Timestamp:   r.now().UTC(),
		Project:     r.profile,
		ShardID:     r.shardID,
		FailureType: f.Type,
		FailureSource: model.FailureOrigin{
			Type:     r.classifier.Classify(f.Err),
			Location: f.Location,
			Details:  details,
		},
		FailureReason: reason,
		TotalURLs:     len(r.records),
		CompletedURLs: processed,
		RemainingURLs: remaining,
		FailedURLs:    failed,
	}

	var ids []int
	for _, fu := range failed {
		ids = append(ids, fu.ID)
	}
	for _, pending := range remaining {
		ids = append(ids, pending.ID)
	}
	if len(ids) > 0 {
		opts := r.rerun
		opts.IDs = ids
		rec.RerunCommand = BuildRerunCommand(opts)
	}

	if err := writeRecord(r.path, rec); err != nil {
		return rec, err
	}
	r.last = rec

	r.logger.Warn().
		Str("type", string(rec.FailureType)).
		Str("source", string(rec.FailureSource.Type)).
		Int("completed", rec.CompletedURLs).
		Int("remaining", len(rec.RemainingURLs)).
		Str("path", r.path).
		Msg("Recorded shard failure")

	return rec, nil
}

// Last returns the most recently written record, or nil.
func (r *Recorder) Last() *model.FailureRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func writeRecord(path string, rec *model.FailureRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write failure record: %w", err)
	}
	return nil
}

// ReadRecord reads a FailureRecord file.
func ReadRecord(path string) (*model.FailureRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec model.FailureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &rec, nil
}
