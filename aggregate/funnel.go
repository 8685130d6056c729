package aggregate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/model"
)

// ErrFunnelClosed is returned by Append after Close.
var ErrFunnelClosed = errors.New("result funnel is closed")

type appendRequest struct {
	results []model.ComparisonResult
	reply   chan error
}

// Funnel is the single writer of the canonical result file within a
// process. Appends from concurrent runs are sent over a channel and applied
// one at a time as read, append, validate and replace.
type Funnel struct {
	logger     zerolog.Logger
	path       string
	testTypeID string
	now        func() time.Time
	writer     *fileWriter

	requests  chan appendRequest
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewFunnel starts the writer goroutine for the canonical file at path.
// Close must be called to stop it.
func NewFunnel(logger zerolog.Logger, path, testTypeID string) *Funnel {
	f := &Funnel{
		logger:     logger.With().Str("path", path).Logger(),
		path:       path,
		testTypeID: testTypeID,
		now:        time.Now,
		writer:     newFileWriter(),
		requests:   make(chan appendRequest),
		done:       make(chan struct{}),
	}
	go f.loop()
	return f
}

func (f *Funnel) loop() {
	defer close(f.done)
	for req := range f.requests {
		req.reply <- f.apply(req.results)
	}
}

// Append adds results to the canonical file and waits until they are
// written.
func (f *Funnel) Append(ctx context.Context, results []model.ComparisonResult) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrFunnelClosed
	}

	req := appendRequest{results: results, reply: make(chan error, 1)}
	select {
	case f.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.reply
}

// Ensure creates the canonical file with an empty result set if it does not
// exist yet.
func (f *Funnel) Ensure(ctx context.Context) error {
	return f.Append(ctx, nil)
}

// Close stops the writer goroutine after pending appends are written.
func (f *Funnel) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.requests)
		f.mu.Unlock()
	})
	<-f.done
}

func (f *Funnel) apply(results []model.ComparisonResult) error {
	set, err := f.load()
	if err != nil {
		return err
	}
	if len(results) == 0 && set != nil {
		return nil
	}
	if set == nil {
		set = model.NewResultSet(f.now(), f.testTypeID)
	}

	set.Results = append(set.Results, results...)
	if err := f.writer.writeJSON(f.path, set, validResultSet); err != nil {
		f.logger.Error().Err(err).Msg("Failed to write canonical results, keeping previous file")
		return err
	}

	f.logger.Debug().Int("appended", len(results)).Int("total", len(set.Results)).Msg("Appended results")
	return nil
}

// load returns the current canonical set, nil if the file is missing or
// corrupt. A corrupt file is copied aside before it is replaced.
func (f *Funnel) load() (*model.ResultSet, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read canonical results: %w", err)
	}

	set, err := decodeResultSet(data)
	if err != nil {
		backup := f.path + ".corrupted-" + strconv.FormatInt(f.now().UnixMilli(), 10)
		if berr := backupFile(f.path, backup); berr != nil {
			return nil, fmt.Errorf("failed to back up corrupt canonical results: %w", berr)
		}
		f.logger.Warn().Err(err).Str("backup", backup).Msg("Canonical results corrupt, starting a new result set")
		return nil, nil
	}
	return &set, nil
}
