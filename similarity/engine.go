// Package similarity scores pairs of screenshots and renders diff images.
package similarity

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Request names the artifacts and HTTP statuses of one comparison.
type Request struct {
	BaselinePath     string
	ComparisonPath   string
	DiffPath         string
	BaselineStatus   int
	ComparisonStatus int
}

// Outcome is the result of a comparison. Similarity is always within 0..100.
type Outcome struct {
	// Score after HTTP status gating
	Similarity int
	// Score computed from the images alone
	Calculated int
	// Set when the comparison could not be scored or a page returned an error
	Error string
}

// Engine compares screenshots with one algorithm.
type Engine struct {
	logger        zerolog.Logger
	algorithm     Algorithm
	diffThreshold int
}

// New returns an engine using algorithm. diffThreshold is the per-channel
// tolerance (0..100) used when rendering diff images.
func New(logger zerolog.Logger, algorithm Algorithm, diffThreshold int) *Engine {
	return &Engine{
		logger:        logger,
		algorithm:     algorithm,
		diffThreshold: diffThreshold,
	}
}

// Algorithm returns the name of the active algorithm.
func (e *Engine) Algorithm() string {
	return e.algorithm.Name()
}

// Compare scores the two artifacts. It never returns an error: failures are
// reported through Outcome.Error with a similarity of 0.
func (e *Engine) Compare(req Request) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Error: fmt.Sprintf("comparison panicked: %v", r)}
		}
	}()

	if !exists(req.BaselinePath) || !exists(req.ComparisonPath) {
		return Outcome{Error: "One or both screenshot files missing"}
	}

	calculated, err := e.score(req)
	if err != nil {
		e.logger.Warn().Err(err).Str("baseline", req.BaselinePath).Msg("Failed to compare screenshots")
		return Outcome{Error: err.Error()}
	}

	out = Outcome{Similarity: calculated, Calculated: calculated}
	if req.BaselineStatus >= 400 || req.ComparisonStatus >= 400 {
		out.Similarity = 0
		out.Error = fmt.Sprintf("HTTP error: baseline status %d, comparison status %d", req.BaselineStatus, req.ComparisonStatus)
	}

	e.logger.Debug().
		Str("algorithm", e.algorithm.Name()).
		Int("similarity", out.Similarity).
		Int("calculated", out.Calculated).
		Int("baseline_status", req.BaselineStatus).
		Int("comparison_status", req.ComparisonStatus).
		Msg("Compared screenshots")

	return out
}

func (e *Engine) score(req Request) (int, error) {
	baseline, err := loadImage(req.BaselinePath)
	if err != nil {
		return 0, err
	}
	comparison, err := loadImage(req.ComparisonPath)
	if err != nil {
		return 0, err
	}

	score, err := e.algorithm.Score(baseline, comparison)
	if err != nil {
		return 0, err
	}

	if req.DiffPath != "" {
		diff := pixelDiff(baseline, comparison, e.diffThreshold)
		if err := writePNG(req.DiffPath, diff.image); err != nil {
			return 0, fmt.Errorf("failed to write diff image: %w", err)
		}
	}

	return clamp(score, 0, 100), nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
