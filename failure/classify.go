// Package failure classifies shard failures and records them for diagnosis
// and partial re-runs.
package failure

import (
	"errors"
	"strings"

	"github.com/perfgo/vrtgo/model"
)

// Sourced is implemented by errors that know their failure source. These are
// classified without inspecting the message.
type Sourced interface {
	error
	FailureSource() model.FailureSource
}

// SourceError attaches a failure source to an error.
type SourceError struct {
	Source model.FailureSource
	Err    error
}

func (e *SourceError) Error() string { return e.Err.Error() }

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) FailureSource() model.FailureSource { return e.Source }

// WithSource wraps err so it classifies as source.
func WithSource(source model.FailureSource, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Source: source, Err: err}
}

// Classifier maps errors to failure sources. Errors implementing Sourced
// win; otherwise the message is matched against marker substrings, which is
// a best-effort diagnostic.
type Classifier struct {
	AuthMarkers    []string
	RunnerMarkers  []string
	NetworkMarkers []string
}

// DefaultClassifier returns a classifier for the given authentication
// provider names (e.g. "OKTA").
func DefaultClassifier(authProviders ...string) Classifier {
	auth := []string{"OKTA"}
	for _, p := range authProviders {
		switch strings.ToUpper(p) {
		case "", "NONE", "BASIC", "OKTA":
			continue
		}
		auth = append(auth, p)
	}
	return Classifier{
		AuthMarkers: auth,
		RunnerMarkers: []string{
			"browserType.launch",
			"failed to launch browser",
			"launch chrome",
		},
		NetworkMarkers: []string{
			"net::",
			"ECONNREFUSED",
			"ECONNRESET",
			"ETIMEDOUT",
			"connection refused",
			"connection reset",
			"no such host",
			"i/o timeout",
			"socket",
		},
	}
}

// Classify returns the likely origin of err.
func (c Classifier) Classify(err error) model.FailureSource {
	if err == nil {
		return model.FailureSourceApplication
	}

	var sourced Sourced
	if errors.As(err, &sourced) {
		return sourced.FailureSource()
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, c.AuthMarkers):
		return model.FailureSourceAuthProvider
	case containsAny(msg, c.RunnerMarkers):
		return model.FailureSourceRunner
	case containsAny(msg, c.NetworkMarkers):
		return model.FailureSourceNetwork
	}
	return model.FailureSourceApplication
}

// IsFull reports whether a failure escalates to aborting the shard: it
// happened within the first tenth of the shard's records and the running
// failure ratio exceeds threshold.
func IsFull(processed, failed, total int, threshold float64) bool {
	if processed <= 0 || total <= 0 {
		return false
	}
	return float64(processed) < float64(total)*0.1 && float64(failed)/float64(processed) > threshold
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
