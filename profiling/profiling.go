// Package profiling records how long each capture stage takes and writes
// the timings as a pprof profile.
package profiling

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/pprof/profile"
)

// FilePath returns the timing profile path of a shard run.
func FilePath(reportDir, shardID, profileName string) string {
	return filepath.Join(reportDir, "profiles", fmt.Sprintf("capture-%s-%s.pb.gz", shardID, profileName))
}

// Recorder collects stage durations. Each observation becomes a sample
// whose stack is stage <- test <- run, so pprof can aggregate by stage or
// by test.
type Recorder struct {
	mu        sync.Mutex
	root      string
	start     time.Time
	profile   *profile.Profile
	functions map[string]*profile.Function
	locations map[string]*profile.Location
	samples   map[[3]string]*profile.Sample
	nextID    uint64
}

// New creates a recorder for the run named root, e.g. "shard 3 chromium-desktop".
func New(root string) *Recorder {
	now := time.Now()
	return &Recorder{
		root:  root,
		start: now,
		profile: &profile.Profile{
			SampleType: []*profile.ValueType{
				{Type: "samples", Unit: "count"},
				{Type: "wall", Unit: "nanoseconds"},
			},
			DefaultSampleType: "wall",
			TimeNanos:         now.UnixNano(),
			PeriodType:        &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
			Period:            1,
		},
		functions: make(map[string]*profile.Function),
		locations: make(map[string]*profile.Location),
		samples:   make(map[[3]string]*profile.Sample),
		nextID:    1,
	}
}

// ObserveStage adds d to the time spent in stage for testName.
func (r *Recorder) ObserveStage(testName, stage string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := [3]string{r.root, "test " + testName, stage}
	if s, ok := r.samples[key]; ok {
		s.Value[0]++
		s.Value[1] += d.Nanoseconds()
		return
	}

	s := &profile.Sample{
		// Leaf first
		Location: []*profile.Location{r.location(key[2]), r.location(key[1]), r.location(key[0])},
		Value:    []int64{1, d.Nanoseconds()},
		Label:    map[string][]string{"stage": {stage}, "test": {testName}},
	}
	r.samples[key] = s
	r.profile.Sample = append(r.profile.Sample, s)
}

func (r *Recorder) location(name string) *profile.Location {
	if loc, ok := r.locations[name]; ok {
		return loc
	}

	fn, ok := r.functions[name]
	if !ok {
		fn = &profile.Function{ID: r.nextID, Name: name, SystemName: name}
		r.nextID++
		r.functions[name] = fn
		r.profile.Function = append(r.profile.Function, fn)
	}

	loc := &profile.Location{ID: r.nextID, Line: []profile.Line{{Function: fn}}}
	r.nextID++
	r.locations[name] = loc
	r.profile.Location = append(r.profile.Location, loc)
	return loc
}

// Profile returns a copy of the profile built so far.
func (r *Recorder) Profile() *profile.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.profile.Copy()
	p.DurationNanos = time.Since(r.start).Nanoseconds()
	return p
}

// WriteFile validates the profile and writes it gzip-compressed to path.
func (r *Recorder) WriteFile(path string) error {
	p := r.Profile()
	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("invalid timing profile: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	if err := p.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return f.Close()
}
