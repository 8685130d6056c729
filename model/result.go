package model

import (
	"strconv"
	"time"
)

// DefaultTestTypeID is the test type identifier of visual diff result sets.
const DefaultTestTypeID = "VRT001"

// ComparisonResult is the outcome of comparing one URL pair under one
// device profile.
type ComparisonResult struct {
	// Record identifier (the URL pair id)
	TestName string `json:"testName"`
	// Device profile name
	Device string `json:"device"`
	// Browser label derived from the profile
	Browser string `json:"browser"`
	// Viewport formatted as "WxH"
	Viewport string `json:"viewport"`
	// Similarity percentage after HTTP status gating (0..100)
	Similarity int `json:"similarity"`
	// Similarity the algorithm computed before status gating
	CalculatedSimilarity int `json:"calculatedSimilarity"`
	// HTTP status of the baseline page
	BaselineStatus int `json:"baseline_status"`
	// HTTP status of the comparison page
	ComparisonStatus int `json:"comparison_status"`
	// Screenshot paths
	BaselinePath   string `json:"baselinePath"`
	ComparisonPath string `json:"comparisonPath"`
	DiffPath       string `json:"diffPath,omitempty"`
	// Absolute URLs that were captured
	BaselineURL   string `json:"baselineUrl"`
	ComparisonURL string `json:"comparisonUrl"`
	// Error annotation when the comparison could not be scored
	Error string `json:"error,omitempty"`
}

// ResultSet is the on-disk schema shared by shard result files and the
// canonical result file.
type ResultSet struct {
	// Identifier of the run that produced the set (unix milliseconds)
	TestID string `json:"testId"`
	// Test type identifier, e.g. "VRT001"
	TestTypeID string `json:"testTypeId"`
	// Time the set was created
	TestDate time.Time `json:"testDate"`
	// Comparison results, in append order
	Results []ComparisonResult `json:"results"`
}

// NewResultSet returns an empty result set stamped with the given time.
func NewResultSet(now time.Time, testTypeID string) *ResultSet {
	if testTypeID == "" {
		testTypeID = DefaultTestTypeID
	}
	return &ResultSet{
		TestID:     strconv.FormatInt(now.UnixMilli(), 10),
		TestTypeID: testTypeID,
		TestDate:   now.UTC(),
		Results:    []ComparisonResult{},
	}
}

// OversizeAdvisory records a page whose rendered height exceeded the
// screenshot limit and was captured viewport-bounded instead.
type OversizeAdvisory struct {
	TestName      string `json:"testName"`
	Device        string `json:"device"`
	URL           string `json:"url"`
	ContentHeight int    `json:"contentHeight"`
}

// MissedURLs reports input records that have no comparison result.
type MissedURLs struct {
	TotalURLs  int       `json:"totalUrls"`
	TestedURLs int       `json:"testedUrls"`
	MissedURLs int       `json:"missedUrls"`
	URLs       []URLPair `json:"urls"`
}

// Cookie is a browser cookie as stored in a session artifact.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionState is the persisted output of an authentication flow.
type SessionState struct {
	Cookies []Cookie `json:"cookies"`
}

// CaptureResult describes one screenshot taken for a record in one
// environment under one profile.
type CaptureResult struct {
	TestName string `json:"testName"`
	Device   string `json:"device"`
	Browser  string `json:"browser"`
	Viewport string `json:"viewport"`
	// HTTP status of the navigation
	Status int `json:"status"`
	// Screenshot location
	ArtifactPath string `json:"artifactPath"`
	// Height of the rendered page in CSS pixels
	ContentHeight int `json:"contentHeight"`
	// The page exceeded the height limit and only the viewport was captured
	Oversize bool `json:"oversize,omitempty"`
}
