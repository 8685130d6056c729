package gocmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPprofArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"tool", "pprof", "-http=:8080", "-top", "capture-1-chromium-desktop.pb.gz"},
		PprofArgs("capture-1-chromium-desktop.pb.gz", []string{"-http=:8080", "-top"}))
	assert.Equal(t,
		[]string{"tool", "pprof", "p.pb.gz"},
		PprofArgs("p.pb.gz", nil))
}
