package capture

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/perfgo/vrtgo/model"
)

// ReportSubdir is the directory below the reporting root that holds all
// visual diff artifacts.
const ReportSubdir = "visual-diff"

// DiffKind names the directory of diff images next to the environment
// screenshot directories.
const DiffKind = "diff"

// ScreenshotPath returns the path of a screenshot artifact. kind is an
// environment name or DiffKind.
func ScreenshotPath(reportDir, profile, kind string, id int) string {
	return filepath.Join(reportDir, "screenshots", profile, kind, strconv.Itoa(id)+".png")
}

// EnvironmentScreenshotPath returns the screenshot path of a record captured
// in env.
func EnvironmentScreenshotPath(reportDir, profile string, env model.Environment, id int) string {
	return ScreenshotPath(reportDir, profile, string(env), id)
}

// AdvisoryPath returns the path of a shard's oversize page advisory file.
func AdvisoryPath(reportDir, shardID string) string {
	return filepath.Join(reportDir, fmt.Sprintf("page-limit-exceed-%s.json", shardID))
}
