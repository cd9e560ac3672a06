// Package version carries build identification and the judge CLI version
// gate: agent checks are only trustworthy when the external judge meets the
// configured semver floor.
package version

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/convergentic/converge/errors"
)

// Build information, set at build time via ldflags.
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info is the full build identification, serializable for --json output
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current build identification
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable one-line version string
func (i Info) String() string {
	return fmt.Sprintf("converge %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
}

// semverPattern picks the first version-shaped token out of judge CLI
// output like "claude 1.2.3 (build abc)".
var semverPattern = regexp.MustCompile(`v?\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?`)

// ParseJudgeVersion extracts the semantic version from a judge CLI's
// --version output.
func ParseJudgeVersion(output string) (*semver.Version, error) {
	token := semverPattern.FindString(strings.TrimSpace(output))
	if token == "" {
		return nil, errors.Newf("no version found in judge output %q", firstLine(output))
	}
	v, err := semver.NewVersion(strings.TrimPrefix(token, "v"))
	if err != nil {
		return nil, errors.Wrapf(err, "judge version %q", token)
	}
	return v, nil
}

// CheckJudgeVersion enforces the configured minimum judge CLI version.
// An empty minimum disables the gate.
func CheckJudgeVersion(output, minimum string) error {
	if minimum == "" {
		return nil
	}
	floor, err := semver.NewVersion(strings.TrimPrefix(minimum, "v"))
	if err != nil {
		return errors.Wrapf(err, "configured minimum judge version %q", minimum)
	}
	v, err := ParseJudgeVersion(output)
	if err != nil {
		return err
	}
	if v.LessThan(floor) {
		return errors.Newf("judge version %s is older than the required minimum %s", v, floor)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
