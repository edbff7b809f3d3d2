package sigfile

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Format constants stamped on every written container root.
const (
	// FileFormat identifies the producing system.
	FileFormat = "SigFile"

	// CurrentVersion is the writer's format version.
	CurrentVersion = "1.0"
)

// Root attribute and group names of the on-disk layout.
const (
	attrFileFormat  = "file_format"
	attrFileVersion = "file_format_version"

	experimentsGroup = "Experiments"
)

// VersionPolicy decides how a stored format version is treated on read.
// It is an explicit value passed into the reader and writer; there is no
// process-wide current-version state.
type VersionPolicy struct {
	// Current is the version stamped by the writer and the newest version
	// the reader interprets without warning.
	Current string
}

// DefaultVersionPolicy returns the library's own version policy.
func DefaultVersionPolicy() VersionPolicy {
	return VersionPolicy{Current: CurrentVersion}
}

// CheckRead validates the root format attributes of a container being
// read. A missing or foreign format tag rejects the file outright; a
// version newer than Current (or unparseable) logs a warning and lets a
// best-effort read proceed.
func (p VersionPolicy) CheckRead(format, version string, logger *slog.Logger) error {
	if format != FileFormat {
		if format == "" {
			return fmt.Errorf("%w: missing %s attribute", ErrInvalidFormat, attrFileFormat)
		}
		return fmt.Errorf("%w: file_format is %q", ErrInvalidFormat, format)
	}
	if version == "" {
		return fmt.Errorf("%w: missing %s attribute", ErrInvalidFormat, attrFileVersion)
	}

	cmp, err := compareVersions(version, p.Current)
	if err != nil {
		logger.Warn("unrecognized format version, attempting best-effort read",
			"version", version, "supported", p.Current)
		return nil
	}
	if cmp > 0 {
		logger.Warn("file written by a newer format version, attempting best-effort read",
			"version", version, "supported", p.Current)
	}
	return nil
}

// compareVersions compares dotted numeric version strings.
// It returns -1, 0, or 1 as a is older than, equal to, or newer than b.
func compareVersions(a, b string) (int, error) {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		var err error
		if i < len(as) {
			if av, err = strconv.Atoi(as[i]); err != nil {
				return 0, fmt.Errorf("version %q: %w", a, err)
			}
		}
		if i < len(bs) {
			if bv, err = strconv.Atoi(bs[i]); err != nil {
				return 0, fmt.Errorf("version %q: %w", b, err)
			}
		}
		if av != bv {
			if av < bv {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, nil
}
