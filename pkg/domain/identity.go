package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Version is a major.minor handler version.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// MaxVersion sorts above every real version.
var MaxVersion = Version{Major: math.MaxInt32, Minor: math.MaxInt32}

// ParseVersion parses "1" or "1.2".
func ParseVersion(s string) (Version, error) {
	majorStr, minorStr, hasMinor := strings.Cut(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil || major < 0 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	v := Version{Major: major}
	if hasMinor {
		minor, err := strconv.Atoi(minorStr)
		if err != nil || minor < 0 {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		v.Minor = minor
	}
	return v, nil
}

// Less reports whether v sorts strictly before o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// IsZero reports whether the version is 0.0.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// MarshalText encodes the version as "major.minor".
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes "major.minor".
func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := ParseVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// HandlerIdentity is the strong name of a loaded handler.
type HandlerIdentity struct {
	ID      string  `json:"id"`
	Version Version `json:"version"`
}

// ParseIdentity parses "id@major.minor".
func ParseIdentity(s string) (HandlerIdentity, error) {
	id, ver, ok := strings.Cut(s, "@")
	if !ok || id == "" {
		return HandlerIdentity{}, fmt.Errorf("invalid handler identity %q: expected id@major.minor", s)
	}
	v, err := ParseVersion(ver)
	if err != nil {
		return HandlerIdentity{}, fmt.Errorf("invalid handler identity %q: %w", s, err)
	}
	return HandlerIdentity{ID: id, Version: v}, nil
}

func (h HandlerIdentity) String() string {
	return h.ID + "@" + h.Version.String()
}
