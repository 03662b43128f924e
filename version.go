package tor

import (
	"fmt"
	"strconv"
	"strings"
)

// VersionStatus is the release status component of a version, ordered from
// earliest to latest.
type VersionStatus int

// Version statuses in release order.
const (
	StatusAlpha VersionStatus = iota
	StatusRC
	StatusRelease
)

func (s VersionStatus) String() string {
	switch s {
	case StatusAlpha:
		return "alpha"
	case StatusRC:
		return "rc"
	default:
		return ""
	}
}

// Version is a software version as it appears in client-versions and
// server-versions lines: four numeric components, a release status, and an
// optional trailing tag.
type Version struct {
	Major  int
	Minor  int
	Micro  int
	Patch  int
	Status VersionStatus
	Tag    string
}

// ParseVersion parses a version of the form
// "major.minor.micro[.patch][-status][-tag]".
func ParseVersion(s string) (v Version, err error) {
	v.Status = StatusRelease
	rest := s
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		suffix := rest[i+1:]
		rest = rest[:i]
		switch {
		case suffix == "alpha" || strings.HasPrefix(suffix, "alpha-"):
			v.Status = StatusAlpha
			v.Tag = strings.TrimPrefix(strings.TrimPrefix(suffix, "alpha"), "-")
		case suffix == "rc" || strings.HasPrefix(suffix, "rc-"):
			v.Status = StatusRC
			v.Tag = strings.TrimPrefix(strings.TrimPrefix(suffix, "rc"), "-")
		default:
			v.Tag = suffix
		}
	}
	parts := strings.Split(rest, ".")
	if len(parts) < 3 || len(parts) > 4 {
		return v, fmt.Errorf("bad version %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return v, fmt.Errorf("bad version %q", s)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Micro = nums[0], nums[1], nums[2]
	if len(nums) == 4 {
		v.Patch = nums[3]
	}
	return v, nil
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
	if v.Patch != 0 {
		s += fmt.Sprintf(".%d", v.Patch)
	}
	if v.Status != StatusRelease {
		s += "-" + v.Status.String()
	}
	if v.Tag != "" {
		s += "-" + v.Tag
	}
	return s
}

// Compare orders versions by numeric components, then release status, then
// tag. It returns a negative number if v is older than other, zero if they
// are equal, and a positive number otherwise.
func (v Version) Compare(other Version) int {
	if c := v.Major - other.Major; c != 0 {
		return c
	}
	if c := v.Minor - other.Minor; c != 0 {
		return c
	}
	if c := v.Micro - other.Micro; c != 0 {
		return c
	}
	if c := v.Patch - other.Patch; c != 0 {
		return c
	}
	if c := int(v.Status) - int(other.Status); c != 0 {
		return c
	}
	return strings.Compare(v.Tag, other.Tag)
}

// CompareVersionStrings orders two version strings by version ordinal.
// Unparseable versions sort before parseable ones, by plain string order
// among themselves.
func CompareVersionStrings(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
