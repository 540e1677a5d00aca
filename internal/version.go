package internal

import (
	"regexp"
	"strconv"
)

var versionDigits = regexp.MustCompile(`\d+`)

type versionTriple struct {
	major, minor, patch int
}

// parseVersion extracts up to three leading integer groups from a
// version string. Missing groups are 0. ok is false when the string
// holds no digits at all.
func parseVersion(s string) (versionTriple, bool) {
	parts := versionDigits.FindAllString(s, 3)
	if len(parts) == 0 {
		return versionTriple{}, false
	}
	var v versionTriple
	nums := []*int{&v.major, &v.minor, &v.patch}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return versionTriple{}, false
		}
		*nums[i] = n
	}
	return v, true
}

// VersionSimilarity compares two app version strings on a 0-1 scale.
// Same major+minor decays 0.05 per patch step from 0.9; same major
// decays 0.10 per minor step from 0.7; different or zero major is 0.
// The decay is clamped at 0 so large gaps cannot push the fused score
// negative.
func VersionSimilarity(queryVersion, candidateVersion string) float64 {
	if queryVersion == "" || queryVersion == "N/A" || candidateVersion == "" || candidateVersion == "N/A" {
		return 0.0
	}

	q, ok := parseVersion(queryVersion)
	if !ok {
		return 0.0
	}
	c, ok := parseVersion(candidateVersion)
	if !ok {
		return 0.0
	}

	if q == c {
		return 1.0
	}

	if q.major != c.major || q.major == 0 {
		return 0.0
	}

	if q.minor == c.minor {
		return clampZero(0.9 - 0.05*absFloat(q.patch-c.patch))
	}
	return clampZero(0.7 - 0.10*absFloat(q.minor-c.minor))
}

func absFloat(n int) float64 {
	if n < 0 {
		n = -n
	}
	return float64(n)
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
