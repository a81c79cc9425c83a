package archive

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// NamePrefix starts every archive produced by this tool
	NamePrefix = "wp-backup-"
	// NameSuffix ends every bundle name
	NameSuffix = ".tar.gz"
	// TimestampLayout is the creation timestamp embedded in the name.
	// It is the identity and sort key of an archive; filesystem mtime is
	// never consulted.
	TimestampLayout = "2006-01-02_15-04-05"
)

// Name returns the bundle name for a backup taken at t.
func Name(t time.Time) string {
	return NamePrefix + t.Format(TimestampLayout) + NameSuffix
}

// SidecarName returns the checksum sidecar name for a bundle name.
func SidecarName(bundleName string) string {
	return bundleName + ".sha256"
}

// Stem returns the bundle name without its .tar.gz suffix. Every artifact
// sharing a stem belongs to the same archive group and is deleted as a unit.
func Stem(bundleName string) string {
	return strings.TrimSuffix(bundleName, NameSuffix)
}

// IsBundleName reports whether name follows the archive naming convention.
func IsBundleName(name string) bool {
	if !strings.HasPrefix(name, NamePrefix) || !strings.HasSuffix(name, NameSuffix) {
		return false
	}
	_, err := Timestamp(name)
	return err == nil
}

// Timestamp extracts the embedded creation timestamp from a bundle name.
func Timestamp(bundleName string) (time.Time, error) {
	raw := strings.TrimSuffix(strings.TrimPrefix(bundleName, NamePrefix), NameSuffix)
	t, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("no timestamp in archive name %q: %w", bundleName, err)
	}
	return t, nil
}

// FilterBundles returns only the names following the archive naming
// convention, sorted ascending. Ordering is purely lexical on the name;
// the embedded timestamp makes lexical order chronological order, with no
// ambiguity even under clock skew.
func FilterBundles(names []string) []string {
	var bundles []string
	for _, name := range names {
		if IsBundleName(name) {
			bundles = append(bundles, name)
		}
	}
	sort.Strings(bundles)
	return bundles
}
