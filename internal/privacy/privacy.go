// Package privacy enforces source-level privacy isolation before a
// query fetches or combines data (spec §4.9): a merge or append whose
// inputs trace to incompatible privacy levels is refused before any
// lower-privacy source is ever fetched.
package privacy

import (
	"fmt"

	"flowsheet/internal/query"
)

// Level is one of the three privacy classifications a source can
// carry.
type Level string

const (
	LevelPublic         Level = "public"
	LevelOrganizational Level = "organizational"
	LevelPrivate        Level = "private"
)

// compatible reports whether a and b may appear together in the same
// merge/append. An unset level on either side, or two equal levels,
// mix; public mixes with anything; the remaining pair (private with
// organizational) is incompatible.
func compatible(a, b Level) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	if a == LevelPublic || b == LevelPublic {
		return true
	}
	return false
}

// FirewallError is the `Formula.Firewall` failure spec §4.9 names,
// raised when combining sources of incompatible privacy levels.
type FirewallError struct {
	SourceA string
	LevelA  Level
	SourceB string
	LevelB  Level
}

func (e *FirewallError) Error() string {
	return fmt.Sprintf("Formula.Firewall: cannot combine source %q (%s) with source %q (%s)",
		e.SourceA, e.LevelA, e.SourceB, e.LevelB)
}

// SourceID derives a stable identifier for a source from its kind and
// identity (file path, HTTP origin+path, table name), so the same
// logical source always maps to the same privacy-level lookup key
// regardless of how many queries reference it.
func SourceID(src query.Source) string {
	switch src.Kind {
	case query.SourceTable:
		return "table:" + src.TableName
	case query.SourceCSV, query.SourceJSON, query.SourceParquet, query.SourceFolder:
		return string(src.Kind) + ":" + src.Path
	case query.SourceDatabase:
		return "database:" + src.Connection
	case query.SourceAPI, query.SourceOData:
		return string(src.Kind) + ":" + src.URL
	case query.SourceQueryRef:
		return "query-ref:" + src.RefID
	case query.SourceRange:
		return "range"
	default:
		return string(src.Kind)
	}
}

// Levels maps a sourceId to its privacy level, the shape spec §4.9's
// `privacy.levelsBySourceId` context value takes. A source absent from
// the map is treated as unset (compatible with everything), matching
// the spec's "context may supply" framing — omission is not a denial.
type Levels map[string]Level

// Level returns the configured level for src, or "" if unset.
func (l Levels) Level(src query.Source) Level {
	if l == nil {
		return ""
	}
	return l[SourceID(src)]
}

// LevelOf overrides the Levels lookup when src.PrivacyLevel is set
// directly on the Source value (spec §4.9 allows per-occurrence
// overrides).
func (l Levels) LevelOf(src query.Source) Level {
	if src.PrivacyLevel != "" {
		return Level(src.PrivacyLevel)
	}
	return l.Level(src)
}

// CheckCombine enforces the firewall before fetching any of sources:
// every pair must be privacy-compatible. Enforcement happens before
// any fetch of the lower-privacy source, so callers must invoke this
// ahead of calling internal/sources.Load for any of the given sources.
func (l Levels) CheckCombine(sources ...query.Source) error {
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			la, lb := l.LevelOf(sources[i]), l.LevelOf(sources[j])
			if !compatible(la, lb) {
				return &FirewallError{
					SourceA: SourceID(sources[i]), LevelA: la,
					SourceB: SourceID(sources[j]), LevelB: lb,
				}
			}
		}
	}
	return nil
}
