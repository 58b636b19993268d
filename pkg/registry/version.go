package registry

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// VersionQueryKind discriminates a VersionQuery's variant.
type VersionQueryKind string

const (
	QueryExact       VersionQueryKind = "exact"
	QueryLatest      VersionQueryKind = "latest"
	QuerySemverRange VersionQueryKind = "semver_range"
)

// VersionQuery is the client-side expression used to select a registry tag.
type VersionQuery struct {
	Kind  VersionQueryKind
	Exact string // set when Kind == QueryExact
	Range string // Cargo-style constraint expression, set when Kind == QuerySemverRange
}

// Exact builds a VersionQuery matching one specific tag.
func Exact(version string) VersionQuery { return VersionQuery{Kind: QueryExact, Exact: version} }

// Latest builds a VersionQuery selecting the greatest SemVer-parseable tag.
func Latest() VersionQuery { return VersionQuery{Kind: QueryLatest} }

// SemverRangeQuery builds a VersionQuery matching a Cargo-style range
// expression (^1.2, ~1.2.3, >=1.0 <2.0, *).
func SemverRangeQuery(expr string) VersionQuery {
	return VersionQuery{Kind: QuerySemverRange, Range: expr}
}

// Resolve selects one tag name out of tags according to q. Tags that fail to
// parse as SemVer are ignored by Latest and SemverRange but remain directly
// addressable via Exact.
func Resolve(q VersionQuery, tags []Tag) (string, error) {
	switch q.Kind {
	case QueryExact:
		for _, t := range tags {
			if t.Name == q.Exact {
				return t.Name, nil
			}
		}
		return "", &Error{Kind: ErrNotFound, Message: "tag " + q.Exact + " not found"}

	case QueryLatest:
		best, ok := latestParseable(tags)
		if !ok {
			return "", &Error{Kind: ErrNotFound, Message: "no SemVer-parseable tags found"}
		}
		return best.Name, nil

	case QuerySemverRange:
		constraint, err := semver.NewConstraint(cargoToMastermindsExpr(q.Range))
		if err != nil {
			return "", &Error{Kind: ErrInvalidReference, Message: "invalid semver range: " + q.Range, Cause: err}
		}
		var matches []parsedTag
		for _, t := range tags {
			v, err := semver.NewVersion(t.Name)
			if err != nil {
				continue
			}
			if constraint.Check(v) {
				matches = append(matches, parsedTag{Tag: t, v: v})
			}
		}
		if len(matches) == 0 {
			return "", &Error{Kind: ErrNotFound, Message: "no tag matches range " + q.Range}
		}
		sort.Slice(matches, func(i, j int) bool {
			return lessByVersionThenPushedAt(matches[i], matches[j])
		})
		return matches[len(matches)-1].Name, nil

	default:
		return "", &Error{Kind: ErrInvalidReference, Message: "unknown version query kind"}
	}
}

type parsedTag struct {
	Tag
	v *semver.Version
}

func latestParseable(tags []Tag) (parsedTag, bool) {
	var best parsedTag
	found := false
	for _, t := range tags {
		v, err := semver.NewVersion(t.Name)
		if err != nil {
			continue
		}
		candidate := parsedTag{Tag: t, v: v}
		if !found || lessByVersionThenPushedAt(best, candidate) {
			best = candidate
			found = true
		}
	}
	return best, found
}

// lessByVersionThenPushedAt reports whether a sorts before b: lower SemVer
// first, ties broken by the registry's reported pushed-at timestamp
// (earlier first), so the last element after sort.Slice is the winner.
func lessByVersionThenPushedAt(a, b parsedTag) bool {
	if cmp := a.v.Compare(b.v); cmp != 0 {
		return cmp < 0
	}
	return a.PushedAt.Before(b.PushedAt)
}

// cargoToMastermindsExpr passes the expression through unchanged: Cargo and
// Masterminds/semver share the same operator vocabulary (^, ~, >=, <, *) for
// the subset of ranges this client supports, so no translation is needed
// beyond what semver.NewConstraint already accepts.
func cargoToMastermindsExpr(expr string) string {
	return expr
}
