// Package selection builds job predicates for choosing which specs of a
// tree are planned for a run.
package selection

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

// All accepts a job when every predicate does. Nil predicates are ignored.
func All(predicates ...suite.Predicate) suite.Predicate {
	return func(job *suite.Job) bool {
		for _, p := range predicates {
			if p != nil && !p(job) {
				return false
			}
		}
		return true
	}
}

// Any accepts a job when at least one predicate does.
func Any(predicates ...suite.Predicate) suite.Predicate {
	return func(job *suite.Job) bool {
		for _, p := range predicates {
			if p != nil && p(job) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(p suite.Predicate) suite.Predicate {
	return func(job *suite.Job) bool { return !p(job) }
}

// Description returns the prefixed description of the job's spec.
func Description(job *suite.Job) string {
	return job.Group.Prefixed(job.Spec.Description())
}

// Filter matches the prefixed description against a glob pattern where *
// matches any run of characters and ? a single one. A pattern without
// wildcards matches as a substring. An empty pattern accepts everything.
func Filter(pattern string) suite.Predicate {
	if pattern == "" {
		return nil
	}
	if !strings.ContainsAny(pattern, "*?") {
		return func(job *suite.Job) bool {
			return strings.Contains(Description(job), pattern)
		}
	}
	re := globToRegexp(pattern)
	return func(job *suite.Job) bool {
		return re.MatchString(Description(job))
	}
}

func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// Grep matches the prefixed description against a regular expression.
func Grep(expr string) (suite.Predicate, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid grep pattern: %w", err)
	}
	return func(job *suite.Job) bool {
		return re.MatchString(Description(job))
	}, nil
}

// TagsOf collects the suite.Tag infos of the spec and all of its ancestors.
func TagsOf(job *suite.Job) []suite.Tag {
	var tags []suite.Tag
	collect := func(infos []any) {
		for _, info := range infos {
			if tag, ok := info.(suite.Tag); ok && !slices.Contains(tags, tag) {
				tags = append(tags, tag)
			}
		}
	}
	collect(job.Spec.Meta().Infos)
	for g := range job.Group.AndParents() {
		collect(g.Meta().Infos)
	}
	return tags
}

// Tags accepts jobs carrying any of the given tags. A tag prefixed with !
// excludes jobs carrying it, whatever else they carry.
func Tags(tags ...string) suite.Predicate {
	var include, exclude []suite.Tag
	for _, t := range tags {
		t = strings.TrimSpace(t)
		switch {
		case t == "":
		case strings.HasPrefix(t, "!"):
			exclude = append(exclude, suite.Tag(strings.TrimPrefix(t, "!")))
		default:
			include = append(include, suite.Tag(t))
		}
	}
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}
	return func(job *suite.Job) bool {
		have := TagsOf(job)
		for _, t := range exclude {
			if slices.Contains(have, t) {
				return false
			}
		}
		if len(include) == 0 {
			return true
		}
		for _, t := range include {
			if slices.Contains(have, t) {
				return true
			}
		}
		return false
	}
}

// Partition splits total jobs into count contiguous ranges by series and
// accepts the jobs of range index (zero based). Earlier ranges take the
// remainder, so range sizes differ by at most one.
func Partition(total, index, count int) (suite.Predicate, error) {
	if count <= 0 || index < 0 || index >= count {
		return nil, fmt.Errorf("invalid partition %d/%d", index+1, count)
	}
	size, rest := total/count, total%count
	start := index*size + min(index, rest)
	end := start + size
	if index < rest {
		end++
	}
	return func(job *suite.Job) bool {
		return job.Series >= start && job.Series < end
	}, nil
}

// ParsePartition parses "i/n" with a one-based i.
func ParsePartition(s string) (index, count int, err error) {
	if _, err := fmt.Sscanf(s, "%d/%d", &index, &count); err != nil {
		return 0, 0, fmt.Errorf("invalid partition %q (use i/n, e.g. 1/3): %w", s, err)
	}
	if count <= 0 || index < 1 || index > count {
		return 0, 0, fmt.Errorf("invalid partition %q", s)
	}
	return index - 1, count, nil
}
