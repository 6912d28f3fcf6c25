package engine

import (
	"path"
	"sort"
	"strings"

	"github.com/starford/laguz/internal/graph"
)

// targetComponents splits a link target into path components, appending a
// .md suffix to the final component when it carries no extension.
func targetComponents(target string) []string {
	t := strings.TrimSpace(strings.ReplaceAll(target, "\\", "/"))
	t = strings.Trim(t, "/")
	if t == "" {
		return nil
	}
	comps := strings.Split(t, "/")
	last := comps[len(comps)-1]
	if path.Ext(last) == "" {
		comps[len(comps)-1] = last + ".md"
	}
	return comps
}

// matchScore scores how well candidate (a node identifier) satisfies a link
// target. The returned count is the number of trailing path components the
// two share; zero means no match (the file names differ). exact is true when
// every component of the target matched, i.e. the candidate path ends with
// the full target.
func matchScore(target, candidate string) (shared int, exact bool) {
	tc := targetComponents(target)
	if len(tc) == 0 {
		return 0, false
	}
	cc := strings.Split(strings.Trim(candidate, "/"), "/")
	n := 0
	for n < len(tc) && n < len(cc) {
		if !strings.EqualFold(tc[len(tc)-1-n], cc[len(cc)-1-n]) {
			break
		}
		n++
	}
	return n, n == len(tc)
}

// bestCandidate picks the candidate that best satisfies target: exact suffix
// matches beat partial ones, longer shared component counts beat shorter,
// shorter overall paths win ties, and the final tiebreak is lexicographic so
// the choice never depends on discovery order.
func bestCandidate(target string, candidates []string) (string, bool) {
	type scored struct {
		id     string
		shared int
		exact  bool
	}
	var matches []scored
	for _, c := range candidates {
		if shared, exact := matchScore(target, c); shared > 0 {
			matches = append(matches, scored{id: c, shared: shared, exact: exact})
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.exact != b.exact {
			return a.exact
		}
		if a.shared != b.shared {
			return a.shared > b.shared
		}
		if len(a.id) != len(b.id) {
			return len(a.id) < len(b.id)
		}
		return a.id < b.id
	})
	return matches[0].id, true
}

// resolveTarget resolves a link target against the node identifiers present
// in g. Unresolvable targets report ok=false; they are dropped from edge
// lists, never stored dangling.
func resolveTarget(target string, g graph.Graph) (string, bool) {
	if isAbsoluteTarget(target) {
		id := normalizeAbsoluteTarget(target)
		if g.Has(id) {
			return id, true
		}
		return "", false
	}
	return bestCandidate(target, g.IDs())
}

// isAbsoluteTarget reports whether the link names a file by absolute path.
func isAbsoluteTarget(target string) bool {
	t := strings.ReplaceAll(target, "\\", "/")
	if strings.HasPrefix(t, "/") {
		return true
	}
	// Windows drive letter, e.g. C:/notes/a.md.
	return len(t) > 2 && t[1] == ':' && t[2] == '/'
}

// normalizeAbsoluteTarget converts an absolute link target into identifier
// form, appending .md when the target has no extension.
func normalizeAbsoluteTarget(target string) string {
	t := strings.TrimSpace(strings.ReplaceAll(target, "\\", "/"))
	if path.Ext(t) == "" {
		t += ".md"
	}
	return t
}
