package services

import "sort"

type AssignmentDiff struct {
	Kept    []string
	Added   []string
	Removed []string
}

// DiffAssignees partitions previous and requested into kept, added and
// removed user ids. Each list is de-duplicated and sorted.
func DiffAssignees(previous, requested []string) AssignmentDiff {
	prev := make(map[string]bool, len(previous))
	for _, id := range previous {
		prev[id] = true
	}
	req := make(map[string]bool, len(requested))
	for _, id := range requested {
		req[id] = true
	}

	var diff AssignmentDiff
	for id := range req {
		if prev[id] {
			diff.Kept = append(diff.Kept, id)
		} else {
			diff.Added = append(diff.Added, id)
		}
	}
	for id := range prev {
		if !req[id] {
			diff.Removed = append(diff.Removed, id)
		}
	}
	sort.Strings(diff.Kept)
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	return diff
}

// FilterKnown keeps the ids present in known, preserving order and
// dropping duplicates.
func FilterKnown(requested []string, known map[string]bool) []string {
	out := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
