package review

import (
	"cmp"
	"fmt"
	"slices"
)

// Filter selects reviews by resolution state.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterOpen     Filter = "open"
	FilterResolved Filter = "resolved"
)

// SortBy orders a review list.
type SortBy string

const (
	SortDate     SortBy = "date"
	SortPriority SortBy = "priority"
	SortCategory SortBy = "category"
)

// ParseFilter maps "" to FilterAll and rejects unknown values.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterOpen, FilterResolved:
		return f, nil
	}
	return "", fmt.Errorf("review: unknown filter %q", s)
}

// ParseSort maps "" to SortDate and rejects unknown values.
func ParseSort(s string) (SortBy, error) {
	switch b := SortBy(s); b {
	case "":
		return SortDate, nil
	case SortDate, SortPriority, SortCategory:
		return b, nil
	}
	return "", fmt.Errorf("review: unknown sort %q", s)
}

// Apply filters then sorts rs without modifying it. Date sorts newest
// first; priority sorts high first; category sorts alphabetically. Ties
// keep insertion order.
func Apply(rs []Review, f Filter, by SortBy) []Review {
	out := make([]Review, 0, len(rs))
	for _, r := range rs {
		switch {
		case f == FilterOpen && r.Resolved, f == FilterResolved && !r.Resolved:
			continue
		}
		out = append(out, r)
	}

	switch by {
	case SortPriority:
		slices.SortStableFunc(out, func(a, b Review) int { return cmp.Compare(a.Priority.rank(), b.Priority.rank()) })
	case SortCategory:
		slices.SortStableFunc(out, func(a, b Review) int { return cmp.Compare(a.Category, b.Category) })
	default:
		slices.SortStableFunc(out, func(a, b Review) int { return b.Created.Compare(a.Created) })
	}
	return out
}

// Counts returns how many reviews are open and resolved.
func Counts(rs []Review) (open, resolved int) {
	for _, r := range rs {
		if r.Resolved {
			resolved++
		} else {
			open++
		}
	}
	return open, resolved
}
