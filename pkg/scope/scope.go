// Package scope narrows list and aggregate queries to the caller's region.
//
// Every collection query in the admin dashboard goes through a Filter
// built from the caller's resolved profile. Holders of the top-scope role
// get an unrestricted filter; everyone else is pinned to their own region.
// The free-text search predicate composes with the region predicate and
// can only ever narrow the result set further, never widen it.
package scope

import (
	"fmt"
	"strings"

	"github.com/harborlight/beacon/pkg/auth"
)

// Filter restricts a collection query to the caller's visibility.
type Filter struct {
	// Restricted pins the query to Region. An unrestricted filter is
	// only ever produced for the top-scope role.
	Restricted bool
	// Region is the single region a restricted caller may observe.
	Region string
	// Search is an optional case-insensitive substring match applied
	// across the collection's searchable columns.
	Search string
}

// Unrestricted returns a filter with no region restriction.
func Unrestricted() Filter {
	return Filter{}
}

// ForRole builds the filter for a caller's role and region. Region-scoped
// roles are pinned to their region; a region-scoped caller with no region
// assigned matches nothing (fail closed). Unrecognized roles are treated
// the same way.
func ForRole(role auth.Role, region *string) Filter {
	if role == auth.RoleSuperAdmin {
		return Unrestricted()
	}
	f := Filter{Restricted: true}
	if region != nil {
		f.Region = *region
	}
	return f
}

// WithSearch returns a copy of the filter carrying a search term.
func (f Filter) WithSearch(term string) Filter {
	f.Search = strings.TrimSpace(term)
	return f
}

// Clause renders the filter as SQL predicates to append to a WHERE
// clause, with placeholders numbered from start. searchCols are the
// columns the search term matches against. Both predicates are ANDed:
// the search can never read across the region boundary.
func (f Filter) Clause(start int, searchCols ...string) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}
	n := start

	if f.Restricted {
		sb.WriteString(fmt.Sprintf(" AND region = $%d", n))
		args = append(args, f.Region)
		n++
	}

	if f.Search != "" && len(searchCols) > 0 {
		pattern := "%" + escapeLike(f.Search) + "%"
		preds := make([]string, len(searchCols))
		for i, col := range searchCols {
			preds[i] = fmt.Sprintf("%s ILIKE $%d", col, n)
		}
		sb.WriteString(" AND (" + strings.Join(preds, " OR ") + ")")
		args = append(args, pattern)
		n++
	}

	return sb.String(), args
}

// NextArg returns the placeholder number following the filter's own
// arguments, for callers appending further predicates.
func (f Filter) NextArg(start int) int {
	if f.Restricted {
		start++
	}
	if f.Search != "" {
		start++
	}
	return start
}

// escapeLike escapes LIKE metacharacters so a search term is always
// matched literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
