package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/hackathon-leaderboard/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the ordering of a view
type SortKey string

const (
	SortByRank   SortKey = "rank"
	SortByName   SortKey = "name"
	SortByPoints SortKey = "points"
)

// FilterKey selects which teams a view keeps
type FilterKey string

const (
	FilterAll      FilterKey = "all"
	FilterTop3     FilterKey = "top3"
	FilterTrending FilterKey = "trending"
)

// ParseSortKey validates a sort key; empty means rank.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortByRank, nil
	case SortByRank, SortByName, SortByPoints:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q", domain.ErrInvalidRequest, s)
	}
}

// ParseFilterKey validates a filter key; empty means all.
func ParseFilterKey(s string) (FilterKey, error) {
	switch k := FilterKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return FilterAll, nil
	case FilterAll, FilterTop3, FilterTrending:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown filter key %q", domain.ErrInvalidRequest, s)
	}
}

// ViewOptions are the display controls applied to the team collection
type ViewOptions struct {
	Search string    `json:"search"`
	Sort   SortKey   `json:"sort"`
	Filter FilterKey `json:"filter"`
}

// Apply is ComputeView with the options unpacked
func (o ViewOptions) Apply(teams []domain.Team) []domain.Team {
	return ComputeView(teams, o.Search, o.Sort, o.Filter)
}

func (f FilterKey) matches(t domain.Team) bool {
	switch f {
	case FilterTop3:
		return t.Rank <= 3
	case FilterTrending:
		return t.Trend == domain.TrendUp
	default:
		return true
	}
}

// ComputeView returns the teams whose name contains searchTerm
// (case-insensitive) and that match filterKey, ordered by sortKey.
// The result is a fresh slice; teams is left untouched.
func ComputeView(teams []domain.Team, searchTerm string, sortKey SortKey, filterKey FilterKey) []domain.Team {
	needle := strings.ToLower(searchTerm)

	view := make([]domain.Team, 0, len(teams))
	for _, t := range teams {
		if !strings.Contains(strings.ToLower(t.Name), needle) {
			continue
		}
		if !filterKey.matches(t) {
			continue
		}
		view = append(view, t.Clone())
	}

	switch sortKey {
	case SortByName:
		// Collators carry scratch buffers and are not safe to share.
		c := collate.New(language.English)
		slices.SortStableFunc(view, func(a, b domain.Team) int {
			return c.CompareString(a.Name, b.Name)
		})
	case SortByPoints:
		slices.SortStableFunc(view, func(a, b domain.Team) int {
			return cmp.Compare(b.Points, a.Points)
		})
	default:
		slices.SortStableFunc(view, func(a, b domain.Team) int {
			return cmp.Compare(a.Rank, b.Rank)
		})
	}
	return view
}
