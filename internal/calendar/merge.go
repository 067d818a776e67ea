package calendar

import (
	"sort"

	"github.com/digitalnextlvl/agenda/internal/store"
)

// Merge projects the two source collections into one timeline sorted
// ascending by start. The sort is stable, so local events precede external
// ones when starts are equal (construction order).
func Merge(local []store.LocalEvent, external []ExternalEvent) []UnifiedEvent {
	unified := make([]UnifiedEvent, 0, len(local)+len(external))
	for _, e := range local {
		unified = append(unified, UnifiedFromLocal(e))
	}
	for _, e := range external {
		unified = append(unified, UnifiedFromExternal(e))
	}

	sort.SliceStable(unified, func(i, j int) bool {
		return unified[i].StartsAt.Before(unified[j].StartsAt)
	})
	return unified
}
