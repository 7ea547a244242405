package availability

import (
	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

// Index groups the busy intervals of the day by staff member.
type Index struct {
	busy map[string][]clock.Interval
}

func NewIndex(conflicts []model.Conflict) *Index {
	idx := &Index{busy: make(map[string][]clock.Interval)}
	for _, c := range conflicts {
		idx.busy[c.StaffID] = append(idx.busy[c.StaffID], c.Interval())
	}
	return idx
}

// Free reports whether staffID has no reservation overlapping iv.
func (idx *Index) Free(staffID string, iv clock.Interval) bool {
	for _, b := range idx.busy[staffID] {
		if b.Overlaps(iv) {
			return false
		}
	}
	return true
}
