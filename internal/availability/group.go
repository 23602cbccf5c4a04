package availability

// IndexedSlot pairs a slot with its position in the full candidate list, so
// a selection made on any page resolves against the same list.
type IndexedSlot struct {
	Index int
	Slot  Slot
}

// DateGroup holds the slots of one calendar day.
type DateGroup struct {
	DateLabel    string
	WeekdayLabel string
	Slots        []IndexedSlot
}

// PageView is one page of date groups.
type PageView struct {
	Groups     []DateGroup
	Page       int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// DatesPerPage is the number of dates shown per page of the slot picker.
const DatesPerPage = 3

// GroupByDate groups chronologically ordered slots by date label, keeping
// order.
func GroupByDate(slots []Slot) []DateGroup {
	var groups []DateGroup
	for i, s := range slots {
		if n := len(groups); n == 0 || groups[n-1].DateLabel != s.DateLabel {
			groups = append(groups, DateGroup{DateLabel: s.DateLabel, WeekdayLabel: s.WeekdayLabel})
		}
		last := &groups[len(groups)-1]
		last.Slots = append(last.Slots, IndexedSlot{Index: i, Slot: s})
	}
	return groups
}

// Paginate returns the requested page of dates. Out-of-range pages are
// clamped.
func Paginate(slots []Slot, page, perPage int) PageView {
	if perPage <= 0 {
		perPage = DatesPerPage
	}
	groups := GroupByDate(slots)
	total := (len(groups) + perPage - 1) / perPage
	if total == 0 {
		return PageView{}
	}
	if page < 0 {
		page = 0
	}
	if page >= total {
		page = total - 1
	}
	from := page * perPage
	to := from + perPage
	if to > len(groups) {
		to = len(groups)
	}
	return PageView{
		Groups:     groups[from:to],
		Page:       page,
		TotalPages: total,
		HasPrev:    page > 0,
		HasNext:    page < total-1,
	}
}
