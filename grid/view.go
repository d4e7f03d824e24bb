package grid

import (
	"sort"
	"strings"
)

// DefaultPageSize matches the page length of the barstock table.
const DefaultPageSize = 20

// View selects which rows are visible and in what order.
type View struct {
	SortKey  string
	Desc     bool
	Filter   string
	Page     int
	PageSize int
}

// Window is the visible slice of a View. Handles stay valid across sorting,
// filtering and paging.
type Window struct {
	Handles []string
	Page    int
	Pages   int
	Total   int
}

// Window computes the rows visible under v. Page is clamped into range.
func (c *Controller) Window(v View) Window {
	size := v.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	matched := make([]*Row, 0, len(c.rows))
	needle := strings.ToLower(strings.TrimSpace(v.Filter))
	for _, r := range c.rows {
		if needle == "" || c.rowMatches(r, needle) {
			matched = append(matched, r)
		}
	}

	if col, ok := c.Column(v.SortKey); ok {
		rank := c.ranker(col)
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i].Get(col.Key), matched[j].Get(col.Key)
			if v.Desc {
				return rank(b, a)
			}
			return rank(a, b)
		})
	}

	w := Window{Total: len(matched)}
	w.Pages = (len(matched) + size - 1) / size
	if w.Pages == 0 {
		w.Pages = 1
	}
	w.Page = v.Page
	if w.Page >= w.Pages {
		w.Page = w.Pages - 1
	}
	if w.Page < 0 {
		w.Page = 0
	}
	start := w.Page * size
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	for _, r := range matched[start:end] {
		w.Handles = append(w.Handles, r.Handle)
	}
	return w
}

func (c *Controller) rowMatches(r *Row, needle string) bool {
	for _, col := range c.cfg.Columns {
		if strings.Contains(strings.ToLower(FormatCell(r.Get(col.Key), col.Format)), needle) {
			return true
		}
	}
	return false
}

// ranker orders values of one column: list columns by option order, numbers
// numerically, everything else case-insensitively. Empty values sort last.
func (c *Controller) ranker(col Column) func(a, b any) bool {
	if l, ok := col.Editor.(ListEditor); ok {
		order := make(map[string]int, len(l.Options))
		for i, o := range l.Options {
			order[o.Value] = i
		}
		pos := func(v any) int {
			if i, ok := order[ValueString(v)]; ok {
				return i
			}
			return len(order)
		}
		return func(a, b any) bool { return pos(a) < pos(b) }
	}
	return func(a, b any) bool {
		if isEmpty(a) != isEmpty(b) {
			return isEmpty(b)
		}
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		if okA && okB {
			return fa < fb
		}
		return strings.ToLower(ValueString(a)) < strings.ToLower(ValueString(b))
	}
}
