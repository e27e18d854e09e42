package layout

import (
	"math"
	"sort"
	"strings"
)

// Row is one visual table line: fragments sharing an approximate y.
type Row struct {
	Y         float64
	Fragments []TextFragment
}

// Text joins the row's fragments left to right.
func (r Row) Text() string {
	parts := make([]string, 0, len(r.Fragments))
	for _, f := range r.Fragments {
		if t := strings.TrimSpace(f.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// DataFragments returns the fragments strictly below the header line. The
// header row itself and anything within rowTolerance of it are excluded.
func DataFragments(fragments []TextFragment, headerY, rowTolerance float64) []TextFragment {
	if math.IsInf(headerY, 1) {
		return fragments
	}
	out := make([]TextFragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Y < headerY-rowTolerance {
			out = append(out, f)
		}
	}
	return out
}

type bucket struct {
	key       float64
	fragments []TextFragment
}

// GroupRows clusters fragments into rows. A fragment joins the first existing
// bucket whose key is within rowTolerance; buckets are scanned in creation
// order, so assignment depends on fragment order (not nearest-neighbour).
// Fragments in a row are x-ascending; rows are y-descending.
func GroupRows(fragments []TextFragment, rowTolerance float64) []Row {
	buckets := make([]*bucket, 0)

	for _, f := range fragments {
		var target *bucket
		for _, b := range buckets {
			diff := math.Abs(f.Y - b.key)
			if diff < rowTolerance || diff == 0 {
				target = b
				break
			}
		}
		if target == nil {
			target = &bucket{key: f.Y}
			buckets = append(buckets, target)
		}
		target.fragments = append(target.fragments, f)
	}

	rows := make([]Row, 0, len(buckets))
	for _, b := range buckets {
		frags := b.fragments
		sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })
		rows = append(rows, Row{Y: b.key, Fragments: frags})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Y > rows[j].Y })
	return rows
}

// PageRows runs boundary resolution and row grouping for one page.
func PageRows(fragments []TextFragment, spec Spec, rowTolerance float64) (BoundarySet, []Row) {
	set := ResolveBoundaries(fragments, spec)
	data := DataFragments(fragments, set.HeaderY, rowTolerance)
	return set, GroupRows(data, rowTolerance)
}
