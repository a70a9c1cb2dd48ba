package comdat

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/objtools/objtools/internal/md5sum"
)

// similarityRadius is the Euclidean distance, in (log10 largest, log10
// instances) space, below which two points are considered duplicates of
// each other for reporting purposes.
const similarityRadius = 0.05

// Point is one surviving COMDAT report row.
type Point struct {
	Largest   uint64
	Instances uint32
	Wasted    uint64
}

// Report is the full COMDAT report builder output.
type Report struct {
	RunDigest    md5sum.Digest
	FilteredN    int
	TrimmedM     int
	Points       []Point
	ActualTotal  uint64
	WastedTotal  uint64
}

// Build runs the filter -> sort -> similarity-trim pipeline over the
// aggregation snapshot. The header computation (run digest), filtering,
// and trim are independent of each other and could run concurrently;
// Build itself is the sequential reference composition, since none of
// the three steps is expensive enough on its own input sizes to be
// worth a goroutine fan-out here.
func Build(entries map[string]Entry, runDigest md5sum.Digest) Report {
	var actualTotal, wastedOverall uint64
	surviving := make([]Point, 0, len(entries))
	filtered := 0
	for _, e := range entries {
		actualTotal += e.TotalSize
		wastedOverall += e.TotalSize - e.Largest
		if e.Instances <= 1 {
			filtered++
			continue
		}
		surviving = append(surviving, Point{Largest: e.Largest, Instances: e.Instances, Wasted: e.TotalSize - e.Largest})
	}

	sortPoints(surviving)
	trimmed, removed := similarityTrim(surviving)

	return Report{
		RunDigest:   runDigest,
		FilteredN:   filtered,
		TrimmedM:    removed,
		Points:      trimmed,
		ActualTotal: actualTotal,
		WastedTotal: wastedOverall,
	}
}

// sortPoints orders points ascending by (largest, instances, wasted),
// the lexicographic sort law build_output_vector requires.
func sortPoints(points []Point) {
	sort.Slice(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.Largest != b.Largest {
			return a.Largest < b.Largest
		}
		if a.Instances != b.Instances {
			return a.Instances < b.Instances
		}
		return a.Wasted < b.Wasted
	})
}

// similarityTrim folds near-duplicate points together: for each outer
// point, scan the remaining tail; any tail point within similarityRadius
// of the outer point in log-space has its wasted value folded into the
// outer point (keeping the max), and is then removed from further
// consideration by swapping it past the scan boundary. The swap moves
// the last tail point into the removed point's slot, so the surviving
// points are not guaranteed to stay in sorted order; Build does not
// re-sort them after trimming.
func similarityTrim(points []Point) ([]Point, int) {
	n := len(points)
	removed := 0
	boundary := n
	for i := 0; i < boundary; i++ {
		outer := points[i]
		lx, ly := logPosition(outer)
		j := i + 1
		for j < boundary {
			tx, ty := logPosition(points[j])
			if euclidean(lx, ly, tx, ty) < similarityRadius {
				if points[j].Wasted > outer.Wasted {
					outer.Wasted = points[j].Wasted
				}
				boundary--
				points[j], points[boundary] = points[boundary], points[j]
				removed++
				continue
			}
			j++
		}
		points[i] = outer
	}
	return points[:boundary], removed
}

func logPosition(p Point) (float64, float64) {
	return log10OrZero(float64(p.Largest)), log10OrZero(float64(p.Instances))
}

func log10OrZero(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log10(v)
}

func euclidean(x1, y1, x2, y2 float64) float64 {
	dx, dy := x1-x2, y1-y2
	return math.Sqrt(dx*dx + dy*dy)
}

// Write renders the report in the exact textual format the wasted-bytes
// report prescribes. verbose annotates totals with humanize.Bytes for
// operators reading the report interactively; the machine-readable
// numeric columns are unaffected.
func Write(w io.Writer, r Report, verbose bool) error {
	if _, err := fmt.Fprintf(w, "# MD5: %s\n", r.RunDigest.Hex()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# Filtered %d COMDATs with 1 instance\n", r.FilteredN); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# Then trimmed %d similar points\n", r.TrimmedM); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# Result has %d points\n", len(r.Points)); err != nil {
		return err
	}

	if verbose {
		if _, err := fmt.Fprintf(w, "#> Total:%d (%s)\n", r.ActualTotal, humanize.Bytes(r.ActualTotal)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "#> Wasted:%d (%s)\n", r.WastedTotal, humanize.Bytes(r.WastedTotal)); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, "#> Total:%d\n", r.ActualTotal); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "#> Wasted:%d\n", r.WastedTotal); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, "Size Instances Total"); err != nil {
		return err
	}
	for _, p := range r.Points {
		if _, err := fmt.Fprintf(w, "%d %d %d\n", p.Largest, p.Instances, p.Wasted); err != nil {
			return err
		}
	}
	return nil
}
