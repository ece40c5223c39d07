// Package analysis profiles the combined table: inferred column kinds,
// numeric statistics, top categories, optional group-by and correlations.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/csvoracle-cli/internal/table"
)

// Options controls profiling.
type Options struct {
	// Name labels the report, usually the archive name.
	Name string
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// GroupBy computes per-group summaries for the given column names.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). Counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
	// DecimalSeparator forces ',' or '.'; 0 auto-detects per value.
	DecimalSeparator rune
}

// DefaultOptions returns reasonable defaults for profiling.
func DefaultOptions() Options {
	return Options{MaxRows: 100000, SampleRows: 5}
}

// Report is a markdown-friendly profile of the combined table.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Samples   [][]string
	Warnings  []string
	Groups    []GroupResult
	Corr      *CorrMatrix
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text|empty
	NonNull int
	Missing int
	Unique  int
	Min     float64
	Max     float64
	Mean    float64
	Std     float64

	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64

	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult captures numeric means per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64
}

type colAcc struct {
	name   string
	nonNil int
	miss   int
	// Welford
	n      int
	mean   float64
	m2     float64
	min    float64
	max    float64
	numCnt int
	dtCnt  int
	txtCnt int
	cats   map[string]int
	exText []string
	nums   []float64
}

type groupAcc struct {
	size int
	sum  map[int]float64
	cnt  map[int]int
	min  map[int]float64
	max  map[int]float64
}

// Profile summarizes t. A nil or column-less table yields an empty report.
func Profile(t *table.Table, opt Options) *Report {
	rep := &Report{Name: opt.Name}
	if t == nil || len(t.Columns) == 0 {
		return rep
	}
	ncol := len(t.Columns)
	cols := make([]*colAcc, ncol)
	byName := map[string]int{}
	for i, c := range t.Columns {
		cols[i] = &colAcc{name: c, min: math.Inf(1), max: math.Inf(-1), cats: map[string]int{}}
		byName[strings.ToLower(c)] = i
	}
	var gbIdx []int
	for _, g := range opt.GroupBy {
		if idx, ok := byName[strings.ToLower(strings.TrimSpace(g))]; ok {
			gbIdx = append(gbIdx, idx)
		} else {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("group-by column %q not found", g))
		}
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}
	groups := map[string]*groupAcc{}
	rowNums := make([][]float64, 0)
	numMask := make([][]bool, 0)

	rep.Rows = t.Len()
	for _, rec := range t.Rows {
		if rep.Processed >= maxRows {
			break
		}
		rep.Processed++
		if len(rep.Samples) < sampleRows {
			rep.Samples = append(rep.Samples, rec)
		}

		var gkey string
		if len(gbIdx) > 0 {
			parts := make([]string, 0, len(gbIdx))
			for _, idx := range gbIdx {
				parts = append(parts, fmt.Sprintf("%s=%s", cols[idx].name, safeVal(strings.TrimSpace(rec[idx]))))
			}
			gkey = strings.Join(parts, " | ")
			ga := groups[gkey]
			if ga == nil {
				ga = &groupAcc{sum: map[int]float64{}, cnt: map[int]int{}, min: map[int]float64{}, max: map[int]float64{}}
				groups[gkey] = ga
			}
			ga.size++
		}

		var nums []float64
		var mask []bool
		if opt.Correlations {
			nums = make([]float64, ncol)
			mask = make([]bool, ncol)
		}
		for j, raw := range rec {
			v := strings.TrimSpace(raw)
			c := cols[j]
			if v == "" {
				c.miss++
				continue
			}
			c.nonNil++
			if x, ok := parseNumeric(v, opt.DecimalSeparator); ok {
				c.numCnt++
				c.n++
				c.min = math.Min(c.min, x)
				c.max = math.Max(c.max, x)
				delta := x - c.mean
				c.mean += delta / float64(c.n)
				c.m2 += delta * (x - c.mean)
				if opt.Outliers {
					c.nums = append(c.nums, x)
				}
				if nums != nil {
					nums[j], mask[j] = x, true
				}
				if gkey != "" {
					ga := groups[gkey]
					ga.sum[j] += x
					ga.cnt[j]++
					if cur, ok := ga.min[j]; !ok || x < cur {
						ga.min[j] = x
					}
					if cur, ok := ga.max[j]; !ok || x > cur {
						ga.max[j] = x
					}
				}
				continue
			}
			if _, ok := table.ParseTime(v); ok {
				c.dtCnt++
				continue
			}
			c.txtCnt++
			if len(c.cats) <= 10000 && len(v) <= 64 {
				c.cats[v]++
			}
			if len(c.exText) < 3 {
				c.exText = append(c.exText, v)
			}
		}
		if nums != nil {
			rowNums = append(rowNums, nums)
			numMask = append(numMask, mask)
		}
	}

	var numCols []int
	rep.Cols = make([]ColumnSummary, 0, ncol)
	for idx, c := range cols {
		s := ColumnSummary{Name: c.name, NonNull: c.nonNil, Missing: c.miss, Kind: "empty"}
		switch {
		case c.numCnt > 0 && c.numCnt >= c.dtCnt && c.numCnt >= c.txtCnt:
			s.Kind = "numeric"
			s.Min, s.Max, s.Mean = c.min, c.max, c.mean
			if c.n > 1 {
				s.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			numCols = append(numCols, idx)
			if opt.Outliers && len(c.nums) >= 8 {
				applyOutliers(&s, c.nums, opt.OutlierThreshold)
			}
		case c.dtCnt > 0 && c.dtCnt >= c.txtCnt:
			s.Kind = "datetime"
		case len(c.cats) > 0 && len(c.cats) < c.txtCnt:
			s.Kind = "categorical"
			s.TopValues = topValues(c.cats, 8)
			s.Unique = len(c.cats)
		case c.txtCnt > 0:
			s.Kind = "text"
			s.ExampleTexts = c.exText
			s.Unique = len(c.cats)
		}
		rep.Cols = append(rep.Cols, s)
	}
	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}
	rep.Groups = buildGroups(groups, numCols, cols)
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = correlate(numCols, cols, rowNums, numMask)
	}
	return rep
}

func applyOutliers(s *ColumnSummary, vals []float64, thr float64) {
	if thr <= 0 {
		thr = 3.5
	}
	median, mad := medianMAD(vals)
	s.OutlierThreshold = thr
	if mad == 0 {
		return
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			s.OutliersCount++
		}
		if az > s.OutliersMaxAbsZ {
			s.OutliersMaxAbsZ = az
		}
	}
}

func topValues(cats map[string]int, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

func buildGroups(groups map[string]*groupAcc, numCols []int, cols []*colAcc) []GroupResult {
	if len(groups) == 0 {
		return nil
	}
	out := make([]GroupResult, 0, len(groups))
	for k, ga := range groups {
		gr := GroupResult{Key: k, Size: ga.size, Metrics: map[string]NumSummary{}}
		for _, idx := range numCols {
			if ga.cnt[idx] == 0 {
				continue
			}
			gr.Metrics[cols[idx].name] = NumSummary{
				Count: ga.cnt[idx],
				Min:   ga.min[idx],
				Max:   ga.max[idx],
				Mean:  ga.sum[idx] / float64(ga.cnt[idx]),
			}
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

// correlate computes pairwise Pearson r over rows where both values parse.
func correlate(numCols []int, cols []*colAcc, rows [][]float64, mask [][]bool) *CorrMatrix {
	n := len(numCols)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for i, idx := range numCols {
		m.Columns[i] = cols[idx].name
		m.Values[i] = make([]float64, n)
		m.Values[i][i] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			ia, ib := numCols[a], numCols[b]
			var cnt, sx, sy, sxx, syy, sxy float64
			for r := range rows {
				if !mask[r][ia] || !mask[r][ib] {
					continue
				}
				x, y := rows[r][ia], rows[r][ib]
				cnt++
				sx += x
				sy += y
				sxx += x * x
				syy += y * y
				sxy += x * y
			}
			var r float64
			if cnt >= 2 {
				if denom := math.Sqrt((cnt*sxx - sx*sx) * (cnt*syy - sy*sy)); denom != 0 {
					r = (cnt*sxy - sx*sy) / denom
				}
			}
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = 0
			}
			r = math.Max(-1, math.Min(1, r))
			m.Values[a][b], m.Values[b][a] = r, r
		}
	}
	return m
}

// parseNumeric accepts plain numbers, percentages and locale-formatted
// values such as "1.234,5" or "1,234.5".
func parseNumeric(s string, dec rune) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	raw = strings.TrimSuffix(raw, "%")
	var thou rune
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
