package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/csvoracle-cli/internal/table"
)

func sampleTable() *table.Table {
	t := table.New("Region", "Revenue", "Units", "OrderDate", "Note")
	rows := [][]string{
		{"north", "1.000,5", "10", "2024-01-02", "first order"},
		{"north", "1.100,0", "11", "2024-01-03", "second"},
		{"south", "900,0", "9", "2024-01-04", "third"},
		{"south", "1.050,0", "", "2024-01-05", "fourth"},
		{"north", "980,0", "10", "2024-01-06", "fifth"},
		{"south", "1.020,0", "10", "2024-01-07", "sixth"},
		{"north", "880,0", "9", "2024-01-08", "seventh"},
		{"south", "970,0", "10", "2024-01-09", "eighth"},
		{"north", "9.000,0", "90", "2024-01-10", "ninth"},
		{"south", "1.010,0", "10", "2024-01-11", "tenth"},
	}
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func findCol(rep *Report, name string) *ColumnSummary {
	for i := range rep.Cols {
		if rep.Cols[i].Name == name {
			return &rep.Cols[i]
		}
	}
	return nil
}

func TestProfileKindsAndStats(t *testing.T) {
	opt := DefaultOptions()
	opt.Name = "sales.zip"
	opt.SampleRows = 3
	rep := Profile(sampleTable(), opt)

	if rep.Rows != 10 || rep.Processed != 10 {
		t.Fatalf("rows=%d processed=%d", rep.Rows, rep.Processed)
	}
	if len(rep.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(rep.Samples))
	}
	want := map[string]string{
		"Region":    "categorical",
		"Revenue":   "numeric",
		"Units":     "numeric",
		"OrderDate": "datetime",
		"Note":      "text",
	}
	for name, kind := range want {
		c := findCol(rep, name)
		if c == nil {
			t.Fatalf("missing column %s", name)
		}
		if c.Kind != kind {
			t.Fatalf("%s: expected %s, got %s", name, kind, c.Kind)
		}
	}
	rev := findCol(rep, "Revenue")
	if rev.Min != 880 || rev.Max != 9000 {
		t.Fatalf("revenue min/max = %v/%v", rev.Min, rev.Max)
	}
	units := findCol(rep, "Units")
	if units.Missing != 1 || units.NonNull != 9 {
		t.Fatalf("units missing=%d nonnull=%d", units.Missing, units.NonNull)
	}
	region := findCol(rep, "Region")
	if len(region.TopValues) != 2 || region.TopValues[0].Count != 5 {
		t.Fatalf("unexpected top values: %+v", region.TopValues)
	}
}

func TestProfileGroupByCorrelationsOutliers(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = []string{"region", "missing"}
	opt.Correlations = true
	opt.Outliers = true
	rep := Profile(sampleTable(), opt)

	if len(rep.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rep.Groups))
	}
	if rep.Groups[0].Key != "Region=north" || rep.Groups[0].Size != 5 {
		t.Fatalf("unexpected first group: %+v", rep.Groups[0])
	}
	if _, ok := rep.Groups[0].Metrics["Revenue"]; !ok {
		t.Fatalf("group metrics missing Revenue")
	}
	if rep.Corr == nil || len(rep.Corr.Columns) != 2 {
		t.Fatalf("expected 2x2 correlation matrix, got %+v", rep.Corr)
	}
	if r := rep.Corr.Values[0][1]; r < 0.99 || r > 1 || math.IsNaN(r) {
		t.Fatalf("revenue/units should correlate strongly, got %v", r)
	}
	rev := findCol(rep, "Revenue")
	if rev.OutliersCount != 1 {
		t.Fatalf("expected one revenue outlier, got %d", rev.OutliersCount)
	}
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], `"missing"`) {
		t.Fatalf("expected warning for unknown group column, got %v", rep.Warnings)
	}
}

func TestProfileMaxRows(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 4
	rep := Profile(sampleTable(), opt)
	if rep.Processed != 4 || rep.Rows != 10 {
		t.Fatalf("processed=%d rows=%d", rep.Processed, rep.Rows)
	}
	md := rep.Markdown()
	if !strings.Contains(md, "Rows: ~10 (processed 4)") {
		t.Fatalf("markdown missing row note: %s", md)
	}
}

func TestProfileNilTable(t *testing.T) {
	rep := Profile(nil, DefaultOptions())
	if rep.Rows != 0 || len(rep.Cols) != 0 {
		t.Fatalf("expected empty report, got %+v", rep)
	}
}

func TestMarkdownSections(t *testing.T) {
	opt := DefaultOptions()
	opt.Name = "sales.zip"
	opt.GroupBy = []string{"Region"}
	opt.Correlations = true
	opt.Outliers = true
	md := Profile(sampleTable(), opt).Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"Source: sales.zip",
		"Rows: 10",
		"[SCHEMA]",
		"- Revenue: numeric",
		"outliers: 1 above |z|>3.5",
		"- Region: categorical",
		"top: north(5), south(5)",
		"[GROUP-BY SUMMARY]",
		"[CORRELATIONS]",
		"- Revenue ~ Units: r=",
		"[HEAD AND SAMPLE ROWS]",
		"| Region | Revenue |",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		dec  rune
		want float64
		ok   bool
	}{
		{"1.234,5", 0, 1234.5, true},
		{"1,234.5", 0, 1234.5, true},
		{"12,5", 0, 12.5, true},
		{"42%", 0, 42, true},
		{"1e3", 0, 1000, true},
		{"1.000", ',', 1000, true},
		{"abc", 0, 0, false},
		{"2024-01-02", 0, 0, false},
	}
	for _, c := range cases {
		got, ok := parseNumeric(c.in, c.dec)
		if ok != c.ok || (ok && math.Abs(got-c.want) > 1e-9) {
			t.Fatalf("parseNumeric(%q)=%v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}
