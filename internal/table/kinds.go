package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindEmpty Kind = iota
	KindInt
	KindFloat
	KindBool
	KindDatetime
	KindText
)

// Dtype returns the dataframe-style dtype label used in Info.
func (k Kind) Dtype() string {
	switch k {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	case KindBool:
		return "bool"
	case KindDatetime:
		return "datetime64"
	default:
		return "object"
	}
}

// SQLType returns the SQLite column affinity for the kind.
func (k Kind) SQLType() string {
	switch k {
	case KindInt, KindBool:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseTime tries the common date layouts seen in exported CSVs.
func ParseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseBool accepts true/false in any case; 0/1 are left to the int kind.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// InferKind picks the narrowest kind that every non-empty value satisfies.
// Mixed columns are text, which matches how a dataframe falls back to object.
func InferKind(values []string) Kind {
	isInt, isFloat, isBool, isTime := true, true, true, true
	seen := false
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := ParseBool(v); !ok {
				isBool = false
			}
		}
		if isTime {
			if _, ok := ParseTime(v); !ok {
				isTime = false
			}
		}
		if !isInt && !isFloat && !isBool && !isTime {
			return KindText
		}
	}
	switch {
	case !seen:
		return KindEmpty
	case isInt:
		return KindInt
	case isFloat:
		return KindFloat
	case isBool:
		return KindBool
	case isTime:
		return KindDatetime
	}
	return KindText
}

// InferKinds returns one Kind per column.
func (t *Table) InferKinds() []Kind {
	kinds := make([]Kind, len(t.Columns))
	col := make([]string, len(t.Rows))
	for i := range t.Columns {
		for r, row := range t.Rows {
			col[r] = row[i]
		}
		kinds[i] = InferKind(col)
	}
	return kinds
}

// Info summarizes the schema: index range, non-null counts and dtypes.
func (t *Table) Info() string {
	var b strings.Builder
	b.WriteString("<table.Table>\n")
	n := t.Len()
	if n == 0 {
		b.WriteString("RangeIndex: 0 entries\n")
	} else {
		fmt.Fprintf(&b, "RangeIndex: %d entries, 0 to %d\n", n, n-1)
	}
	fmt.Fprintf(&b, "Data columns (total %d columns):\n", len(t.Columns))

	kinds := t.InferKinds()
	nameW := len("Column")
	for _, c := range t.Columns {
		if len(c) > nameW {
			nameW = len(c)
		}
	}
	fmt.Fprintf(&b, " %-3s %-*s  %-14s  %s\n", "#", nameW, "Column", "Non-Null Count", "Dtype")
	fmt.Fprintf(&b, " %-3s %-*s  %-14s  %s\n", "---", nameW, "------", "--------------", "-----")
	counts := map[string]int{}
	for i, c := range t.Columns {
		nonNull := 0
		for _, r := range t.Rows {
			if strings.TrimSpace(r[i]) != "" {
				nonNull++
			}
		}
		dt := kinds[i].Dtype()
		// a column with any missing int becomes float in a dataframe
		if kinds[i] == KindInt && nonNull < n {
			dt = KindFloat.Dtype()
		}
		counts[dt]++
		fmt.Fprintf(&b, " %-3d %-*s  %-14s  %s\n", i, nameW, c, fmt.Sprintf("%d non-null", nonNull), dt)
	}
	var parts []string
	for _, dt := range []string{"bool", "datetime64", "float64", "int64", "object"} {
		if counts[dt] > 0 {
			parts = append(parts, fmt.Sprintf("%s(%d)", dt, counts[dt]))
		}
	}
	fmt.Fprintf(&b, "dtypes: %s\n", strings.Join(parts, ", "))
	return b.String()
}
