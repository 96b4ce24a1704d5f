package dynatrace

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MetricLine is one data point in the metric ingestion line protocol
type MetricLine struct {
	MetricID   string
	Dimensions map[string]string
	Value      float64
	// Timestamp in epoch milliseconds; zero lets the server stamp the line.
	Timestamp int64
}

// String renders metric.id,dim=value value [timestamp]. Dimensions are sorted by key.
func (l MetricLine) String() string {
	var b strings.Builder
	b.WriteString(l.MetricID)

	keys := make([]string, 0, len(l.Dimensions))
	for k := range l.Dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(',')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quoteDimensionValue(l.Dimensions[k]))
	}

	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(l.Value, 'f', -1, 64))
	if l.Timestamp > 0 {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(l.Timestamp, 10))
	}
	return b.String()
}

// Validate checks the parts the server would otherwise reject line by line.
func (l MetricLine) Validate() error {
	if l.MetricID == "" {
		return fmt.Errorf("metric key is required")
	}
	if strings.ContainsAny(l.MetricID, " ,=\"\n") {
		return fmt.Errorf("metric key %q contains a space, comma, equals sign, quote or newline", l.MetricID)
	}
	if math.IsNaN(l.Value) || math.IsInf(l.Value, 0) {
		return fmt.Errorf("metric %s: value must be a finite number", l.MetricID)
	}
	for k, v := range l.Dimensions {
		if k == "" || strings.ContainsAny(k, " ,=\"\n") {
			return fmt.Errorf("metric %s: invalid dimension key %q", l.MetricID, k)
		}
		if strings.Contains(v, "\n") {
			return fmt.Errorf("metric %s: dimension %s value contains a newline", l.MetricID, k)
		}
	}
	return nil
}

// EncodeMetricLines validates lines and joins them with newlines.
func EncodeMetricLines(lines []MetricLine) ([]byte, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("at least one metric line is required")
	}
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, l.String())
	}
	return []byte(strings.Join(out, "\n")), nil
}

func quoteDimensionValue(v string) string {
	if !strings.ContainsAny(v, " ,=\"\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}
