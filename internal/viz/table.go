package viz

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	dto "github.com/prometheus/client_model/go"
)

// Table writes rows under headers, aligned on tabs.
func Table(out io.Writer, headers []string, rows [][]string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// MetricFamilies writes one row per gathered metric: name, labels and
// value. Histograms report their sample count and sum.
func MetricFamilies(out io.Writer, families []*dto.MetricFamily) error {
	var rows [][]string
	for _, f := range families {
		for _, m := range f.GetMetric() {
			rows = append(rows, []string{f.GetName(), labels(m), metricValue(f.GetType(), m)})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})
	return Table(out, []string{"METRIC", "LABELS", "VALUE"}, rows)
}

func labels(m *dto.Metric) string {
	pairs := make([]string, 0, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		pairs = append(pairs, l.GetName()+"="+l.GetValue())
	}
	return strings.Join(pairs, ",")
}

func metricValue(t dto.MetricType, m *dto.Metric) string {
	switch t {
	case dto.MetricType_COUNTER:
		return fmt.Sprintf("%g", m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		return fmt.Sprintf("%g", m.GetGauge().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%.4g", h.GetSampleCount(), h.GetSampleSum())
	case dto.MetricType_SUMMARY:
		s := m.GetSummary()
		return fmt.Sprintf("count=%d sum=%.4g", s.GetSampleCount(), s.GetSampleSum())
	}
	return fmt.Sprintf("%g", m.GetUntyped().GetValue())
}
