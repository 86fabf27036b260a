// Package viz renders tuning results for the terminal.
//
//   - [Plot] and [PlotMany]: line charts of score histories and step
//     responses, downsampled to the chart width
//   - [ProgressBar] and [Sparkline]: one-line progress while a run is going
//   - [Table] and [MetricFamilies]: aligned tables for reports and the
//     gathered optimizer metrics
//
// Styles are plain lipgloss styles; output written to a non-terminal drops
// the colors.
package viz
