// Package report renders learning curves of one or more training runs as
// an HTML page.
package report

import (
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"

	"blockdodge-rl/internal/statslog"
)

// Series is the logged history of one experiment.
type Series struct {
	Name string
	Rows []statslog.Row
}

// LearningCurves writes a page with running reward, episode length and loss
// charts, one line per series.
func LearningCurves(w io.Writer, title string, series []Series) error {
	if len(series) == 0 {
		return errors.New("no series to plot")
	}
	episodes := xAxis(series)
	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(
		lineChart(title+": running reward", episodes, series, func(r statslog.Row) float64 { return r.TotalReward }),
		lineChart(title+": episode length", episodes, series, func(r statslog.Row) float64 { return float64(r.EpisodeLength) }),
		lineChart(title+": loss", episodes, series, func(r statslog.Row) float64 { return r.Loss }),
	)
	return errors.Wrap(page.Render(w), "render learning curves")
}

func xAxis(series []Series) []string {
	var longest []statslog.Row
	for _, s := range series {
		if len(s.Rows) > len(longest) {
			longest = s.Rows
		}
	}
	episodes := make([]string, 0, len(longest))
	for _, r := range longest {
		episodes = append(episodes, strconv.Itoa(r.Episode))
	}
	return episodes
}

func lineChart(title string, episodes []string, series []Series, value func(statslog.Row) float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
	)
	line.SetXAxis(episodes)
	for _, s := range series {
		items := make([]opts.LineData, 0, len(s.Rows))
		for _, r := range s.Rows {
			items = append(items, opts.LineData{Value: value(r)})
		}
		line.AddSeries(s.Name, items)
	}
	return line
}
