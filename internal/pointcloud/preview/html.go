package preview

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders an interactive page with one scatter chart per view
// and returns the written path, <stem>.html. Points are decimated by
// stride to at most MaxPoints per view.
func (w *Writer) WriteHTML(stem string, snap Snapshot) (string, error) {
	path, err := w.outputPath(stem, ".html")
	if err != nil {
		return "", err
	}

	page := components.NewPage()
	page.SetPageTitle(stem)
	for _, v := range views {
		page.AddCharts(w.scatterChart(stem, v, snap))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}
	if err := w.write(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) scatterChart(stem string, v view, snap Snapshot) *charts.Scatter {
	pr := project(snap.Points, v, w.maxPoints())

	data := make([]opts.ScatterData, len(pr.xs))
	for i := range pr.xs {
		data[i] = opts.ScatterData{Value: []interface{}{pr.xs[i], pr.ys[i]}}
	}

	pointColor := snap.Style.PointColor
	if _, err := parseHexColor(pointColor); err != nil {
		pointColor = "#4fc3f7"
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       stem,
			Theme:           "dark",
			Width:           "900px",
			Height:          "900px",
			BackgroundColor: snap.Style.BackgroundColor,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s (%s)", stem, v.name),
			Subtitle: fmt.Sprintf("points=%d stride=%d", len(data), pr.stride),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pr.extent, Max: pr.extent, Name: v.xLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pr.extent, Max: pr.extent, Name: v.yLabel, NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries(v.name, data,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: pointColor}),
	)
	return scatter
}
