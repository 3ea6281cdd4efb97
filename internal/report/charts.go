package report

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/svanichkin/hpdec/internal/transform"
)

// Chart dimensions for the PNG rendering.
const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// WritePNG renders h as a 256-bar chart in PNG form.
func WritePNG(w io.Writer, h *transform.Histogram, title string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Channel value"
	p.Y.Label.Text = "Count"
	p.X.Min = 0
	p.X.Max = 255

	vals := make(plotter.Values, len(h))
	for v, c := range h {
		vals[v] = float64(c)
	}
	bars, err := plotter.NewBarChart(vals, chartWidth/320)
	if err != nil {
		return fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}
	p.Add(bars)

	wt, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// WriteHTML renders h as an interactive bar chart page.
func WriteHTML(w io.Writer, h *transform.Histogram, title string) error {
	s := h.Summary()

	x := make([]string, len(h))
	data := make([]opts.BarData, len(h))
	for v, c := range h {
		x[v] = strconv.Itoa(v)
		data[v] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("samples=%d mean=%.2f stddev=%.2f median=%.0f", s.Count, s.Mean, s.StdDev, s.Median),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "value", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)
	bar.SetXAxis(x).AddSeries("count", data)

	return bar.Render(w)
}
