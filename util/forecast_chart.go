package util

import (
	"fmt"
	"io"

	"dt-server/models"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderForecastChart writes an HTML line chart of the observed daily totals and
// the projected values of report.Forecast.
func RenderForecastChart(w io.Writer, report *models.TrendReport) error {
	dates := make([]string, 0, len(report.Forecast))
	observed := make([]opts.LineData, 0, len(report.Forecast))
	projected := make([]opts.LineData, 0, len(report.Forecast))

	for _, p := range report.Forecast {
		dates = append(dates, p.Date)
		if p.Forecast == nil {
			observed = append(observed, opts.LineData{Value: p.Total})
			projected = append(projected, opts.LineData{Value: "-"})
		} else {
			observed = append(observed, opts.LineData{Value: "-"})
			projected = append(projected, opts.LineData{Value: *p.Forecast})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Disease detection forecast",
			Width:     "900px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Daily disease detections",
			Subtitle: fmt.Sprintf("last %d days as of %s", report.LookbackDays, report.AsOf.Format("2006-01-02")),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	line.SetXAxis(dates).
		AddSeries("Observed", observed).
		AddSeries("Forecast", projected, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render forecast chart: %w", err)
	}
	return nil
}
