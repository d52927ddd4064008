package report

import (
	"errors"
	"fmt"
	"math"
	"os"

	img "cell-counter/internal/image"
	"cell-counter/internal/optimize"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrTooFewRows is returned when a sweep is too short to draw.
var ErrTooFewRows = errors.New("need at least two sweep rows to plot")

// OptimizationChart builds the auto-count versus threshold chart with the
// manual count drawn as a flat reference line. A NaN selected threshold
// draws no selection marker.
func OptimizationChart(rows []optimize.Row, selected float64) (chart.Chart, error) {
	if len(rows) < 2 {
		return chart.Chart{}, ErrTooFewRows
	}

	xs := make([]float64, len(rows))
	auto := make([]float64, len(rows))
	manual := make([]float64, len(rows))
	for i, r := range rows {
		xs[i] = r.Threshold
		auto[i] = float64(r.AutoCount)
		manual[i] = float64(r.ManualCount)
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Auto count",
			XValues: xs,
			YValues: auto,
			Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 3.0},
		},
		chart.ContinuousSeries{
			Name:    "Manual count",
			XValues: xs,
			YValues: manual,
			Style: chart.Style{
				StrokeColor:     chart.ColorRed,
				StrokeWidth:     2.0,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		},
	}
	if !math.IsNaN(selected) {
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("Selected threshold %g", selected),
			XValues: []float64{selected, selected},
			YValues: []float64{0, maxCount(auto, manual)},
			Style:   chart.Style{StrokeColor: drawing.Color{R: 255, G: 165, B: 0, A: 255}, StrokeWidth: 2.0},
		})
	}

	graph := chart.Chart{
		Title:  "Threshold sweep",
		Width:  900,
		Height: 500,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Threshold",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "Objects",
			Style: chart.Style{FontSize: 10.0},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph, nil
}

// PlotOptimization renders the sweep chart as a PNG file.
func PlotOptimization(path string, rows []optimize.Row, selected float64) error {
	graph, err := OptimizationChart(rows, selected)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return &img.FileError{Op: "create", Path: path, Err: err}
	}
	if err := graph.Render(chart.PNG, file); err != nil {
		file.Close()
		return fmt.Errorf("failed to render graph: %w", err)
	}
	if err := file.Close(); err != nil {
		return &img.FileError{Op: "close", Path: path, Err: err}
	}
	return nil
}

func maxCount(series ...[]float64) float64 {
	m := 0.0
	for _, s := range series {
		for _, v := range s {
			if v > m {
				m = v
			}
		}
	}
	return m
}
