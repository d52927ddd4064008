// Package report writes the run's tables, label-map images and the
// optimization chart.
package report

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"cell-counter/internal/batch"
	"cell-counter/internal/counter"
	img "cell-counter/internal/image"
	"cell-counter/internal/logger"
	"cell-counter/internal/optimize"
	"cell-counter/internal/params"
)

const component = "Report"

// File names written under the output directory.
const (
	OptimizationCSV = "OptimizationSummary.csv"
	OptimizationPNG = "OptimizationSummary.png"
	LabelsSuffix    = "_Counts.tif"
	RecordsSuffix   = "_CellInfo.csv"
)

// SummaryName is the batch table file name for a channel, e.g. "Ch1_Counts.csv".
func SummaryName(c params.Channel) string {
	return c.String() + "_Counts.csv"
}

// Dir stores per-image artifacts in one directory.
type Dir struct {
	Path   string
	Logger logger.Logger
}

// WriteLabels saves labels as <name>_Counts.tif.
func (d Dir) WriteLabels(name string, labels *img.LabelMap) error {
	path := filepath.Join(d.Path, name+LabelsSuffix)
	clamped, err := img.SaveLabels(path, labels)
	if err != nil {
		return err
	}
	if clamped > 0 && d.Logger != nil {
		d.Logger.Warning(component, "labels above 16-bit range were clamped", map[string]interface{}{
			"file":   path,
			"pixels": clamped,
			"max_id": img.MaxLabel,
		})
	}
	return nil
}

// WriteRecords saves the per-object table as <name>_CellInfo.csv.
func (d Dir) WriteRecords(name string, c params.Channel, records []counter.CellRecord) error {
	return WriteRecords(filepath.Join(d.Path, name+RecordsSuffix), c, records)
}

// WriteRecords writes one row per detected object.
func WriteRecords(path string, c params.Channel, records []counter.CellRecord) error {
	header := []string{c.String() + "_file", "cell_id", "cell_size", "cell_intensity", "cell_raw_intensity"}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.File,
			strconv.Itoa(r.ID),
			strconv.Itoa(r.Area),
			formatFloat(r.Intensity),
			formatFloat(r.RawIntensity),
		})
	}
	return writeCSV(path, header, rows)
}

// WriteOptimization writes the threshold sweep with a leading row index.
func WriteOptimization(path string, rows []optimize.Row) error {
	header := []string{
		"",
		"AutoCount_Thresh",
		"OTSU_Thresh",
		"Manual_CellDiam",
		"Manual_Counts",
		"AutoCount_UseWatershed",
		"AutoCount_Counts",
		"AutoCount_AvgCellArea",
		"Acc_Manual_over_AutoCounts",
	}
	out := make([][]string, 0, len(rows))
	for i, r := range rows {
		out = append(out, []string{
			strconv.Itoa(i),
			formatFloat(r.Threshold),
			formatFloat(r.OtsuThreshold),
			strconv.Itoa(r.ManualDiameter),
			strconv.Itoa(r.ManualCount),
			strconv.FormatBool(r.UseWatershed),
			strconv.Itoa(r.AutoCount),
			formatFloat(r.AvgArea),
			formatFloat(r.Accuracy),
		})
	}
	return writeCSV(path, header, out)
}

// WriteSummary writes the batch table, one row per image.
func WriteSummary(path string, s *batch.Summary) error {
	ch := s.Channel.String()
	header := []string{
		ch + "_FileNames",
		ch + "_Thresh",
		ch + "_AvgCellDiam",
		ch + "_ParticleMin",
		ch + "_Counts",
		ch + "_ROIsize",
	}
	out := make([][]string, 0, len(s.Rows))
	for _, r := range s.Rows {
		out = append(out, []string{
			r.File,
			formatFloat(r.Threshold),
			strconv.Itoa(r.Diameter),
			formatFloat(r.ParticleMin),
			strconv.Itoa(r.Count),
			strconv.Itoa(r.ROISize),
		})
	}
	return writeCSV(path, header, out)
}

// formatFloat renders NaN as an empty cell.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return &img.FileError{Op: "create", Path: path, Err: err}
	}

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		file.Close()
		return &img.FileError{Op: "write", Path: path, Err: err}
	}
	if err := w.WriteAll(rows); err != nil {
		file.Close()
		return &img.FileError{Op: "write", Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &img.FileError{Op: "close", Path: path, Err: err}
	}
	return nil
}
