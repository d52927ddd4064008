// Package batch counts every image of a channel with fixed parameters and
// collects a per-file summary.
package batch

import (
	"fmt"
	"sync"
	"sync/atomic"

	"cell-counter/internal/counter"
	img "cell-counter/internal/image"
	"cell-counter/internal/logger"
	"cell-counter/internal/params"
	"cell-counter/internal/workspace"
)

const component = "Batch"

// Counter counts a single loaded frame.
type Counter interface {
	Count(frame *img.Frame, name string, s counter.Settings) (*counter.Result, error)
}

// Store persists per-image artifacts.
type Store interface {
	WriteLabels(name string, labels *img.LabelMap) error
	WriteRecords(name string, c params.Channel, records []counter.CellRecord) error
}

// SummaryRow is the outcome for one file.
type SummaryRow struct {
	File        string
	Threshold   float64
	Diameter    int
	ParticleMin float64
	Count       int
	ROISize     int
}

// Summary is the per-channel result table, in folder listing order.
type Summary struct {
	Channel params.Channel
	Rows    []SummaryRow
}

// Total is the sum of all per-file counts.
func (s *Summary) Total() int {
	total := 0
	for _, r := range s.Rows {
		total += r.Count
	}
	return total
}

// Runner processes a channel folder.
type Runner struct {
	Counter Counter
	// Store is optional; nil skips all artifacts.
	Store  Store
	Logger logger.Logger
	// Workers above 1 count images concurrently.
	Workers     int
	SaveRecords bool
}

// Run counts every file of channel c. The first failure aborts the run and no
// summary is returned.
func (r *Runner) Run(info *workspace.Info, p params.Parameters, c params.Channel) (*Summary, error) {
	if err := p.ValidateFor(c); err != nil {
		return nil, err
	}
	log := r.Logger
	if log == nil {
		log = logger.Nop()
	}

	src := info.Source(c)
	cp := p.For(c)
	settings := counter.SettingsFor(cp, true)

	log.Info(component, "batch started", map[string]interface{}{
		"channel":   c.String(),
		"files":     len(src.Files),
		"diameter":  cp.Diameter,
		"threshold": cp.Threshold,
		"workers":   r.Workers,
	})

	rows := make([]SummaryRow, len(src.Files))
	process := func(i int) error {
		row, err := r.processOne(src, i, settings)
		if err != nil {
			return fmt.Errorf("failed to process %s: %w", src.Files[i], err)
		}
		rows[i] = row
		log.Debug(component, "image counted", map[string]interface{}{
			"file":  row.File,
			"count": row.Count,
		})
		return nil
	}

	var err error
	if r.Workers > 1 {
		err = runParallel(len(src.Files), r.Workers, process)
	} else {
		for i := range src.Files {
			if err = process(i); err != nil {
				break
			}
		}
	}
	if err != nil {
		log.Error(component, err, map[string]interface{}{"channel": c.String()})
		return nil, err
	}

	summary := &Summary{Channel: c, Rows: rows}
	log.Info(component, "batch complete", map[string]interface{}{
		"channel": c.String(),
		"files":   len(rows),
		"total":   summary.Total(),
	})
	return summary, nil
}

func (r *Runner) processOne(src workspace.Source, i int, s counter.Settings) (SummaryRow, error) {
	frame, name, err := counter.Load(src, i)
	if err != nil {
		return SummaryRow{}, err
	}

	res, err := r.Counter.Count(frame, name, s)
	if err != nil {
		return SummaryRow{}, err
	}

	if r.Store != nil {
		stem := workspace.Stem(name)
		if err := r.Store.WriteLabels(stem, res.Labels); err != nil {
			return SummaryRow{}, err
		}
		if r.SaveRecords {
			if err := r.Store.WriteRecords(stem, src.Channel, res.Records); err != nil {
				return SummaryRow{}, err
			}
		}
	}

	return SummaryRow{
		File:        name,
		Threshold:   s.Threshold,
		Diameter:    s.Diameter,
		ParticleMin: s.ParticleMin,
		Count:       res.Count,
		ROISize:     res.ROISize,
	}, nil
}

// runParallel runs fn for 0..n-1 on a fixed pool of workers. Once a call
// fails, indices above the lowest failing index are skipped if not yet
// started; every index below it still runs. The error returned is the one
// with the lowest index.
func runParallel(n, workers int, fn func(i int) error) error {
	errs := make([]error, n)
	jobs := make(chan int)
	var firstFailed atomic.Int64
	firstFailed.Store(int64(n))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if int64(i) > firstFailed.Load() {
					continue
				}
				if err := fn(i); err != nil {
					errs[i] = err
					for {
						cur := firstFailed.Load()
						if int64(i) >= cur || firstFailed.CompareAndSwap(cur, int64(i)) {
							break
						}
					}
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
