// Command counttest counts a single image with explicit parameters and
// prints the detected objects. The image is given either by path or as an
// index into a workspace channel folder.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"cell-counter/internal/counter"
	img "cell-counter/internal/image"
	"cell-counter/internal/params"
	"cell-counter/internal/segment"
	"cell-counter/internal/threshold"
	"cell-counter/internal/workspace"
)

func main() {
	imagePath := flag.String("image", "", "Path to a 16-bit grayscale TIFF")
	dir := flag.String("dir", "", "Workspace directory; counts -index of -channel instead of -image")
	channel := flag.String("channel", "ch1", "Workspace channel: ch1 or optim")
	index := flag.Int("index", 0, "File index within the channel folder")
	diameter := flag.Int("diameter", 6, "Cell diameter in pixels")
	thresh := flag.Float64("threshold", -1, "Intensity threshold (default: Otsu of the smoothed image)")
	particleMin := flag.Float64("pmin", 0.1, "Minimum particle area as a fraction of diameter²")
	watershed := flag.Bool("watershed", true, "Split touching cells")
	labelsOut := flag.String("labels", "", "Optional path for the 16-bit label map")
	smoothedOut := flag.String("smoothed", "", "Optional path for the preprocessed image")
	seedsOnly := flag.Bool("seeds", false, "Print watershed seeds instead of cells")
	flag.Parse()

	if *imagePath == "" && *dir == "" {
		fmt.Println("Usage: counttest -image <path> | -dir <workspace> [-channel ch1|optim] [-index 0]")
		fmt.Println("       [-diameter 6] [-threshold 120] [-pmin 0.1] [-watershed=false] [-labels out.tif] [-smoothed out.tif]")
		os.Exit(1)
	}

	var (
		frame *img.Frame
		name  string
		info  *workspace.Info
		ch    params.Channel
		err   error
	)
	if *dir != "" {
		ch = params.ChannelProduction
		if *channel == "optim" {
			ch = params.ChannelTuning
		}
		if info, err = workspace.Resolve(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		frame, name, err = counter.Load(info.Source(ch), *index)
	} else {
		name = filepath.Base(*imagePath)
		frame, err = img.Load(*imagePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s: %dx%d pixels, range %.0f-%.0f\n", name, frame.Width, frame.Height, frame.Min(), frame.Max())

	pipe := counter.Pipeline{}
	smoothed, err := pipe.Preprocess(frame, *diameter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Preprocessing failed: %v\n", err)
		os.Exit(1)
	}
	if *thresh < 0 {
		*thresh = threshold.Otsu(smoothed.Pix)
		fmt.Printf("Otsu threshold: %g\n", *thresh)
	}
	if *smoothedOut != "" {
		if err := img.SaveFrame(*smoothedOut, smoothed); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Preprocessed image written to %s\n", *smoothedOut)
	}

	settings := counter.Settings{
		Diameter:       *diameter,
		Threshold:      *thresh,
		ParticleMin:    *particleMin,
		UseWatershed:   *watershed,
		CaptureObjects: true,
	}
	fmt.Printf("\nCounting parameters:\n")
	fmt.Printf("  Diameter: %d px\n", settings.Diameter)
	fmt.Printf("  Threshold: %g\n", settings.Threshold)
	fmt.Printf("  Particle min: %.2f (area >= %.1f px)\n", settings.ParticleMin, segment.MinArea(settings.Diameter, settings.ParticleMin))
	fmt.Printf("  Watershed: %v\n", settings.UseWatershed)

	var res *counter.Result
	if info != nil {
		p := params.Default()
		p.ParticleMin = settings.ParticleMin
		p.UseWatershed = settings.UseWatershed
		p = p.WithTuning(settings.Diameter, settings.Threshold).
			WithProduction(settings.Diameter, settings.Threshold)
		res, err = counter.CountFile(info, ch, *index, p, true)
	} else {
		res, err = pipe.Count(frame, name, settings)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Counting failed: %v\n", err)
		os.Exit(1)
	}

	if *seedsOnly {
		dist, err := segment.DistanceTransform(res.Mask)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Distance transform failed: %v\n", err)
			os.Exit(1)
		}
		seeds, err := segment.FindSeeds(dist, settings.Diameter, settings.ParticleMin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Seed detection failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n%d seeds:\n", len(seeds))
		fmt.Printf("%-6s %8s %8s %10s\n", "ID", "X", "Y", "Distance")
		for _, s := range seeds {
			fmt.Printf("%-6d %8d %8d %10.2f\n", s.ID, s.Pos.X, s.Pos.Y, s.Distance)
		}
		return
	}

	fmt.Printf("\nDetected %d cells:\n", res.Count)
	fmt.Printf("%-6s %8s %10s %10s %12s %12s\n", "ID", "Area", "X", "Y", "Intensity", "Raw")
	for _, r := range res.Records {
		fmt.Printf("%-6d %8d %10.1f %10.1f %12.1f %12.1f\n",
			r.ID, r.Area, r.Centroid.X, r.Centroid.Y, r.Intensity, r.RawIntensity)
	}

	if *labelsOut != "" {
		clamped, err := img.SaveLabels(*labelsOut, res.Labels)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if clamped > 0 {
			fmt.Printf("Warning: %d pixels had labels above %d and were clamped\n", clamped, img.MaxLabel)
		}
		fmt.Printf("Label map written to %s\n", *labelsOut)
	}

	fmt.Printf("\nTotal: %d cells, ROI %d pixels\n", res.Count, res.ROISize)
}
