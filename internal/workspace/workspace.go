// Package workspace resolves the on-disk layout of a counting run: the
// composite and manual reference images, the production image folder, and
// the output folders.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cell-counter/internal/params"
)

// Directory names under the workspace root.
const (
	CompositeDir = "Composite"
	ManualDir    = "ManualCounts"
	Ch1Dir       = "Ch1"
	OutputDir    = "SavedOutput"
)

var (
	// ErrMissingDir is returned when a required input folder does not exist.
	ErrMissingDir = errors.New("missing required directory")
	// ErrNoImages is returned when a required input folder holds no TIFF files.
	ErrNoImages = errors.New("no tif images found")
)

// Info is the resolved directory layout. It is built once by Resolve and not
// modified afterwards.
type Info struct {
	Root      string
	Composite string
	Manual    string
	Ch1       string
	Output    string
	OutputCh1 string

	CompositeFiles []string
	ManualFiles    []string
	Ch1Files       []string
}

// Source is the folder and ordered file list a channel reads from.
type Source struct {
	Channel   params.Channel
	Dir       string
	Files     []string
	OutputDir string
}

// Path returns the full path of the file at index.
func (s Source) Path(index int) (string, error) {
	if index < 0 || index >= len(s.Files) {
		return "", fmt.Errorf("%s file index %d out of range (%d files)", s.Channel, index, len(s.Files))
	}
	return filepath.Join(s.Dir, s.Files[index]), nil
}

// Resolve checks the input folders under root, lists their TIFF files in
// name order and creates the output folders.
func Resolve(root string) (*Info, error) {
	info := &Info{
		Root:      root,
		Composite: filepath.Join(root, CompositeDir),
		Manual:    filepath.Join(root, ManualDir),
		Ch1:       filepath.Join(root, Ch1Dir),
		Output:    filepath.Join(root, OutputDir),
	}
	info.OutputCh1 = filepath.Join(info.Output, Ch1Dir)

	var err error
	if info.CompositeFiles, err = listImages(info.Composite); err != nil {
		return nil, err
	}
	if info.ManualFiles, err = listImages(info.Manual); err != nil {
		return nil, err
	}
	if info.Ch1Files, err = listImages(info.Ch1); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(info.OutputCh1, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return info, nil
}

// Source returns the input folder for a channel. The tuning channel reads the
// first composite image; the production channel reads the whole Ch1 folder.
func (i *Info) Source(c params.Channel) Source {
	switch c {
	case params.ChannelProduction:
		return Source{Channel: c, Dir: i.Ch1, Files: i.Ch1Files, OutputDir: i.OutputCh1}
	default:
		return Source{Channel: c, Dir: i.Composite, Files: i.CompositeFiles[:1], OutputDir: i.Output}
	}
}

// CompositePath is the reference image used for tuning.
func (i *Info) CompositePath() string {
	return filepath.Join(i.Composite, i.CompositeFiles[0])
}

// ManualPath is the manual-annotation mask paired with the composite image.
func (i *Info) ManualPath() string {
	return filepath.Join(i.Manual, i.ManualFiles[0])
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingDir, dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".tif") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, dir)
	}
	sort.Strings(names)
	return names, nil
}

// Stem strips the extension from an image file name.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
