// Command classifiertrain builds a centroid disease model from labeled leaf
// images. The image directory holds one subdirectory per label, named after
// the label (healthy, fungal_infection, ...). Samples are merged into a
// training set JSON file and the model is retrained from the whole set.
//
// Usage: classifiertrain -dir <image-dir> [-samples file] [-model file]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"agro-advisor/internal/classify"
	"agro-advisor/internal/features"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

func main() {
	dir := flag.String("dir", "", "directory with one subdirectory of images per label")
	samplesPath := flag.String("samples", "lib/leaf_training.json", "training set JSON (merged if it exists)")
	modelPath := flag.String("model", "lib/centroid_model.json", "output model JSON")
	size := flag.Int("size", 224, "normalized image size")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -dir <image-dir> [-samples file] [-model file]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	ts, err := classify.LoadTrainingSet(*samplesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading training set: %v\n", err)
		os.Exit(1)
	}
	if n := ts.Count(); n > 0 {
		fmt.Printf("Loaded %d existing samples from %s\n", n, *samplesPath)
	}

	params := features.DefaultParams()
	params.Size = *size
	ext := features.NewExtractor(params)

	added, skipped, err := collect(*dir, ext, ts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Added %d samples, skipped %d files\n", added, skipped)

	if err := ts.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving training set: %v\n", err)
		os.Exit(1)
	}

	var model classify.CentroidScorer
	if err := model.Train(ts); err != nil {
		fmt.Fprintf(os.Stderr, "Error training: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*modelPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	if err := model.Save(*modelPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing model: %v\n", err)
		os.Exit(1)
	}

	counts := ts.Counts()
	for _, l := range classify.Labels() {
		if counts[l] > 0 {
			s := model.Stats[l]
			fmt.Printf("  %-20s %4d samples  V=%.0f±%.0f edges=%.3f\n",
				l, counts[l], s.Mean[2], s.Std[2], s.Mean[7])
		}
	}
	fmt.Printf("\nWrote model for %d labels to %s\n", len(model.Stats), *modelPath)
}

// collect extracts a sample from every image under dir/<label>/.
func collect(dir string, ext *features.Extractor, ts *classify.TrainingSet) (added, skipped int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		label, err := classify.ParseLabel(e.Name())
		if err != nil {
			fmt.Printf("Skipping directory %s: %v\n", e.Name(), err)
			continue
		}

		files, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return added, skipped, err
		}
		for _, f := range files {
			if f.IsDir() || !imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			path := filepath.Join(dir, e.Name(), f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return added, skipped, err
			}
			fv, err := ext.Extract(data)
			if err != nil {
				fmt.Printf("  skip %s: %v\n", path, err)
				skipped++
				continue
			}
			if _, err := ts.Add(label, fv, path); err != nil {
				fmt.Printf("  skip %s: %v\n", path, err)
				skipped++
				continue
			}
			added++
		}
	}
	return added, skipped, nil
}
