package main

import (
	"image/color"
	"os"
	"path/filepath"

	"github.com/Noofbiz/studentSeq/datasets"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const histBins = 20

func targetValues(ds *datasets.StudentDataset) plotter.Values {
	vals := make(plotter.Values, 0, ds.Len())
	for _, s := range ds.Samples() {
		vals = append(vals, float64(s.Target))
	}
	return vals
}

// plotTargets writes a PNG with the target histograms of both splits (train
// blue, test red) and returns its path.
func plotTargets(outDir string, train, test *datasets.StudentDataset) (string, error) {
	p := plot.New()
	p.Title.Text = "Targets: " + train.Mode().String()
	p.X.Label.Text = "target"
	p.Y.Label.Text = "samples"

	for _, h := range []struct {
		name string
		ds   *datasets.StudentDataset
		col  color.RGBA
	}{
		{"train", train, color.RGBA{R: 20, G: 80, B: 200, A: 160}},
		{"test", test, color.RGBA{R: 200, G: 30, B: 30, A: 160}},
	} {
		vals := targetValues(h.ds)
		if len(vals) == 0 {
			continue
		}
		hist, err := plotter.NewHist(vals, histBins)
		if err != nil {
			return "", err
		}
		hist.FillColor = h.col
		hist.LineStyle.Width = vg.Points(0.5)
		p.Add(hist)
		p.Legend.Add(h.name, hist)
	}
	p.Add(plotter.NewGrid())

	if err := ensureDir(outDir); err != nil {
		return "", err
	}
	outPath := filepath.Join(outDir, "targets_"+train.Mode().String()+".png")
	if err := p.Save(8*vg.Inch, 6*vg.Inch, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

func ensureDir(path string) error {
	// Attempt to create directory if it doesn't exist (silently succeed if present).
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
