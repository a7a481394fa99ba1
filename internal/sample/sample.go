// Package sample writes a small, self-consistent data directory: a region table, a fitted scaler,
// one classifier of every supported type, a label mapping and some crop images. It backs the
// sample data script and the end-to-end tests.
package sample

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"crop-recommender/internal/common"
	"crop-recommender/internal/features"
	"crop-recommender/internal/ml"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Crop is one class of the sample models.
type Crop struct {
	Label    int
	Name     string
	Centroid features.FeatureVector
	Image    bool // an image file is written for the crop
	Color    color.RGBA
}

// Row is one region of the sample table with the crop its features are drawn from.
type Row struct {
	State    string
	District string
	Crop     string
}

var Crops = []Crop{
	{Label: 0, Name: "rice", Centroid: features.FeatureVector{N: 80, P: 48, K: 40, Temperature: 23.7, Humidity: 82, PH: 6.4, Rainfall: 236}, Image: true, Color: color.RGBA{R: 240, G: 230, B: 140, A: 255}},
	{Label: 1, Name: "maize", Centroid: features.FeatureVector{N: 78, P: 48, K: 20, Temperature: 22.4, Humidity: 65, PH: 6.2, Rainfall: 85}, Image: true, Color: color.RGBA{R: 255, G: 200, B: 40, A: 255}},
	{Label: 2, Name: "chickpea", Centroid: features.FeatureVector{N: 40, P: 68, K: 80, Temperature: 18.9, Humidity: 17, PH: 7.3, Rainfall: 80}},
	{Label: 3, Name: "cotton", Centroid: features.FeatureVector{N: 118, P: 46, K: 20, Temperature: 24, Humidity: 80, PH: 6.9, Rainfall: 80}},
	{Label: 4, Name: "coffee", Centroid: features.FeatureVector{N: 101, P: 29, K: 30, Temperature: 25.5, Humidity: 58, PH: 6.8, Rainfall: 158}, Image: true, Color: color.RGBA{R: 111, G: 78, B: 55, A: 255}},
}

var Rows = []Row{
	{State: "Maharashtra", District: "Mumbai", Crop: "rice"},
	{State: "Maharashtra", District: "Pune", Crop: "cotton"},
	{State: "Maharashtra", District: "Nagpur", Crop: "cotton"},
	{State: "Karnataka", District: "Bengaluru", Crop: "coffee"},
	{State: "Karnataka", District: "Mysuru", Crop: "maize"},
	{State: "Madhya Pradesh", District: "Bhopal", Crop: "chickpea"},
	{State: "Madhya Pradesh", District: "Indore", Crop: "chickpea"},
	{State: "Kerala", District: "Thiruvananthapuram", Crop: "rice"},
	{State: "Bihar", District: "Patna", Crop: "maize"},
}

// MissingRow is written with an empty rainfall cell and is dropped at load.
var MissingRow = Row{State: "Goa", District: "Panaji", Crop: "rice"}

// Write creates the sample data directory layout under dir.
func Write(dir string) error {
	for _, sub := range []string{filepath.Dir(common.ScalerFile), common.ModelsDir, filepath.Dir(common.RegionsFile), common.ImagesDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	mean, scale := fitScaler()
	steps := []struct {
		name string
		fn   func() error
	}{
		{"regions", func() error { return writeRegions(filepath.Join(dir, common.RegionsFile)) }},
		{"scaler", func() error { return writeScaler(filepath.Join(dir, common.ScalerFile), mean, scale) }},
		{"models", func() error { return writeModels(filepath.Join(dir, common.ModelsDir), mean, scale) }},
		{"labels", func() error { return writeLabels(filepath.Join(dir, common.LabelsFile)) }},
		{"images", func() error { return writeImages(filepath.Join(dir, common.ImagesDir)) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("failed to write sample %s: %w", s.name, err)
		}
	}
	return nil
}

// CropByName returns the sample crop called name.
func CropByName(name string) (Crop, bool) {
	for _, c := range Crops {
		if c.Name == name {
			return c, true
		}
	}
	return Crop{}, false
}

// fitScaler returns the per-feature mean and population standard deviation of the centroids.
func fitScaler() ([]float64, []float64) {
	mean := make([]float64, features.Width)
	scale := make([]float64, features.Width)
	col := make([]float64, len(Crops))
	for j := 0; j < features.Width; j++ {
		for i, c := range Crops {
			col[i] = c.Centroid.Slice()[j]
		}
		mean[j] = stat.Mean(col, nil)
		scale[j] = stat.PopStdDev(col, nil)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return mean, scale
}

func scaled(v features.FeatureVector, mean, scale []float64) []float64 {
	out := make([]float64, features.Width)
	floats.SubTo(out, v.Slice(), mean)
	floats.Div(out, scale)
	return out
}

// jitter moves every feature of a centroid by up to two percent, deterministically per row.
func jitter(v features.FeatureVector, row int) features.FeatureVector {
	x := v.Slice()
	for j := range x {
		x[j] *= 1 + 0.01*float64((row*7+j*3)%5-2)
	}
	out, _ := features.FromSlice(x)
	return out
}

func writeRegions(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := append([]string{features.ColState, features.ColDistrict}, features.Names[:]...)
	if err := w.Write(header); err != nil {
		return err
	}

	for i, r := range append(append([]Row(nil), Rows...), MissingRow) {
		c, ok := CropByName(r.Crop)
		if !ok {
			return fmt.Errorf("row %s/%s: unknown crop %q", r.State, r.District, r.Crop)
		}
		record := []string{r.State, r.District}
		for _, v := range jitter(c.Centroid, i).Slice() {
			record = append(record, strconv.FormatFloat(v, 'f', 2, 64))
		}
		if r == MissingRow {
			record[len(record)-1] = ""
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeScaler(path string, mean, scale []float64) error {
	return writeJSON(path, map[string]interface{}{
		"type":          ml.ScalerStandard,
		"mean":          mean,
		"scale":         scale,
		"feature_names": features.Names,
	})
}

func writeModels(dir string, mean, scale []float64) error {
	points := make([][]float64, len(Crops))
	labels := make([]int, len(Crops))
	coef := make([][]float64, len(Crops))
	intercept := make([]float64, len(Crops))
	vars := make([][]float64, len(Crops))
	priors := make([]float64, len(Crops))
	for i, c := range Crops {
		p := scaled(c.Centroid, mean, scale)
		points[i] = p
		labels[i] = c.Label
		// w.x - |w|^2/2 is largest for the nearest centroid.
		coef[i] = p
		intercept[i] = -floats.Dot(p, p) / 2
		vars[i] = make([]float64, features.Width)
		for j := range vars[i] {
			vars[i][j] = 0.25
		}
		priors[i] = 1 / float64(len(Crops))
	}

	// threshold returns the scaled midpoint of two raw values of feature j.
	threshold := func(j int, a, b float64) float64 {
		return ((a+b)/2 - mean[j]) / scale[j]
	}
	label := func(name string) int {
		c, _ := CropByName(name)
		return c.Label
	}
	split := func(j int, a, b float64, left, right int) ml.TreeNode {
		return ml.TreeNode{FeatureIdx: j, Threshold: threshold(j, a, b), LeftChild: left, RightChild: right}
	}
	leaf := func(name string) ml.TreeNode {
		return ml.TreeNode{IsLeaf: true, ClassLabel: label(name)}
	}

	const (
		fN    = 0
		fK    = 2
		fHum  = 4
		fRain = 6
	)
	rainTree := []ml.TreeNode{
		split(fRain, 158, 236, 1, 2),
		split(fRain, 85, 158, 3, 4),
		leaf("rice"),
		split(fK, 20, 80, 5, 6),
		leaf("coffee"),
		split(fN, 78, 118, 7, 8),
		leaf("chickpea"),
		leaf("maize"),
		leaf("cotton"),
	}
	humidityTree := []ml.TreeNode{
		split(fHum, 17, 58, 1, 2),
		leaf("chickpea"),
		split(fHum, 65, 80, 3, 4),
		split(fHum, 58, 65, 5, 6),
		split(fRain, 80, 236, 7, 8),
		leaf("coffee"),
		leaf("maize"),
		leaf("cotton"),
		leaf("rice"),
	}
	nitrogenStump := []ml.TreeNode{
		split(fN, 78, 101, 1, 2),
		leaf("maize"),
		leaf("cotton"),
	}

	models := map[string]map[string]interface{}{
		"decision_tree": {"type": ml.TypeDecisionTree, "nodes": rainTree},
		"random_forest": {"type": ml.TypeRandomForest, "trees": [][]ml.TreeNode{rainTree, humidityTree, nitrogenStump}},
		"knn":           {"type": ml.TypeKNN, "k": 1, "points": points, "labels": labels},
		"naive_bayes":   {"type": ml.TypeGaussianNB, "classes": labels, "priors": priors, "means": points, "vars": vars},
		"linear":        {"type": ml.TypeLinear, "coef": coef, "intercept": intercept, "classes": labels},
	}
	for name, m := range models {
		m["n_features"] = features.Width
		if err := writeJSON(filepath.Join(dir, name+common.DefaultModelExt), m); err != nil {
			return err
		}
	}
	return nil
}

func writeLabels(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"Number", "Name"}); err != nil {
		return err
	}
	for _, c := range Crops {
		if err := w.Write([]string{strconv.Itoa(c.Label), c.Name}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeImages(dir string) error {
	for _, c := range Crops {
		if !c.Image {
			continue
		}
		img := image.NewRGBA(image.Rect(0, 0, 64, 48))
		for y := 0; y < 48; y++ {
			for x := 0; x < 64; x++ {
				img.Set(x, y, c.Color)
			}
		}
		file, err := os.Create(filepath.Join(dir, c.Name+".png"))
		if err != nil {
			return err
		}
		if err := png.Encode(file, img); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}
