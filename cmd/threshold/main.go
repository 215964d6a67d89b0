// Command threshold applies the configured threshold to a grayscale PNG.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"cellpipe/internal/config"
	"cellpipe/internal/threshold"
)

func main() {
	var (
		cfgPath  string
		inPath   string
		outPath  string
		validate bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.json", "pipeline config JSON path")
	flag.StringVar(&inPath, "in", "", "input PNG path")
	flag.StringVar(&outPath, "out", "", "output PNG path")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	if p.Threshold == nil {
		fatalf("config has no threshold section")
	}
	if inPath == "" || outPath == "" {
		fatalf("missing -in or -out")
	}

	start := time.Now()

	img, err := readGray(inPath)
	if err != nil {
		fatalf("read image: %v", err)
	}

	out, err := threshold.Apply(img, *p.Threshold)
	if err != nil {
		fatalf("apply threshold: %v", err)
	}

	if err := writeGray(outPath, out); err != nil {
		fatalf("write image: %v", err)
	}

	if *verbose {
		r, c := img.Dims()
		log.Printf("thresholded %dx%d image in %s", c, r, time.Since(start).Truncate(time.Millisecond))
	}
}

// readGray decodes a PNG into an intensity matrix with values in [0,1].
func readGray(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	m := mat.NewDense(b.Dy(), b.Dx(), nil)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(src.At(x, y)).(color.Gray16)
			m.Set(y-b.Min.Y, x-b.Min.X, float64(g.Y)/65535)
		}
	}
	return m, nil
}

// writeGray encodes an intensity matrix (values in [0,1]) as a 16-bit
// grayscale PNG.
func writeGray(path string, m *mat.Dense) error {
	r, c := m.Dims()
	img := image.NewGray16(image.Rect(0, 0, c, r))
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			v := m.At(y, x)
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(v*65535 + 0.5)})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
