// Command hrtfgen writes spherical-head HRTF and ILD tables in the binary
// table format, one set per sample rate.
//
// Usage:
//
//	hrtfgen [flags] [output-dir]
//
// Examples:
//
//	hrtfgen tables
//	hrtfgen -rates 44100,48000 -ir 128 -step 10 tables
//	hrtfgen -radius 0.09 -v .
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-binaural/hrtf"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	def := hrtf.DefaultSynthConfig()
	rates := flag.String("rates", strconv.Itoa(def.SampleRate), "Comma-separated sample rates in Hz")
	irLength := flag.Int("ir", def.IRLength, "Impulse response length in samples")
	step := flag.Int("step", def.Step, "Measurement grid step in degrees")
	radius := flag.Float64("radius", def.HeadRadius, "Head radius in meters")
	speed := flag.Float64("speed", def.SoundSpeed, "Speed of sound in m/s")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	dir := "."
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	sampleRates, err := parseRates(*rates)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, sr := range sampleRates {
		cfg := hrtf.SynthConfig{
			SampleRate: sr,
			IRLength:   *irLength,
			Step:       *step,
			HeadRadius: *radius,
			SoundSpeed: *speed,
		}
		g.Go(func() error {
			files, err := generate(cfg)
			if err != nil {
				return fmt.Errorf("%d Hz: %w", sr, err)
			}
			for name, data := range files {
				path := filepath.Join(dir, name)
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				if *verbose {
					log.Printf("Wrote %s (%d bytes)", path, len(data))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("Generated %d table set(s) in %s\n", len(sampleRates), dir)
	return nil
}

// generate synthesizes the three tables for cfg, keyed by file name.
func generate(cfg hrtf.SynthConfig) (map[string][]byte, error) {
	tab, err := hrtf.Synthesize(cfg)
	if err != nil {
		return nil, err
	}
	hrtfData, err := hrtf.EncodeHRTF(tab)
	if err != nil {
		return nil, err
	}

	files := map[string][]byte{
		hrtf.FileName(hrtf.KindHRTF, cfg.SampleRate): hrtfData,
	}
	for _, kind := range []hrtf.Kind{hrtf.KindNearFieldILD, hrtf.KindHighPerformanceILD} {
		ild, err := hrtf.SynthesizeILD(kind, cfg)
		if err != nil {
			return nil, err
		}
		data, err := hrtf.EncodeILD(ild)
		if err != nil {
			return nil, err
		}
		files[hrtf.FileName(kind, cfg.SampleRate)] = data
	}
	return files, nil
}

// parseRates parses a comma-separated list of sample rates.
func parseRates(s string) ([]int, error) {
	var rates []int
	seen := make(map[int]bool)
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		sr, err := strconv.Atoi(field)
		if err != nil || sr <= 0 {
			return nil, fmt.Errorf("invalid sample rate %q", field)
		}
		if !seen[sr] {
			seen[sr] = true
			rates = append(rates, sr)
		}
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("no sample rates given")
	}
	return rates, nil
}
