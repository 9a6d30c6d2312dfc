// Command spatialize renders mono or multichannel WAV files to a binaural
// stereo WAV file. Every input becomes one source placed around the
// listener; sources of one block are rendered concurrently.
//
// Usage:
//
//	spatialize [options] output.wav input.wav[@azimuth[,elevation[,distance]]] ...
//
// Examples:
//
//	spatialize out.wav voice.wav@90                    # Hard left, 1 m
//	spatialize -tables tables out.wav a.wav@30 b.wav@-30,0,3
//	spatialize -mode high-performance -orbit 45 out.wav drums.wav
//
// Without -tables, spherical-head tables are synthesized for the input
// sample rate.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/algo-binaural/spatializer"
)

const (
	defaultBlockSize = 512
	defaultBitDepth  = 16
	minRequiredArgs  = 2
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	tables := flag.String("tables", "", "Directory with hrtfgen tables (synthesized when empty)")
	mode := flag.String("mode", "high-quality", "Spatialization mode: high-quality, high-performance, none")
	blockSize := flag.Int("block", defaultBlockSize, "Processing block size in frames")
	bitDepth := flag.Int("bits", defaultBitDepth, "Output bit depth: 16, 24 or 32")
	distance := flag.Float64("distance", 1, "Default source distance in meters")
	elevation := flag.Float64("elevation", 0, "Default source elevation in degrees")
	orbit := flag.Float64("orbit", 0, "Rotate every source around the listener, degrees per second")
	limiter := flag.Bool("limiter", true, "Enable the output limiter")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	args := flag.Args()
	if len(args) < minRequiredArgs {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] output.wav input.wav[@az[,el[,dist]]] ...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		return fmt.Errorf("insufficient arguments")
	}

	m, err := parseMode(*mode)
	if err != nil {
		return err
	}
	if !validBitDepth(*bitDepth) {
		return fmt.Errorf("unsupported bit depth %d", *bitDepth)
	}

	placements := make([]placement, 0, len(args)-1)
	for _, arg := range args[1:] {
		p, err := parsePlacement(arg, *elevation, *distance)
		if err != nil {
			return err
		}
		placements = append(placements, p)
	}

	inputs, err := readInputs(placements)
	if err != nil {
		return err
	}
	sampleRate := inputs[0].sampleRate

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	eng, err := newEngine(engineConfig{
		sampleRate: sampleRate,
		blockSize:  *blockSize,
		mode:       m,
		tablesDir:  *tables,
		limiter:    *limiter,
		debug:      *verbose,
		logger:     logger,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	for _, in := range inputs {
		if err := eng.addSource(in); err != nil {
			return err
		}
	}

	start := time.Now()
	mix, err := eng.render(*orbit)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	outputPath := args[0]
	if err := writeStereoWAV(outputPath, mix, sampleRate, *bitDepth); err != nil {
		return err
	}

	frames := len(mix) / 2
	fmt.Printf("Rendered %d source(s) -> %s\n", len(inputs), filepath.Base(outputPath))
	fmt.Printf("  %d Hz, %d frames, mode %s\n", sampleRate, frames, m)
	if compression, ok := eng.plugin.GetFloat(spatializer.ParamLimiterGetCompression); ok && *limiter {
		fmt.Printf("  Limiter: %.1f dB gain reduction on the last block\n", compression)
	}
	if elapsed > 0 {
		fmt.Printf("  Duration: %.2fs, Speed: %.1fx realtime\n",
			elapsed.Seconds(), float64(frames)/float64(sampleRate)/elapsed.Seconds())
	}
	return nil
}
