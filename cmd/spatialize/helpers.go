package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cwbudde/algo-binaural/binaural"
	"github.com/cwbudde/algo-binaural/hrtf"
	"github.com/cwbudde/algo-binaural/spatializer"
)

const wavFormatPCM = 1

// placement is an input file and where its source sits.
type placement struct {
	path      string
	azimuth   float64
	elevation float64
	distance  float64
}

// parsePlacement parses "path[@azimuth[,elevation[,distance]]]".
func parsePlacement(arg string, defElevation, defDistance float64) (placement, error) {
	p := placement{path: arg, elevation: defElevation, distance: defDistance}

	at := strings.LastIndexByte(arg, '@')
	if at < 0 {
		return p, nil
	}
	p.path = arg[:at]
	if p.path == "" {
		return p, fmt.Errorf("missing file name in %q", arg)
	}

	fields := strings.Split(arg[at+1:], ",")
	if len(fields) > 3 {
		return p, fmt.Errorf("too many coordinates in %q", arg)
	}
	dst := []*float64{&p.azimuth, &p.elevation, &p.distance}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return p, fmt.Errorf("invalid coordinate %q in %q", f, arg)
		}
		*dst[i] = v
	}
	if p.distance <= 0 {
		return p, fmt.Errorf("distance must be positive in %q", arg)
	}
	return p, nil
}

func parseMode(s string) (binaural.Mode, error) {
	for _, m := range []binaural.Mode{binaural.HighQuality, binaural.HighPerformance, binaural.None} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func validBitDepth(bits int) bool {
	return bits == 16 || bits == 24 || bits == 32
}

// input is a decoded source file.
type input struct {
	place      placement
	sampleRate int
	channels   int
	samples    []float32 // interleaved
}

func (in *input) frames() int { return len(in.samples) / in.channels }

// readInputs decodes every placement. All inputs must share a sample rate.
func readInputs(ps []placement) ([]*input, error) {
	inputs := make([]*input, 0, len(ps))
	for _, p := range ps {
		samples, sr, ch, err := readWAV(p.path)
		if err != nil {
			return nil, err
		}
		if len(inputs) > 0 && sr != inputs[0].sampleRate {
			return nil, fmt.Errorf("%s: sample rate %d Hz differs from %d Hz", p.path, sr, inputs[0].sampleRate)
		}
		inputs = append(inputs, &input{place: p, sampleRate: sr, channels: ch, samples: samples})
	}
	return inputs, nil
}

// readWAV decodes a PCM WAV file to interleaved samples in [-1, 1].
func readWAV(path string) (samples []float32, sampleRate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("invalid WAV file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read audio data: %w", err)
	}

	channels = int(dec.NumChans)
	if channels < 1 {
		return nil, 0, 0, fmt.Errorf("%s: no channels", path)
	}
	if !validBitDepth(int(dec.BitDepth)) {
		return nil, 0, 0, fmt.Errorf("%s: unsupported bit depth %d", path, dec.BitDepth)
	}
	return intToFloat(buf.Data, int(dec.BitDepth)), int(dec.SampleRate), channels, nil
}

func fullScale(bitDepth int) float64 {
	return float64(int64(1)<<(bitDepth-1)) - 1
}

func intToFloat(data []int, bitDepth int) []float32 {
	inv := 1 / fullScale(bitDepth)
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

func floatToInt(data []float32, bitDepth int) []int {
	scale := fullScale(bitDepth)
	out := make([]int, len(data))
	for i, v := range data {
		s := min(1, max(-1, float64(v)))
		out[i] = int(s * scale)
	}
	return out
}

// writeStereoWAV encodes interleaved stereo samples as PCM.
func writeStereoWAV(path string, samples []float32, sampleRate, bitDepth int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, 2, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           floatToInt(samples, bitDepth),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	return enc.Close()
}

type engineConfig struct {
	sampleRate int
	blockSize  int
	mode       binaural.Mode
	tablesDir  string
	limiter    bool
	debug      bool
	logger     *slog.Logger
}

// engine drives a spatializer the way a host would: one plugin, one voice
// per source, parameters through the float channel.
type engine struct {
	plugin     *spatializer.Plugin
	cfg        engineConfig
	sources    []*source
	configured bool
}

type source struct {
	in    *input
	voice *spatializer.Voice
	block []float32
	out   []float32
}

func newEngine(cfg engineConfig) (*engine, error) {
	if cfg.blockSize < binaural.MinBlockSize || cfg.blockSize > binaural.MaxBlockSize {
		return nil, fmt.Errorf("block size must be in [%d, %d]: %d",
			binaural.MinBlockSize, binaural.MaxBlockSize, cfg.blockSize)
	}
	opts := []spatializer.Option{}
	if cfg.logger != nil {
		opts = append(opts, spatializer.WithLogger(cfg.logger))
	}
	if cfg.tablesDir != "" {
		opts = append(opts, spatializer.WithResolver(spatializer.FileResolver{Root: cfg.tablesDir}))
	}
	return &engine{plugin: spatializer.NewPlugin(opts...), cfg: cfg}, nil
}

// addSource creates a voice for in. The first call creates the engine
// state and loads the tables.
func (e *engine) addSource(in *input) error {
	v, st := e.plugin.CreateVoice(e.cfg.sampleRate, e.cfg.blockSize)
	if st != spatializer.StatusOK {
		return fmt.Errorf("failed to create voice for %s: %s", in.place.path, st)
	}
	e.sources = append(e.sources, &source{
		in:    in,
		voice: v,
		block: make([]float32, e.cfg.blockSize*in.channels),
		out:   make([]float32, 2*e.cfg.blockSize),
	})

	if e.configured {
		return nil
	}
	e.configured = true
	return e.configure()
}

func (e *engine) configure() error {
	set := func(id spatializer.ParamID, v float64) error {
		if st := e.plugin.SetFloat(id, v); st != spatializer.StatusOK {
			return fmt.Errorf("failed to set %s: %s", id, st)
		}
		return nil
	}
	if err := set(spatializer.ParamDebugLog, boolValue(e.cfg.debug)); err != nil {
		return err
	}
	if err := set(spatializer.ParamSpatializationMode, float64(e.cfg.mode)); err != nil {
		return err
	}
	if err := set(spatializer.ParamLimiterSetOn, boolValue(e.cfg.limiter)); err != nil {
		return err
	}

	if e.cfg.tablesDir != "" {
		if err := e.sendTableNames(); err != nil {
			return err
		}
	} else if err := e.loadSynthesized(); err != nil {
		return err
	}

	return e.plugin.State().CheckReady()
}

// sendTableNames uploads the table file names one byte per write, as a
// host does.
func (e *engine) sendTableNames() error {
	uploads := []struct {
		kind             hrtf.Kind
		byteID, lengthID spatializer.ParamID
	}{
		{hrtf.KindHRTF, spatializer.ParamHRTFFileString, spatializer.ParamHRTFFileLength},
		{hrtf.KindNearFieldILD, spatializer.ParamNearFieldILDFileString, spatializer.ParamNearFieldILDFileLength},
		{hrtf.KindHighPerformanceILD, spatializer.ParamHighPerformanceILDFileString, spatializer.ParamHighPerformanceILDFileLength},
	}
	state := e.plugin.State()
	for _, u := range uploads {
		name := hrtf.FileName(u.kind, e.cfg.sampleRate)
		for i := 0; i < len(name); i++ {
			if err := state.SetParameter(u.byteID, float64(name[i])); err != nil {
				return err
			}
		}
		if err := state.SetParameter(u.lengthID, float64(len(name))); err != nil {
			return err
		}
	}
	return nil
}

// loadSynthesized installs spherical-head tables for the engine rate.
func (e *engine) loadSynthesized() error {
	cfg := hrtf.DefaultSynthConfig()
	cfg.SampleRate = e.cfg.sampleRate

	tab, err := hrtf.Synthesize(cfg)
	if err != nil {
		return err
	}
	blobs := make(map[spatializer.Resource][]byte, 3)
	if blobs[spatializer.ResourceHRTF], err = hrtf.EncodeHRTF(tab); err != nil {
		return err
	}
	for r, kind := range map[spatializer.Resource]hrtf.Kind{
		spatializer.ResourceNearFieldILD:       hrtf.KindNearFieldILD,
		spatializer.ResourceHighPerformanceILD: hrtf.KindHighPerformanceILD,
	} {
		ild, err := hrtf.SynthesizeILD(kind, cfg)
		if err != nil {
			return err
		}
		if blobs[r], err = hrtf.EncodeILD(ild); err != nil {
			return err
		}
	}

	state := e.plugin.State()
	for r := spatializer.ResourceHRTF; r <= spatializer.ResourceHighPerformanceILD; r++ {
		if _, err := state.LoadBinary(r, string(blobs[r])); err != nil {
			return err
		}
	}
	return nil
}

// render mixes every source into one interleaved stereo buffer. orbit
// rotates all sources by that many degrees per second.
func (e *engine) render(orbit float64) ([]float32, error) {
	if len(e.sources) == 0 {
		return nil, errors.New("no sources")
	}

	frames := 0
	for _, s := range e.sources {
		frames = max(frames, s.in.frames())
	}
	mix := make([]float32, 2*frames)
	bs := e.cfg.blockSize
	sr := float64(e.cfg.sampleRate)

	for off := 0; off < frames; off += bs {
		n := min(bs, frames-off)
		turn := orbit * float64(off) / sr

		var g errgroup.Group
		for _, s := range e.sources {
			s.voice.SetPose(s.pose(turn))
			g.Go(func() error {
				s.fill(off, n)
				ch := s.in.channels
				if st := s.voice.Process(s.block[:n*ch], s.out[:2*n], ch, 2, n); st != spatializer.StatusOK {
					return fmt.Errorf("%s: render %s", s.in.place.path, st)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		dst := mix[2*off : 2*(off+n)]
		for _, s := range e.sources {
			for i, v := range s.out[:2*n] {
				dst[i] += v
			}
		}
	}
	return mix, nil
}

// Close releases the voices and the engine state.
func (e *engine) Close() {
	for _, s := range e.sources {
		e.plugin.ReleaseVoice(s.voice)
	}
	e.plugin.Close()
}

// fill copies n frames starting at off into the block buffer, padding
// past the end of the input with silence.
func (s *source) fill(off, n int) {
	ch := s.in.channels
	block := s.block[:n*ch]
	start := min(off*ch, len(s.in.samples))
	end := min((off+n)*ch, len(s.in.samples))
	copied := copy(block, s.in.samples[start:end])
	clear(block[copied:])
}

func (s *source) pose(turn float64) binaural.Pose {
	p := s.in.place
	dir := hrtf.Direction(hrtf.WrapAzimuth(p.azimuth+turn), p.elevation)
	return binaural.Pose{
		Listener: binaural.Identity(),
		Source:   r3.Scale(p.distance, dir),
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
