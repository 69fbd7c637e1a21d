package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"segnav/lib"
)

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "segnet: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("segnet", "Segment a live camera stream or video and locate the navigable path")
	input := parser.StringPositional(&argparse.Options{Help: "URI of the input stream (camera, file, rtsp://, image glob)"})
	output := parser.StringPositional(&argparse.Options{Help: "URI of the output stream (display://0, file.mp4, out-%05d.png, null://)"})
	configPath := parser.String("", "config", &argparse.Options{Help: "YAML config file, overridden by flags"})
	network := parser.String("", "network", &argparse.Options{Help: "Pre-trained model to load, eg fcn-resnet18-voc"})
	model := parser.String("", "model", &argparse.Options{Help: "Path to a custom model file"})
	labels := parser.String("", "labels", &argparse.Options{Help: "Path to classes.txt"})
	colors := parser.String("", "colors", &argparse.Options{Help: "Path to colors.txt"})
	backend := parser.Selector("", "backend", []string{"opencv", "subprocess"}, &argparse.Options{Help: "Inference backend"})
	device := parser.Selector("", "device", []string{"cuda", "cpu"}, &argparse.Options{Help: "Inference device"})
	filterMode := parser.Selector("", "filter-mode", []string{"point", "linear"}, &argparse.Options{Help: "Filtering mode used during visualization"})
	visualize := parser.String("", "visualize", &argparse.Options{Help: "Visualization options, 'overlay', 'mask' or 'overlay,mask'"})
	ignoreClass := parser.String("", "ignore-class", &argparse.Options{Help: "Class to ignore during segmentation"})
	alpha := parser.Float("", "alpha", &argparse.Options{Help: "Alpha blending value for the overlay, 0-255", Default: -1.0})
	stats := parser.Flag("", "stats", &argparse.Options{Help: "Compute statistics about segmentation mask class output"})
	headless := parser.Flag("", "headless", &argparse.Options{Help: "Do not open a display window"})
	pathColors := parser.String("", "path-colors", &argparse.Options{Help: "Semicolon separated mask colours of the path classes, eg '85,85,255;255,170,127'"})
	highlight := parser.String("", "highlight", &argparse.Options{Help: "Colour written over path pixels, eg '255,255,255'"})
	parity := parser.Flag("", "parity", &argparse.Options{Help: "Keep a centroid axis from earlier frames when the last match sits on coordinate 0"})
	drawCentroid := parser.Flag("", "draw-centroid", &argparse.Options{Help: "Draw a marker at the centroid in the ROI view"})
	plotPath := parser.String("", "plot", &argparse.Options{Help: "Save a plot of the centroid over time to this PNG"})
	progress := parser.Flag("", "progress", &argparse.Options{Help: "Show a progress bar"})
	markerColor := parser.String("", "marker-color", &argparse.Options{Help: "Colour of the centroid marker, eg '255,0,0'"})
	markerRadius := parser.Float("", "marker-radius", &argparse.Options{Help: "Radius of the centroid marker in pixels", Default: 0.0})
	inputSize := parser.String("", "input-size", &argparse.Options{Help: "Requested input frame size, eg 1280x720"})
	networkSize := parser.String("", "network-size", &argparse.Options{Help: "Network input blob size, eg 320x320"})
	saveConfig := parser.String("", "save-config", &argparse.Options{Help: "Write the merged configuration to this YAML file"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	cfg := lib.DefaultConfig()
	if *configPath != "" {
		cfg, err = lib.GetConfig(*configPath)
		check(err)
	}
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.VideoBase.Input, *input)
	setString(&cfg.VideoBase.Output, *output)
	setString(&cfg.Network.Name, *network)
	setString(&cfg.Network.Model, *model)
	setString(&cfg.Network.Labels, *labels)
	setString(&cfg.Network.Colors, *colors)
	setString(&cfg.Network.Backend, *backend)
	setString(&cfg.Network.Device, *device)
	setString(&cfg.VisualizeBase.FilterMode, *filterMode)
	setString(&cfg.VisualizeBase.Visualize, *visualize)
	setString(&cfg.VisualizeBase.IgnoreClass, *ignoreClass)
	setString(&cfg.PathBase.Highlight, *highlight)
	setString(&cfg.PathBase.MarkerColor, *markerColor)
	setString(&cfg.LogBase.Plot, *plotPath)
	if *pathColors != "" {
		parsed, err := lib.ParseColors(*pathColors)
		check(err)
		cfg.PathBase.Colors = nil
		for _, c := range parsed {
			cfg.PathBase.Colors = append(cfg.PathBase.Colors, c.String())
		}
	}
	if *alpha >= 0 {
		cfg.VisualizeBase.Alpha = *alpha
	}
	if *markerRadius > 0 {
		cfg.PathBase.MarkerRadius = *markerRadius
	}
	if *inputSize != "" {
		dims, err := lib.ParseDims(*inputSize)
		check(err)
		cfg.VideoBase.InputWidth, cfg.VideoBase.InputHeight = dims[0], dims[1]
	}
	if *networkSize != "" {
		cfg.Network.InputSize, err = lib.ParseDims(*networkSize)
		check(err)
	}
	cfg.VisualizeBase.Stats = cfg.VisualizeBase.Stats || *stats
	cfg.VisualizeBase.Headless = cfg.VisualizeBase.Headless || *headless
	cfg.PathBase.Parity = cfg.PathBase.Parity || *parity
	cfg.PathBase.DrawCentroid = cfg.PathBase.DrawCentroid || *drawCentroid
	cfg.LogBase.Progress = cfg.LogBase.Progress || *progress
	check(cfg.Validate())
	if *saveConfig != "" {
		check(lib.SaveYaml(cfg, *saveConfig))
		logger.Infof("Configuration saved to %v", *saveConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := lib.OpenVideoSource(ctx, logger, cfg.VideoBase.Input, lib.SourceOptions{
		Width:  cfg.VideoBase.InputWidth,
		Height: cfg.VideoBase.InputHeight,
		Buffer: cfg.VideoBase.Buffer,
	})
	check(err)
	defer src.Close()

	out, err := lib.OpenVideoOutput(logger, cfg.VideoBase.Output, lib.OutputOptions{
		Headless: cfg.VisualizeBase.Headless,
		FPS:      cfg.VideoBase.FPS,
		Codec:    cfg.VideoBase.Codec,
	})
	check(err)
	defer out.Close()

	seg, err := lib.NewSegmenter(logger, cfg.Network)
	check(err)
	defer seg.Close()

	pipeline, err := lib.NewPipeline(logger, cfg, seg, src, out)
	check(err)
	if err := pipeline.Run(ctx); err != nil {
		logger.Errorf("segnet stopped after %v frames: %v", pipeline.Frames(), err)
		os.Exit(1)
	}
	logger.Infof("segnet: shutting down after %v frames", pipeline.Frames())
}
