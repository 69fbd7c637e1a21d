package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"segnav/lib"
)

// maskscan runs the path finder over a saved segmentation mask.
func main() {
	parser := argparse.NewParser("maskscan", "Find the navigable path centroid in a segmentation mask image")
	input := parser.String("i", "input", &argparse.Options{Help: "Mask image (png, jpg)", Required: true})
	output := parser.String("o", "output", &argparse.Options{Help: "Write the highlighted image here"})
	pathColors := parser.String("", "path-colors", &argparse.Options{Help: "Semicolon separated path colours", Default: "85,85,255;255,170,127;85,170,127"})
	highlight := parser.String("", "highlight", &argparse.Options{Help: "Highlight colour", Default: "255,255,255"})
	roi := parser.Flag("", "roi", &argparse.Options{Help: "Crop the default ROI out of the mask before scanning"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		panic(err)
	}

	im, err := lib.ImageFromFile(*input)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *roi {
		im, err = lib.CropROI(im, lib.DefaultConfig().RoiBase)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	}

	colors, err := lib.ParseColors(*pathColors)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	set, err := lib.NewColorSet(colors...)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	hl, err := lib.ParseColor(*highlight)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	span, err := lib.HighlightMatches(im, set.WithChannels(im.Channels), hl.WithChannels(im.Channels))
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	c := lib.TrackedCentroid{Found: span.Found()}
	if span.Found() {
		cen := span.Centroid()
		c.X, c.Y, c.HasX, c.HasY = cen.X, cen.Y, true, true
		logger.Infof("%v path pixels between %v and %v", span.Count, span.First, span.Last)
	}
	lib.PrintCentroid(os.Stdout, c)

	if *output != "" {
		if err := im.Save(*output); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	}
}
