package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/BearBump/VinBox/internal/cache/memcache"
	"github.com/BearBump/VinBox/internal/scanner"
	"github.com/BearBump/VinBox/internal/services/vehicles"
)

const (
	classifierHeuristic = "heuristic"
	classifierDecoding  = "decoding"
)

type scanOptions struct {
	Frames     string
	VIN        string
	ProxyURL   string
	Token      string
	VPICURL    string
	Classifier string
	Interval   time.Duration
	Deadline   time.Duration
	Timeout    time.Duration
	FailureTTL time.Duration
	Verbose    bool
}

func newScanOptions() *scanOptions {
	return &scanOptions{
		Classifier: classifierHeuristic,
		Interval:   scanner.DefaultInterval,
		Deadline:   30 * time.Second,
		Timeout:    vehicles.DefaultTimeout,
		FailureTTL: memcache.DefaultFailureTTL,
	}
}

func (o *scanOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Frames, "frames", o.Frames, "Directory with png/jpeg frames to scan (looped).")
	fs.StringVar(&o.VIN, "vin", o.VIN, "Decode this VIN directly, without scanning.")
	fs.StringVar(&o.ProxyURL, "proxy", o.ProxyURL, "Base URL of the vin-api decode proxy.")
	fs.StringVar(&o.Token, "token", o.Token, "Bearer token for the decode proxy. Empty means registry only.")
	fs.StringVar(&o.VPICURL, "vpic", o.VPICURL, `Base URL of the vPIC registry ("fake" for offline decoding).`)
	fs.StringVar(&o.Classifier, "classifier", o.Classifier, "Frame classifier: heuristic or decoding.")
	fs.DurationVar(&o.Interval, "interval", o.Interval, "Frame sampling period.")
	fs.DurationVar(&o.Deadline, "deadline", o.Deadline, "Give up scanning after this long (0 = until interrupted).")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Upper bound for one decode round trip.")
	fs.DurationVar(&o.FailureTTL, "failure-ttl", o.FailureTTL, "How long a failed decode stays cached.")
	fs.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "Debug logging.")
}

func (o *scanOptions) Validate() error {
	o.VIN = strings.TrimSpace(o.VIN)
	if o.VIN == "" && o.Frames == "" {
		return errors.New("one of --vin or --frames is required")
	}
	if o.VIN != "" && o.Frames != "" {
		return errors.New("--vin and --frames are mutually exclusive")
	}
	switch o.Classifier {
	case classifierHeuristic, classifierDecoding:
	default:
		return errors.Errorf("unknown classifier %q", o.Classifier)
	}
	if o.Token != "" && o.ProxyURL == "" {
		return errors.New("--token requires --proxy")
	}
	return nil
}

func (o *scanOptions) classifier() scanner.FrameClassifier {
	if o.Classifier == classifierDecoding {
		// настоящий декодер первым, эвристика как запасной путь
		return scanner.FirstOf{scanner.NewDecodingClassifier(), scanner.NewHeuristicClassifier(scanner.DefaultHeuristicConfig())}
	}
	return scanner.NewHeuristicClassifier(scanner.DefaultHeuristicConfig())
}
