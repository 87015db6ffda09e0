package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/BearBump/VinBox/internal/cache/memcache"
	"github.com/BearBump/VinBox/internal/integrations/decoder"
	"github.com/BearBump/VinBox/internal/integrations/decoder/fake"
	"github.com/BearBump/VinBox/internal/integrations/decoder/proxy"
	"github.com/BearBump/VinBox/internal/integrations/decoder/vpic"
	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/scanner"
	"github.com/BearBump/VinBox/internal/services/vehicles"
)

var errNoCandidate = errors.New("no candidate found in frames")

type scanOutput struct {
	SessionID string                `json:"sessionId,omitempty"`
	Frames    int                   `json:"frames,omitempty"`
	Candidate *models.ScanCandidate `json:"candidate,omitempty"`
	Vehicle   *models.VehicleRecord `json:"vehicle,omitempty"`
}

func newScanCommand(ctx context.Context, out io.Writer) *cobra.Command {
	opts := newScanOptions()
	cmd := &cobra.Command{
		Use:           "vin-scan",
		Short:         "Scan frames for a VIN or barcode and decode the vehicle.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Validate(); err != nil {
				return err
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return runScan(ctx, opts, out)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func newVehicleService(opts *scanOptions) *vehicles.Service {
	var registry decoder.Provider
	if opts.VPICURL == "fake" {
		registry = fake.New()
	} else {
		registry = vpic.New(opts.VPICURL).WithTimeout(opts.Timeout)
	}

	var p vehicles.Proxy
	if opts.ProxyURL != "" {
		p = proxy.New(opts.ProxyURL).WithTimeout(opts.Timeout)
	}

	c := memcache.New(memcache.WithFailureTTL(opts.FailureTTL))
	return vehicles.New(c, registry, p, vehicles.WithTimeout(opts.Timeout))
}

func runScan(ctx context.Context, opts *scanOptions, out io.Writer) error {
	svc := newVehicleService(opts)
	var creds *vehicles.Credentials
	if opts.Token != "" {
		creds = &vehicles.Credentials{Token: opts.Token}
	}

	if opts.VIN != "" {
		rec := svc.Decode(ctx, opts.VIN, creds)
		return writeJSON(out, scanOutput{Vehicle: &rec})
	}

	src, err := scanner.NewDirSource(opts.Frames)
	if err != nil {
		return err
	}

	decoded := make(chan models.VehicleRecord, 1)
	sess := scanner.NewSession(src, opts.classifier(),
		scanner.WithInterval(opts.Interval),
		scanner.WithDecoder(func(ctx context.Context, v string) {
			decoded <- svc.Decode(ctx, v, creds)
		}),
	)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if opts.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Deadline)
	}
	defer cancel()

	c, ok, err := sess.Run(runCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			slog.Info("scan deadline reached", "session", sess.ID, "frames", sess.Frames())
			return errNoCandidate
		}
		return err
	}
	if !ok {
		return errNoCandidate
	}

	res := scanOutput{SessionID: sess.ID, Frames: sess.Frames(), Candidate: &c}
	if c.Kind == models.ScanKindVin {
		select {
		case rec := <-decoded:
			res.Vehicle = &rec
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return writeJSON(out, res)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "write output")
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errNoCandidate):
		return 2
	default:
		return 1
	}
}
