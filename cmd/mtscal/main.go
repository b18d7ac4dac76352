// Command mtscal turns raw calibration measurements into the calibration
// table file the daemon loads at startup.
//
// Each path is measured through both combiners; the two runs are smoothed
// and averaged row by row.
package main

import (
	"fmt"
	"os"

	"github.com/KevinKickass/OpenMTS/internal/calibration"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type measurementSet struct {
	ucs [2]string
	cs  [2]string
}

func main() {
	flags := pflag.NewFlagSet("mtscal", pflag.ExitOnError)
	kind := flags.StringP("kind", "k", "noise", "measurement kind: noise or cw")
	out := flags.StringP("out", "o", "", "calibration table file to write")
	ucs := flags.StringSlice("ucs", nil, "uncorrelated-source measurements via comb1,comb2")
	cs := flags.StringSlice("cs", nil, "correlated-source measurements via comb1,comb2")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	flags.Parse(os.Args[1:])

	logger := zap.Must(zap.NewProduction())
	if *verbose {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	if *out == "" || len(*ucs) != 2 || len(*cs) != 2 {
		fmt.Fprintln(os.Stderr, "usage: mtscal --kind noise|cw --ucs a,b --cs a,b --out file")
		flags.PrintDefaults()
		os.Exit(2)
	}

	set := measurementSet{
		ucs: [2]string{(*ucs)[0], (*ucs)[1]},
		cs:  [2]string{(*cs)[0], (*cs)[1]},
	}

	if err := build(*kind, set, *out, logger); err != nil {
		logger.Fatal("Calibration build failed", zap.Error(err))
	}
}

func build(kind string, set measurementSet, out string, logger *zap.Logger) error {
	var load func(path string) ([]calibration.Sample, error)
	switch kind {
	case "noise":
		load = calibration.LoadNoiseMeasurements
	case "cw":
		load = calibration.LoadCWMeasurements
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}

	average := func(path string, files [2]string) ([]calibration.Sample, error) {
		a, err := load(files[0])
		if err != nil {
			return nil, err
		}
		b, err := load(files[1])
		if err != nil {
			return nil, err
		}
		logger.Info("Measurements loaded",
			zap.String("path", path),
			zap.Strings("files", files[:]),
			zap.Int("rows", len(a)))
		return calibration.Average(a, b)
	}

	ucs, err := average("ucs", set.ucs)
	if err != nil {
		return err
	}
	cs, err := average("cs", set.cs)
	if err != nil {
		return err
	}

	if err := calibration.SavePair(out, ucs, cs); err != nil {
		return err
	}

	logger.Info("Calibration table written",
		zap.String("kind", kind),
		zap.String("file", out),
		zap.Int("rows", len(ucs)))
	return nil
}
