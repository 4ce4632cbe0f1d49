package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kamaw/photodup/internal"
	"github.com/kamaw/photodup/internal/cache"
	"github.com/kamaw/photodup/internal/fingerprint"
	"github.com/kamaw/photodup/internal/metrics"
)

func main() {
	app := &cli.App{
		Name:  "photodup",
		Usage: "find duplicate and near-duplicate photos and move them aside",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "dir",
				Aliases:  []string{"d"},
				Usage:    "source directory to scan (repeatable)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "exact",
				Usage: "only group byte-identical files",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "similarity threshold in [0, 0.99]",
				Value: 0.95,
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "append the run log to this file",
				Value: "photodup.log",
			},
			&cli.StringFlag{
				Name:  "cache",
				Usage: "bolt file caching fingerprints between runs",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "log planned moves without touching any file",
			},
			&cli.StringFlag{
				Name:  "statsd",
				Usage: "statsd UDP address for metrics (disabled when empty)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logPath, err := homedir.Expand(c.String("log"))
	if err != nil {
		return err
	}

	logger, err := buildLogger(logPath)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	mx := metrics.NoMetrics()
	if addr := c.String("statsd"); addr != "" {
		mx, err = metrics.NewMetrics(addr)
		if err != nil {
			return fmt.Errorf("connecting to statsd: %w", err)
		}
		defer func() {
			if err := mx.Close(); err != nil {
				logger.Warn("cannot close metrics client", zap.Error(err))
			}
		}()
	}

	var dirs []string
	for _, d := range c.StringSlice("dir") {
		expanded, err := homedir.Expand(d)
		if err != nil {
			return err
		}
		dirs = append(dirs, expanded)
	}

	var fpCache *cache.Cache
	if path := c.String("cache"); path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return err
		}
		fpCache, err = cache.Open(expanded)
		if err != nil {
			return fmt.Errorf("opening fingerprint cache: %w", err)
		}
		defer func() {
			if err := fpCache.Close(); err != nil {
				logger.Warn("cannot close fingerprint cache", zap.Error(err))
			}
		}()
	}

	fp := fingerprint.New(logger, mx, fpCache)
	runner := internal.NewRunner(logger, mx, fp, dirs,
		c.Bool("exact"), c.Float64("threshold"), c.Bool("dry-run"),
		runtime.NumCPU(), func(msg string) { fmt.Println(msg) })

	touched, err := runner.Run()
	if err != nil {
		return err
	}

	if len(touched) == 0 {
		fmt.Println("no duplicates moved")
		return nil
	}

	fmt.Println("duplicates moved to:")
	for _, dir := range touched {
		fmt.Printf("- %s\n", dir)
	}

	return nil
}

// buildLogger writes the full run log to path (append) and mirrors
// warnings and errors to stderr.
func buildLogger(path string) (*zap.Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(f), zapcore.DebugLevel),
		zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), zapcore.WarnLevel),
	)

	return zap.New(core), nil
}
