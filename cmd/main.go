package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fedragon/go-gallery/internal"
	"github.com/fedragon/go-gallery/internal/camera"
	"github.com/fedragon/go-gallery/internal/config"
	"github.com/fedragon/go-gallery/internal/server"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	app := &cli.App{
		Name:  "gallery",
		Usage: "Capture photos into a local gallery and list them back",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"GALLERY_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory holding photos and the photo list",
			},
			&cli.StringFlag{
				Name:  "runtime",
				Usage: "Rendering runtime: native or web",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print the saved photos, most recent first",
				Action: func(c *cli.Context) error {
					return withRunner(c, nil, func(ctx context.Context, r *internal.Runner) error {
						return printJSON(r.Session.Photos())
					})
				},
			},
			{
				Name:  "take",
				Usage: "Capture a photo and save it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "from",
						Usage: "Image to capture; prompts when missing",
					},
				},
				Action: func(c *cli.Context) error {
					return withRunner(c, newPrompt(os.Stdin, os.Stderr), func(ctx context.Context, r *internal.Runner) error {
						if from := c.String("from"); from != "" {
							ctx = camera.WithSource(ctx, from)
						}

						photo, err := r.Session.TakePhoto(ctx)
						if err != nil {
							return err
						}

						r.Logger().Info("Took photo", zap.String("storage_path", photo.StoragePath))
						return printJSON(photo)
					})
				},
			},
			{
				Name:  "verify",
				Usage: "Report missing, orphaned and duplicated photos",
				Action: func(c *cli.Context) error {
					return withRunner(c, nil, func(ctx context.Context, r *internal.Runner) error {
						report, err := r.Verifier.Verify(ctx, r.Session.Photos())
						if err != nil {
							return err
						}
						return printJSON(report)
					})
				},
			},
			{
				Name:  "serve",
				Usage: "Serve the gallery over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Address to listen on",
					},
				},
				Action: func(c *cli.Context) error {
					return withRunner(c, nil, func(ctx context.Context, r *internal.Runner) error {
						srv := &server.Server{Session: r.Session, Files: r.Files, Logger: r.Logger()}
						return srv.Run(ctx, r.Addr())
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withRunner(c *cli.Context, ask func(context.Context) (string, error), fn func(context.Context, *internal.Runner) error) error {
	cfg, err := config.Load(c.String("config"), func(cfg *config.Config) {
		if c.IsSet("data-dir") {
			cfg.DataDir = c.String("data-dir")
		}
		if c.IsSet("runtime") {
			cfg.Runtime = c.String("runtime")
		}
		if c.IsSet("debug") {
			cfg.Debug = c.Bool("debug")
		}
		if addr := c.String("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
	})
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := internal.NewRunner(logger, cfg, ask)
	defer func() {
		if err := r.Close(); err != nil {
			logger.Error("Cannot close store", zap.Error(err))
		}
	}()

	if err := r.Open(ctx); err != nil {
		return err
	}

	return fn(ctx, r)
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

// newPrompt asks on out for the image to capture and reads the answer from in.
// Cancelling ctx abandons the read.
func newPrompt(in io.Reader, out io.Writer) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		fmt.Fprint(out, "Path to the image to capture (empty to cancel): ")

		answers := make(chan string, 1)
		go func() {
			answer, err := bufio.NewReader(in).ReadString('\n')
			if err != nil && answer == "" {
				answers <- ""
				return
			}
			answers <- answer
		}()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case answer := <-answers:
			return answer, nil
		}
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
