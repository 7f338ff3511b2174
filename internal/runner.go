package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fedragon/go-gallery/internal/camera"
	"github.com/fedragon/go-gallery/internal/config"
	"github.com/fedragon/go-gallery/internal/core"
	"github.com/fedragon/go-gallery/internal/db"
	"github.com/fedragon/go-gallery/internal/fs"
	"github.com/fedragon/go-gallery/internal/gallery"
	"github.com/fedragon/go-gallery/internal/platform"

	"go.uber.org/zap"
)

// Runner wires the providers described by a Config into a loaded gallery session.
type Runner struct {
	logger *zap.Logger
	cfg    *config.Config
	prompt func(ctx context.Context) (string, error)

	Files    *fs.LocalFilesystem
	Session  *gallery.Session
	Verifier *core.Verifier

	store db.KeyValueStore
}

func NewRunner(logger *zap.Logger, cfg *config.Config, prompt func(ctx context.Context) (string, error)) *Runner {
	return &Runner{
		logger: logger,
		cfg:    cfg,
		prompt: prompt,
	}
}

// Open builds the session and loads the saved photos.
func (r *Runner) Open(ctx context.Context) error {
	rt, err := platform.Parse(r.cfg.Runtime)
	if err != nil {
		return err
	}

	files, err := fs.NewLocalFilesystem(r.cfg.DataDir, r.logger)
	if err != nil {
		return err
	}
	r.Files = files

	opts := gallery.Options{
		Camera:      &camera.FileCamera{Prompt: r.prompt, TempDir: files.Dir(fs.Cache)},
		Filesystem:  files,
		Encoder:     platform.NewEncoder(rt, files, r.cfg.Server.Origin),
		Quality:     r.cfg.Camera.Quality,
		LoadWorkers: r.cfg.LoadWorkers,
	}

	if r.cfg.Persistent() {
		if err := os.MkdirAll(filepath.Dir(r.cfg.Store.Path), 0o755); err != nil {
			return err
		}

		store, err := db.Open(r.cfg.Store.Driver, r.cfg.Store.Path)
		if err != nil {
			return err
		}
		r.store = store
		opts.Store = store
	} else {
		r.logger.Info("Running without persistence: photos will not survive this session")
	}

	session, err := gallery.NewSession(opts)
	if err != nil {
		return err
	}
	r.Session = session
	r.logger = r.logger.With(zap.String("session_id", session.ID()))

	r.Verifier = &core.Verifier{Files: files, NumWorkers: r.cfg.LoadWorkers, Logger: r.logger}

	r.logger.Info("Loading saved photos",
		zap.String("runtime", string(rt)),
		zap.String("store", r.cfg.Store.Driver),
		zap.String("data_dir", r.cfg.DataDir))
	if err := session.Load(ctx); err != nil {
		return fmt.Errorf("unable to load saved photos: %w", err)
	}
	r.logger.Info("Loaded saved photos", zap.Int("count", len(session.Photos())))

	return nil
}

func (r *Runner) Logger() *zap.Logger {
	return r.logger
}

func (r *Runner) Addr() string {
	return r.cfg.Server.Addr
}

func (r *Runner) Close() error {
	if r.store == nil {
		return nil
	}

	return r.store.Close()
}
