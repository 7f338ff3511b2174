package core

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"sort"

	"github.com/fedragon/go-gallery/internal/fs"
	"github.com/fedragon/go-gallery/internal/models"

	"go.uber.org/zap"
)

// Verifier compares a photo list against the files in the Data directory.
type Verifier struct {
	Files      *fs.LocalFilesystem
	NumWorkers int
	Logger     *zap.Logger
}

// Verify reports photos whose file is missing, image files no photo refers to,
// and photos with identical content.
func (v *Verifier) Verify(parentCtx context.Context, photos []models.Photo) (models.Report, error) {
	report := models.Report{
		Photos:     len(photos),
		Missing:    []string{},
		Orphans:    []string{},
		Duplicates: []models.Duplicate{},
	}

	referenced := make(map[string]string, len(photos))
	for _, p := range photos {
		path, err := v.Files.Resolve(p.StoragePath, fs.Data)
		if err != nil {
			return report, err
		}

		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			v.Logger.Warn("Photo file is missing", zap.String("storage_path", p.StoragePath))
			report.Missing = append(report.Missing, p.StoragePath)
			continue
		} else if err != nil {
			return report, err
		}

		referenced[path] = p.StoragePath
	}

	ctx, cancel := context.WithCancel(parentCtx)
	media := fs.Walk(v.Files.Dir(fs.Data), fs.ImageTypes)
	defer func() {
		cancel()
		// unblock the walker if we bailed out early
		for range media {
		}
	}()

	numWorkers := v.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	workers := make([]<-chan models.Media, numWorkers)
	for i := 0; i < numWorkers; i++ {
		workers[i] = hash(ctx, v.Logger, i, media)
	}

	byHash := make(map[string][]string)
	var hashed int
	for m := range merge(ctx, workers...) {
		if m.Err != nil {
			return report, m.Err
		}

		name, ok := referenced[m.Path]
		if !ok {
			report.Orphans = append(report.Orphans, m.Path)
			name = m.Path
		}

		key := hex.EncodeToString(m.Hash)
		byHash[key] = append(byHash[key], name)

		hashed++
		if hashed%1000 == 0 {
			v.Logger.Info("Hashed a(nother) batch of files", zap.Int("count", hashed))
		}
	}
	if err := parentCtx.Err(); err != nil {
		return report, err
	}

	for h, paths := range byHash {
		if len(paths) > 1 {
			sort.Strings(paths)
			report.Duplicates = append(report.Duplicates, models.Duplicate{Hash: h, Paths: paths})
		}
	}
	sort.Strings(report.Orphans)
	sort.Slice(report.Duplicates, func(i, j int) bool {
		return report.Duplicates[i].Paths[0] < report.Duplicates[j].Paths[0]
	})

	v.Logger.Info("Verified photos",
		zap.Int("photos", report.Photos),
		zap.Int("missing", len(report.Missing)),
		zap.Int("orphans", len(report.Orphans)),
		zap.Int("duplicates", len(report.Duplicates)))

	return report, nil
}

func hash(ctx context.Context, logger *zap.Logger, id int, media <-chan models.Media) <-chan models.Media {
	hashed := make(chan models.Media)
	log := logger.With(zap.Int("worker_id", id))

	go func() {
		defer close(hashed)

		for m := range media {
			if m.Err == nil {
				h, err := fs.Hash(m.Path)
				if err != nil {
					log.Error("Cannot hash file", zap.String("path", m.Path), zap.Error(err))
					m.Err = err
				}
				m.Hash = h
			}

			select {
			case <-ctx.Done():
				return
			case hashed <- m:
			}
		}
	}()

	return hashed
}
