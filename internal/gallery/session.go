// Package gallery keeps the ordered list of photos of one session and
// coordinates capturing and persisting new ones.
package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fedragon/go-gallery/internal/camera"
	"github.com/fedragon/go-gallery/internal/fs"
	"github.com/fedragon/go-gallery/internal/models"
	"github.com/fedragon/go-gallery/internal/platform"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// StorageKey is where the serialized photo list lives in the key-value store.
const StorageKey = "photos"

var (
	ErrCaptureInFlight = errors.New("a capture is already in progress")
	ErrCorruptState    = errors.New("corrupt persisted state")
)

type Camera interface {
	Capture(ctx context.Context, opts camera.Options) (camera.Photo, error)
}

type Filesystem interface {
	ReadFile(ctx context.Context, path string, dir fs.Directory) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte, dir fs.Directory) (fs.WriteResult, error)
}

type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

type Options struct {
	Camera     Camera
	Filesystem Filesystem
	// Store is optional: without it nothing is persisted and Load yields an empty list.
	Store   KeyValueStore
	Encoder platform.Encoder
	// Quality is passed to the camera; defaults to 100.
	Quality int
	// LoadWorkers bounds concurrent hydration during Load; defaults to 1.
	LoadWorkers int
	Now         func() time.Time
}

type Session struct {
	id      string
	camera  Camera
	files   Filesystem
	store   KeyValueStore
	encoder platform.Encoder
	quality int
	workers int
	now     func() time.Time

	capturing *semaphore.Weighted

	mu     sync.RWMutex
	photos []models.Photo
}

func NewSession(opts Options) (*Session, error) {
	if opts.Camera == nil || opts.Filesystem == nil || opts.Encoder == nil {
		return nil, errors.New("camera, filesystem and encoder are required")
	}

	s := &Session{
		id:        uuid.NewString(),
		camera:    opts.Camera,
		files:     opts.Filesystem,
		store:     opts.Store,
		encoder:   opts.Encoder,
		quality:   opts.Quality,
		workers:   opts.LoadWorkers,
		now:       opts.Now,
		capturing: semaphore.NewWeighted(1),
		photos:    []models.Photo{},
	}
	if s.quality <= 0 {
		s.quality = 100
	}
	if s.workers <= 0 {
		s.workers = 1
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Photos returns a copy of the list, most recent first.
func (s *Session) Photos() []models.Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Photo, len(s.photos))
	copy(out, s.photos)
	return out
}

// Load replaces the list with the persisted one. On error the list is left untouched.
func (s *Session) Load(ctx context.Context) error {
	if s.store == nil {
		s.replace([]models.Photo{})
		return nil
	}

	raw, found, err := s.store.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("unable to read %v: %w", StorageKey, err)
	}

	stored := []models.Photo{}
	if found {
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
	}
	for i, p := range stored {
		if p.StoragePath == "" {
			return fmt.Errorf("%w: photo %d has no storage path", ErrCorruptState, i)
		}
	}

	hydrated, err := s.hydrate(ctx, stored)
	if err != nil {
		return err
	}

	s.replace(hydrated)
	return nil
}

func (s *Session) hydrate(ctx context.Context, stored []models.Photo) ([]models.Photo, error) {
	out := make([]models.Photo, len(stored))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range stored {
		g.Go(func() error {
			h, err := s.encoder.Hydrate(ctx, p)
			if err != nil {
				return err
			}
			out[i] = h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// TakePhoto captures a photo, saves it and prepends it to the list.
// Only one capture may be in flight; a concurrent call fails with ErrCaptureInFlight.
func (s *Session) TakePhoto(ctx context.Context) (models.Photo, error) {
	if !s.capturing.TryAcquire(1) {
		return models.Photo{}, ErrCaptureInFlight
	}
	defer s.capturing.Release(1)

	captured, err := s.camera.Capture(ctx, camera.Options{
		ResultKind: camera.ResultURI,
		Source:     camera.SourceCamera,
		Quality:    s.quality,
	})
	if err != nil {
		return models.Photo{}, err
	}

	var photo models.Photo
	defer func() {
		if photo.DisplayPath != captured.WebPath && photo.DisplayPath != captured.Path {
			s.release(captured)
		}
	}()

	fileName := strconv.FormatInt(s.now().UnixMilli(), 10) + fs.JPEG

	data, err := s.encoder.Read(ctx, captured)
	if err != nil {
		return models.Photo{}, fmt.Errorf("unable to read capture: %w", err)
	}

	saved, err := s.files.WriteFile(ctx, fileName, data, fs.Data)
	if err != nil {
		return models.Photo{}, fmt.Errorf("unable to save %v: %w", fileName, err)
	}

	record := s.encoder.Record(fileName, saved, captured)

	// s.capturing keeps other captures out until the new list is swapped in
	s.mu.RLock()
	updated := make([]models.Photo, 0, len(s.photos)+1)
	updated = append(updated, record)
	updated = append(updated, s.photos...)
	s.mu.RUnlock()

	if s.store != nil {
		persisted := make([]models.Photo, len(updated))
		for i, p := range updated {
			persisted[i] = s.encoder.Persist(p)
		}

		marshalled, err := json.Marshal(persisted)
		if err != nil {
			return models.Photo{}, err
		}
		if err := s.store.Set(ctx, StorageKey, string(marshalled)); err != nil {
			return models.Photo{}, fmt.Errorf("unable to persist %v: %w", StorageKey, err)
		}
	}

	s.replace(updated)
	photo = record
	return photo, nil
}

// release hands a transient capture back to the camera when nothing refers to it anymore.
func (s *Session) release(captured camera.Photo) {
	if r, ok := s.camera.(interface{ Release(camera.Photo) error }); ok {
		_ = r.Release(captured)
	}
}

func (s *Session) replace(photos []models.Photo) {
	s.mu.Lock()
	s.photos = photos
	s.mu.Unlock()
}
