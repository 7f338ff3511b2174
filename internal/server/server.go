package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/fedragon/go-gallery/internal/camera"
	"github.com/fedragon/go-gallery/internal/fs"
	"github.com/fedragon/go-gallery/internal/gallery"
	"github.com/fedragon/go-gallery/internal/platform"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxUpload = 32 << 20

type Server struct {
	Session *gallery.Session
	Files   *fs.LocalFilesystem
	Logger  *zap.Logger
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/photos", s.listPhotos)
	r.Post("/photos", s.takePhoto)
	r.Get(platform.FilePrefix+"/*", s.serveFile)

	return r
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.Logger.Info("Serving gallery", zap.String("addr", addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) listPhotos(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Session.Photos())
}

// takePhoto captures the image uploaded as the "image" form field.
func (s *Server) takePhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	src, err := s.saveUpload(r)
	if err != nil {
		s.Logger.Warn("Cannot read upload", zap.Error(err))
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if src != "" {
		defer os.Remove(src)
		ctx = camera.WithSource(ctx, src)
	}

	photo, err := s.Session.TakePhoto(ctx)
	switch {
	case errors.Is(err, gallery.ErrCaptureInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, camera.ErrCancelled), errors.Is(err, camera.ErrUnreadable):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		s.Logger.Error("Cannot take photo", zap.Error(err))
		http.Error(w, "unable to take photo", http.StatusInternalServerError)
	default:
		s.Logger.Info("Took photo", zap.String("storage_path", photo.StoragePath))
		s.writeJSON(w, http.StatusCreated, photo)
	}
}

func (s *Server) saveUpload(r *http.Request) (string, error) {
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	tmp, err := os.CreateTemp(s.Files.Dir(fs.Cache), "upload-*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}

	return tmp.Name(), nil
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	p, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	path, err := s.Files.Resolve("/"+p, fs.Data)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, path)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Cannot write response", zap.Error(err))
	}
}
