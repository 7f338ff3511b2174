// Package platform answers which runtime the gallery runs in and provides
// the image encoding strategy that goes with it.
package platform

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fedragon/go-gallery/internal/camera"
	"github.com/fedragon/go-gallery/internal/fs"
	"github.com/fedragon/go-gallery/internal/models"
)

type Runtime string

const (
	Native Runtime = "native"
	Web    Runtime = "web"
)

// FilePrefix is the path under which a webview origin serves local files.
const FilePrefix = "/_app_file_"

func Parse(s string) (Runtime, error) {
	switch Runtime(strings.ToLower(strings.TrimSpace(s))) {
	case Native:
		return Native, nil
	case Web, "":
		return Web, nil
	default:
		return "", fmt.Errorf("unknown runtime %q", s)
	}
}

func (r Runtime) IsNative() bool {
	return r == Native
}

// Files is the part of the filesystem provider the encoders need.
type Files interface {
	ReadFile(ctx context.Context, path string, dir fs.Directory) ([]byte, error)
}

// NewEncoder selects the encoding strategy for r.
func NewEncoder(r Runtime, files Files, origin string) Encoder {
	if r.IsNative() {
		return &NativeEncoder{Files: files, Origin: origin}
	}

	return &WebEncoder{Files: files, Client: http.DefaultClient}
}

type Encoder interface {
	// Read returns the bytes of a freshly captured photo.
	Read(ctx context.Context, photo camera.Photo) ([]byte, error)
	// Record builds the record of a photo saved as fileName.
	Record(fileName string, saved fs.WriteResult, photo camera.Photo) models.Photo
	// Hydrate prepares a persisted record for display.
	Hydrate(ctx context.Context, p models.Photo) (models.Photo, error)
	// Persist strips what Hydrate can rebuild before a record is stored.
	Persist(p models.Photo) models.Photo
}

// NativeEncoder reads captures straight from disk and renders stored files through the webview origin.
type NativeEncoder struct {
	Files  Files
	Origin string
}

func (e *NativeEncoder) Read(ctx context.Context, photo camera.Photo) ([]byte, error) {
	if photo.Path == "" {
		return nil, fmt.Errorf("captured photo has no path")
	}

	return e.Files.ReadFile(ctx, photo.Path, fs.None)
}

func (e *NativeEncoder) Record(_ string, saved fs.WriteResult, _ camera.Photo) models.Photo {
	return models.Photo{
		StoragePath: saved.URI,
		DisplayPath: ConvertFileSrc(e.Origin, saved.URI),
	}
}

func (e *NativeEncoder) Hydrate(_ context.Context, p models.Photo) (models.Photo, error) {
	return p, nil
}

func (e *NativeEncoder) Persist(p models.Photo) models.Photo {
	return p
}

// WebEncoder fetches captures by their web path and inlines stored files as data URIs.
type WebEncoder struct {
	Files  Files
	Client *http.Client
}

func (e *WebEncoder) Read(ctx context.Context, photo camera.Photo) ([]byte, error) {
	if photo.WebPath == "" {
		return nil, fmt.Errorf("captured photo has no web path")
	}

	if !strings.HasPrefix(photo.WebPath, "http://") && !strings.HasPrefix(photo.WebPath, "https://") {
		return e.Files.ReadFile(ctx, photo.WebPath, fs.None)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photo.WebPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to fetch %v: %v", photo.WebPath, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

func (e *WebEncoder) Record(fileName string, _ fs.WriteResult, photo camera.Photo) models.Photo {
	return models.Photo{
		StoragePath: fileName,
		DisplayPath: photo.WebPath,
	}
}

func (e *WebEncoder) Hydrate(ctx context.Context, p models.Photo) (models.Photo, error) {
	data, err := e.Files.ReadFile(ctx, p.StoragePath, fs.Data)
	if err != nil {
		return models.Photo{}, fmt.Errorf("unable to read %v: %w", p.StoragePath, err)
	}

	p.DisplayPath = DataURI(data)
	return p, nil
}

// Persist drops the display path: it is either a data URI or a transient web path.
func (e *WebEncoder) Persist(p models.Photo) models.Photo {
	p.DisplayPath = ""
	return p
}

// ConvertFileSrc rewrites a file:// URI so that a webview served from origin can load it.
func ConvertFileSrc(origin, uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}

	return strings.TrimSuffix(origin, "/") + FilePrefix + strings.TrimPrefix(uri, "file://")
}

func DataURI(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}
