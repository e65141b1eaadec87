// Package attachment downloads photos from the chat transport and stores
// them durably, either in object storage or in a local directory.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/freightbot/internal/schema"
	"github.com/user/freightbot/internal/types"
)

// Status is the outcome of resolving an attachment.
type Status int

const (
	StatusNotProvided Status = iota
	StatusStored
	StatusDownloadFailed
)

func (s Status) String() string {
	switch s {
	case StatusStored:
		return "stored"
	case StatusDownloadFailed:
		return "download_failed"
	default:
		return "not_provided"
	}
}

// Result describes where a resolved attachment ended up. Reference is a
// URL for remote storage or a file name for local storage; LocalPath is
// set only for local storage.
type Result struct {
	Status    Status
	Reference string
	LocalPath string
}

// Value is the text stored in the intake record for this result.
func (r Result) Value() string {
	switch r.Status {
	case StatusStored:
		return r.Reference
	case StatusDownloadFailed:
		return schema.DownloadFailed
	default:
		return schema.NotProvided
	}
}

// FileLocator turns a transport file id into a download URL.
type FileLocator interface {
	FileURL(fileID string) (string, error)
}

// Uploader stores a local file remotely and returns a URL to it.
type Uploader interface {
	Upload(ctx context.Context, key, path, contentType string) (string, error)
}

// Opts holds configuration options for the Resolver.
type Opts struct {
	Uploader   Uploader
	HTTPClient *http.Client
	Timeout    time.Duration
	TempDir    string
	PhotoDir   string
}

// Option defines a configuration option for the Resolver.
type Option func(*Opts)

func WithUploader(u Uploader) Option {
	return func(o *Opts) { o.Uploader = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithDirs sets the scratch directory for downloads and the durable photo
// directory used when no uploader is configured.
func WithDirs(tempDir, photoDir string) Option {
	return func(o *Opts) {
		o.TempDir = tempDir
		o.PhotoDir = photoDir
	}
}

// Resolver fetches attachments. Failures never propagate as errors; they
// become StatusDownloadFailed.
type Resolver struct {
	locator FileLocator
	opts    Opts
	now     func() time.Time
}

// NewResolver creates a Resolver backed by the given locator.
func NewResolver(locator FileLocator, opts ...Option) *Resolver {
	cfg := Opts{
		HTTPClient: http.DefaultClient,
		Timeout:    30 * time.Second,
		TempDir:    os.TempDir(),
		PhotoDir:   "photos",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Resolver{locator: locator, opts: cfg, now: time.Now}
}

// Resolve downloads the photo referenced by ref and stores it. A nil ref
// resolves to StatusNotProvided.
func (r *Resolver) Resolve(ctx context.Context, userID types.UserID, ref *types.PhotoRef) Result {
	if ref == nil || ref.FileID == "" {
		return Result{Status: StatusNotProvided}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	res, err := r.resolve(ctx, userID, ref)
	if err != nil {
		slog.Warn("attachment download failed", "user_id", string(userID), "file_id", ref.FileID, "error", err)
		return Result{Status: StatusDownloadFailed}
	}
	slog.Info("attachment stored", "user_id", string(userID), "reference", res.Reference)
	return res
}

func (r *Resolver) resolve(ctx context.Context, userID types.UserID, ref *types.PhotoRef) (Result, error) {
	if r.locator == nil {
		return Result{}, errors.New("no file locator configured")
	}
	url, err := r.locator.FileURL(ref.FileID)
	if err != nil {
		return Result{}, fmt.Errorf("locate file: %w", err)
	}

	tmp, err := r.download(ctx, url)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(tmp)

	name := photoName(userID, ref, r.now())

	if r.opts.Uploader != nil {
		location, err := r.opts.Uploader.Upload(ctx, name, tmp, "image/jpeg")
		if err != nil {
			return Result{}, fmt.Errorf("upload: %w", err)
		}
		return Result{Status: StatusStored, Reference: location}, nil
	}

	if err := os.MkdirAll(r.opts.PhotoDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create photo dir: %w", err)
	}
	dest := filepath.Join(r.opts.PhotoDir, name)
	if err := moveFile(tmp, dest); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusStored, Reference: name, LocalPath: dest}, nil
}

// photoName is photo_<user>_<YYYYMMDD_HHMMSS>_<unique>.jpg. The Telegram
// unique file id keeps same-second photos apart; a random suffix stands in
// when the transport gave none.
func photoName(userID types.UserID, ref *types.PhotoRef, at time.Time) string {
	unique := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, ref.UniqueID)
	if unique == "" {
		unique = uuid.NewString()[:8]
	}
	return fmt.Sprintf("photo_%s_%s_%s.jpg", userID, at.Format("20060102_150405"), unique)
}

// download fetches url into a new temp file and returns its path.
func (r *Resolver) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch file: HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(r.opts.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	f, err := os.CreateTemp(r.opts.TempDir, "photo-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create photo file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy photo file: %w", err)
	}
	return out.Close()
}
