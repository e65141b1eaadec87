package attachment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/freightbot/internal/schema"
	"github.com/user/freightbot/internal/types"
)

type fakeLocator struct {
	url string
	err error
}

func (f *fakeLocator) FileURL(fileID string) (string, error) {
	return f.url + "/" + fileID, f.err
}

type fakeUploader struct {
	key  string
	data []byte
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, key, path, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.key = key
	f.data, _ = os.ReadFile(path)
	return "https://cdn.example.com/" + key, nil
}

func photoServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Write([]byte("jpeg-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(t *testing.T, locator FileLocator, opts ...Option) (*Resolver, string, string) {
	t.Helper()
	root := t.TempDir()
	tmp := filepath.Join(root, "tmp")
	photos := filepath.Join(root, "photos")
	r := NewResolver(locator, append([]Option{WithDirs(tmp, photos)}, opts...)...)
	r.now = func() time.Time { return time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC) }
	return r, tmp, photos
}

func assertTempEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func TestResolveNil(t *testing.T) {
	r, _, _ := newTestResolver(t, &fakeLocator{})
	res := r.Resolve(context.Background(), "1", nil)
	if res.Status != StatusNotProvided || res.Value() != schema.NotProvided {
		t.Errorf("expected not provided, got %+v", res)
	}
}

func TestResolveLocal(t *testing.T) {
	srv := photoServer(t, 0)
	r, tmp, photos := newTestResolver(t, &fakeLocator{url: srv.URL})

	res := r.Resolve(context.Background(), "42", &types.PhotoRef{FileID: "abc", UniqueID: "AQADx1"})
	if res.Status != StatusStored {
		t.Fatalf("expected stored, got %s", res.Status)
	}
	if res.Reference != "photo_42_20260305_103000_AQADx1.jpg" {
		t.Errorf("unexpected reference %q", res.Reference)
	}
	data, err := os.ReadFile(filepath.Join(photos, res.Reference))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("unexpected content %q", data)
	}
	if res.LocalPath != filepath.Join(photos, res.Reference) {
		t.Errorf("unexpected local path %q", res.LocalPath)
	}
	assertTempEmpty(t, tmp)
}

func TestResolveUploads(t *testing.T) {
	srv := photoServer(t, 0)
	up := &fakeUploader{}
	r, tmp, _ := newTestResolver(t, &fakeLocator{url: srv.URL}, WithUploader(up))

	res := r.Resolve(context.Background(), "42", &types.PhotoRef{FileID: "abc", UniqueID: "AQADx1"})
	if res.Status != StatusStored {
		t.Fatalf("expected stored, got %s", res.Status)
	}
	if res.Reference != "https://cdn.example.com/photo_42_20260305_103000_AQADx1.jpg" {
		t.Errorf("unexpected reference %q", res.Reference)
	}
	if res.LocalPath != "" {
		t.Error("expected no local path for remote storage")
	}
	if string(up.data) != "jpeg-bytes" {
		t.Errorf("uploader got %q", up.data)
	}
	assertTempEmpty(t, tmp)
}

func TestResolveFailures(t *testing.T) {
	srv := photoServer(t, 0)

	cases := map[string]struct {
		locator FileLocator
		fileID  string
		opts    []Option
	}{
		"locator error": {locator: &fakeLocator{err: errors.New("no such file")}, fileID: "x"},
		"http 404":      {locator: &fakeLocator{url: srv.URL}, fileID: "missing"},
		"upload error":  {locator: &fakeLocator{url: srv.URL}, fileID: "x", opts: []Option{WithUploader(&fakeUploader{err: errors.New("denied")})}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r, tmp, _ := newTestResolver(t, tc.locator, tc.opts...)
			res := r.Resolve(context.Background(), "42", &types.PhotoRef{FileID: tc.fileID})
			if res.Status != StatusDownloadFailed {
				t.Errorf("expected download failed, got %s", res.Status)
			}
			if res.Value() != schema.DownloadFailed {
				t.Errorf("unexpected value %q", res.Value())
			}
			assertTempEmpty(t, tmp)
		})
	}
}

func TestResolveTimeout(t *testing.T) {
	srv := photoServer(t, 2*time.Second)
	r, _, _ := newTestResolver(t, &fakeLocator{url: srv.URL}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	res := r.Resolve(context.Background(), "42", &types.PhotoRef{FileID: "slow"})
	if res.Status != StatusDownloadFailed {
		t.Errorf("expected download failed, got %s", res.Status)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout was not enforced")
	}
}

func TestResolveSameSecondPhotosKeptApart(t *testing.T) {
	srv := photoServer(t, 0)
	r, _, photos := newTestResolver(t, &fakeLocator{url: srv.URL})

	refs := []*types.PhotoRef{
		{FileID: "a", UniqueID: "AQAD01"},
		{FileID: "b", UniqueID: "AQAD02"},
		{FileID: "c"},
		{FileID: "d"},
	}
	seen := map[string]bool{}
	for _, ref := range refs {
		res := r.Resolve(context.Background(), "42", ref)
		if res.Status != StatusStored {
			t.Fatalf("expected stored, got %s", res.Status)
		}
		if seen[res.Reference] {
			t.Errorf("photo name %q reused", res.Reference)
		}
		seen[res.Reference] = true
	}

	entries, err := os.ReadDir(photos)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(refs) {
		t.Errorf("expected %d photos on disk, got %d", len(refs), len(entries))
	}
}

func TestPhotoNameSanitizesUniqueID(t *testing.T) {
	at := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
	got := photoName("42", &types.PhotoRef{UniqueID: "../AQ/AD"}, at)
	if got != "photo_42_20260305_103000_AQAD.jpg" {
		t.Errorf("unexpected name %q", got)
	}
}
