package library

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/phuonglh2812/videomaker/internal/store"
)

func TestLayoutEnsure(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.Ensure(); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{
		l.PoolDir(Landscape), l.PoolDir(Portrait),
		l.RawDir(), l.CutDir(), l.UsedDir(), l.TempDir(), l.FinalDir(),
	} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
	if filepath.Base(l.PoolDir(Portrait)) != "Input_9_16" {
		t.Errorf("portrait pool dir = %s", l.PoolDir(Portrait))
	}
}

func TestOrientationDimensions(t *testing.T) {
	if w, h := Landscape.Dimensions(); w != 1920 || h != 1080 {
		t.Errorf("landscape = %dx%d", w, h)
	}
	if w, h := Portrait.Dimensions(); w != 1080 || h != 1920 {
		t.Errorf("portrait = %dx%d", w, h)
	}
}

func TestListClips(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp4", "a.MP4", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	clips, err := ListClips(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(clips) != 2 {
		t.Fatalf("got %d clips, want 2: %v", len(clips), clips)
	}
	if filepath.Base(clips[0]) != "a.MP4" || filepath.Base(clips[1]) != "b.mp4" {
		t.Errorf("clips not sorted: %v", clips)
	}
}

func TestListClipsMissingDir(t *testing.T) {
	clips, err := ListClips(filepath.Join(t.TempDir(), "nope"))
	if err != nil || clips != nil {
		t.Errorf("ListClips missing dir = %v, %v; want nil, nil", clips, err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"clean-name.mp4", "clean-name.mp4"},
		{"a/b\\c:d", "a_b_c_d"},
		{"  spaced  ", "spaced"},
		{"tab\there", "tabhere"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in, 0); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := SanitizeName("abcdefgh", 4); got != "abcd" {
		t.Errorf("truncation = %q, want abcd", got)
	}
}

func TestValidateFileName(t *testing.T) {
	if err := ValidateFileName("video.mp4"); err != nil {
		t.Errorf("plain name rejected: %v", err)
	}
	for _, bad := range []string{"", "..", "a/b.mp4", "../x.mp4"} {
		if err := ValidateFileName(bad); err == nil {
			t.Errorf("ValidateFileName(%q) accepted", bad)
		}
	}
}

// fakeClipRepo implements just the clip cache slice of store.Repository.
type fakeClipRepo struct {
	store.Repository
	clips map[string]*store.ClipInfo
}

func newFakeClipRepo() *fakeClipRepo {
	return &fakeClipRepo{clips: map[string]*store.ClipInfo{}}
}

func (f *fakeClipRepo) GetClipInfo(ctx context.Context, path string) (*store.ClipInfo, error) {
	return f.clips[path], nil
}

func (f *fakeClipRepo) UpsertClipInfo(ctx context.Context, info *store.ClipInfo) error {
	cp := *info
	f.clips[info.Path] = &cp
	return nil
}

func (f *fakeClipRepo) DeleteClipInfo(ctx context.Context, path string) error {
	delete(f.clips, path)
	return nil
}

func (f *fakeClipRepo) ListClipInfos(ctx context.Context) ([]*store.ClipInfo, error) {
	var out []*store.ClipInfo
	for _, c := range f.clips {
		out = append(out, c)
	}
	return out, nil
}

type fakeProber struct {
	duration float64
	calls    int
}

func (f *fakeProber) Duration(ctx context.Context, path string) float64 {
	f.calls++
	return f.duration
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCacheProbesOnceWhileUnchanged(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(clip, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	prober := &fakeProber{duration: 7.5}
	cache := NewCache(newFakeClipRepo(), prober, testLogger())

	ctx := context.Background()
	if got := cache.Duration(ctx, clip); got != 7.5 {
		t.Fatalf("first Duration = %v", got)
	}
	if got := cache.Duration(ctx, clip); got != 7.5 {
		t.Fatalf("second Duration = %v", got)
	}
	if prober.calls != 1 {
		t.Errorf("probed %d times, want 1", prober.calls)
	}
}

func TestCacheDoesNotCacheFailedProbes(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(clip, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := newFakeClipRepo()
	prober := &fakeProber{duration: 0}
	cache := NewCache(repo, prober, testLogger())

	if got := cache.Duration(context.Background(), clip); got != 0 {
		t.Fatalf("Duration = %v, want 0", got)
	}
	if len(repo.clips) != 0 {
		t.Error("failed probe was cached")
	}
}

func TestCacheMissingFile(t *testing.T) {
	cache := NewCache(newFakeClipRepo(), &fakeProber{duration: 9}, testLogger())
	if got := cache.Duration(context.Background(), filepath.Join(t.TempDir(), "gone.mp4")); got != 0 {
		t.Errorf("Duration = %v, want 0", got)
	}
}

func TestEvictMissing(t *testing.T) {
	dir := t.TempDir()
	alive := filepath.Join(dir, "alive.mp4")
	if err := os.WriteFile(alive, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := newFakeClipRepo()
	repo.clips[alive] = &store.ClipInfo{Path: alive, Duration: 3}
	gone := filepath.Join(dir, "gone.mp4")
	repo.clips[gone] = &store.ClipInfo{Path: gone, Duration: 4}

	cache := NewCache(repo, &fakeProber{}, testLogger())
	n, err := cache.EvictMissing(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if _, ok := repo.clips[alive]; !ok {
		t.Error("live entry evicted")
	}
	if _, ok := repo.clips[gone]; ok {
		t.Error("missing entry kept")
	}
}
