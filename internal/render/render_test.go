package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phuonglh2812/videomaker/internal/ffmpeg"
	"github.com/phuonglh2812/videomaker/internal/library"
	"github.com/phuonglh2812/videomaker/internal/subtitles"
)

// fakeRunner simulates the media engine: Encode materializes the output
// file and derives its duration from the command (trim windows, concat
// manifests, input passthrough), so the whole pipeline runs end to end
// without spawning a process.
type fakeRunner struct {
	mu        sync.Mutex
	durations map[string]float64
	gpuListed bool

	// failWhen, when set, is consulted before executing an encode.
	failWhen func(args []string) error

	encodeCalls [][]string
}

func newFakeRunner(gpu bool) *fakeRunner {
	return &fakeRunner{durations: map[string]float64{}, gpuListed: gpu}
}

func (f *fakeRunner) setDuration(path string, d float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[path] = d
}

func (f *fakeRunner) duration(path string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.durations[path]
	return d, ok
}

func (f *fakeRunner) calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string{}, f.encodeCalls...)
}

func (f *fakeRunner) countCalls(substr string) int {
	n := 0
	for _, call := range f.calls() {
		if strings.Contains(strings.Join(call, " "), substr) {
			n++
		}
	}
	return n
}

func (f *fakeRunner) Encode(ctx context.Context, args []string) error {
	f.mu.Lock()
	f.encodeCalls = append(f.encodeCalls, append([]string{}, args...))
	f.mu.Unlock()

	if f.failWhen != nil {
		if err := f.failWhen(args); err != nil {
			return err
		}
	}

	out := args[len(args)-1]
	dur := f.deriveDuration(args)
	if err := os.WriteFile(out, []byte("media"), 0o644); err != nil {
		return err
	}
	f.setDuration(out, dur)
	return nil
}

func (f *fakeRunner) deriveDuration(args []string) float64 {
	if v := argValue(args, "-t"); v != "" {
		d, _ := strconv.ParseFloat(v, 64)
		return d
	}
	if contains(args, "concat") {
		manifest := argValue(args, "-i")
		return f.sumManifest(manifest)
	}
	if in := argValue(args, "-i"); in != "" {
		if d, ok := f.duration(in); ok {
			return d
		}
	}
	return 1.0
}

func (f *fakeRunner) sumManifest(manifest string) float64 {
	file, err := os.Open(manifest)
	if err != nil {
		return 0
	}
	defer file.Close()

	total := 0.0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "file '")
		line = strings.TrimSuffix(line, "'")
		if d, ok := f.duration(line); ok {
			total += d
		}
	}
	return total
}

func (f *fakeRunner) Probe(ctx context.Context, args []string) (string, error) {
	path := args[len(args)-1]
	if contains(args, "stream=width,height") {
		return "1920x1080", nil
	}
	if d, ok := f.duration(path); ok {
		return strconv.FormatFloat(d, 'f', 3, 64), nil
	}
	return "", &ffmpeg.EncodeError{ExitCode: 1, StderrTail: "unknown file"}
}

func (f *fakeRunner) ListEncoders(ctx context.Context) (string, error) {
	if f.gpuListed {
		return "V..... h264_nvenc  NVIDIA NVENC H.264 encoder", nil
	}
	return "V..... libx264", nil
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func contains(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}

func failOn(substr string, times int) func(args []string) error {
	count := 0
	return func(args []string) error {
		if strings.Contains(strings.Join(args, " "), substr) {
			if times < 0 || count < times {
				count++
				return &ffmpeg.EncodeError{ExitCode: 1, StderrTail: "simulated failure"}
			}
		}
		return nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	runner  *fakeRunner
	encoder *ffmpeg.Encoder
	prober  *ffmpeg.Prober
	cutter  *Cutter
	layout  *library.Layout
	temps   *TempFileSet
}

func newHarness(t *testing.T, gpu bool) *harness {
	t.Helper()
	runner := newFakeRunner(gpu)
	logger := testLogger()
	layout := library.NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatal(err)
	}
	encoder := ffmpeg.NewEncoder(runner, logger, ffmpeg.DefaultProfile())
	return &harness{
		runner:  runner,
		encoder: encoder,
		prober:  ffmpeg.NewProber(runner, logger),
		cutter:  NewCutter(runner, encoder, logger),
		layout:  layout,
		temps:   NewTempFileSet(layout.TempDir(), "testjob", logger),
	}
}

// seedPool creates n pool clips of the given duration and returns their paths.
func (h *harness) seedPool(t *testing.T, o library.Orientation, n int, dur float64) []string {
	t.Helper()
	var paths []string
	for i := 0; i < n; i++ {
		p := filepath.Join(h.layout.PoolDir(o), fmt.Sprintf("clip_%02d.mp4", i))
		if err := os.WriteFile(p, []byte("media"), 0o644); err != nil {
			t.Fatal(err)
		}
		h.runner.setDuration(p, dur)
		paths = append(paths, p)
	}
	return paths
}

func (h *harness) selector() *Selector {
	return NewSelector(h.prober, h.cutter, testLogger(), rand.New(rand.NewSource(42)))
}

func sumDurations(segs []Segment) float64 {
	total := 0.0
	for _, s := range segs {
		total += s.Duration
	}
	return total
}

func TestSelectorFillsTargetExactly(t *testing.T) {
	h := newHarness(t, false)
	pool := h.seedPool(t, library.Landscape, 10, 2.0)

	segs, err := h.selector().Select(context.Background(), 3.2, pool, map[string]bool{},
		SelectOptions{Temps: h.temps, Cut: CutOptions{StreamCopy: true}})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if d := sumDurations(segs); math.Abs(d-3.2) > 1e-9 {
		t.Errorf("summed duration = %v, want 3.2", d)
	}
	if !segs[1].Temp || segs[0].Temp {
		t.Errorf("expected whole clip then cut temp: %+v", segs)
	}
}

func TestSelectorSharedExclusionAvoidsReuse(t *testing.T) {
	h := newHarness(t, false)
	pool := h.seedPool(t, library.Landscape, 10, 2.0)
	exclude := map[string]bool{}
	opts := SelectOptions{Temps: h.temps, Cut: CutOptions{StreamCopy: true}}
	sel := h.selector()
	ctx := context.Background()

	hookSegs, err := sel.Select(ctx, 3.2, pool, exclude, opts)
	if err != nil {
		t.Fatal(err)
	}
	mainSegs, err := sel.Select(ctx, 5.8, pool, exclude, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(mainSegs) != 3 {
		t.Fatalf("main selected %d segments, want 3", len(mainSegs))
	}
	if d := sumDurations(mainSegs); math.Abs(d-5.8) > 1e-9 {
		t.Errorf("main summed duration = %v, want 5.8", d)
	}

	used := map[string]bool{}
	for _, s := range hookSegs {
		if !s.Temp {
			used[s.Path] = true
		}
	}
	for _, s := range mainSegs {
		if !s.Temp && used[s.Path] {
			t.Errorf("clip %s reused across selections while pool had spares", s.Path)
		}
	}
}

func TestSelectorReplenishesExhaustedPool(t *testing.T) {
	h := newHarness(t, false)
	pool := h.seedPool(t, library.Landscape, 1, 2.0)

	segs, err := h.selector().Select(context.Background(), 5.0, pool, map[string]bool{},
		SelectOptions{Temps: h.temps, Cut: CutOptions{StreamCopy: true}})
	if err != nil {
		t.Fatal(err)
	}
	if d := sumDurations(segs); math.Abs(d-5.0) > 1e-9 {
		t.Errorf("summed duration = %v, want 5.0", d)
	}
	if len(segs) != 3 {
		t.Errorf("got %d segments, want 3 (clip reused)", len(segs))
	}
}

func TestSelectorEmptyPool(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.selector().Select(context.Background(), 3.0, nil, map[string]bool{},
		SelectOptions{Temps: h.temps, Cut: CutOptions{StreamCopy: true}})
	if !errors.Is(err, ErrInsufficientMedia) {
		t.Errorf("err = %v, want ErrInsufficientMedia", err)
	}
}

func TestSelectorAllUnusablePool(t *testing.T) {
	h := newHarness(t, false)
	pool := h.seedPool(t, library.Landscape, 3, 0)

	_, err := h.selector().Select(context.Background(), 3.0, pool, map[string]bool{},
		SelectOptions{Temps: h.temps, Cut: CutOptions{StreamCopy: true}})
	if !errors.Is(err, ErrInsufficientMedia) {
		t.Errorf("err = %v, want ErrInsufficientMedia", err)
	}
}

func TestSelectorBoundedReplenishment(t *testing.T) {
	h := newHarness(t, false)
	pool := h.seedPool(t, library.Landscape, 1, 0.1)

	// One tiny clip cannot fill an hour; selection must give up instead of
	// cycling forever.
	_, err := h.selector().Select(context.Background(), 3600, pool, map[string]bool{},
		SelectOptions{Temps: h.temps, Cut: CutOptions{StreamCopy: true}})
	if !errors.Is(err, ErrInsufficientMedia) {
		t.Errorf("err = %v, want ErrInsufficientMedia", err)
	}
}

func TestCutterFallsBackToCPUExactlyOnce(t *testing.T) {
	h := newHarness(t, true)
	input := filepath.Join(h.layout.TempDir(), "in.mp4")
	if err := os.WriteFile(input, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.runner.setDuration(input, 10)
	h.runner.failWhen = failOn("h264_nvenc", -1)

	out := filepath.Join(h.layout.TempDir(), "out.mp4")
	if err := h.cutter.Cut(context.Background(), input, 1, 4, out, CutOptions{}); err != nil {
		t.Fatal(err)
	}
	if n := h.runner.countCalls("h264_nvenc"); n != 1 {
		t.Errorf("hardware attempts = %d, want 1", n)
	}
	if n := h.runner.countCalls("libx264"); n != 1 {
		t.Errorf("software attempts = %d, want 1", n)
	}
}

func TestCutterStreamCopy(t *testing.T) {
	h := newHarness(t, true)
	input := filepath.Join(h.layout.TempDir(), "in.mp4")
	if err := os.WriteFile(input, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(h.layout.TempDir(), "out.mp4")
	if err := h.cutter.Cut(context.Background(), input, 0, 2.5, out, CutOptions{StreamCopy: true}); err != nil {
		t.Fatal(err)
	}
	call := strings.Join(h.runner.calls()[0], " ")
	if !strings.Contains(call, "-c copy") || strings.Contains(call, "nvenc") {
		t.Errorf("stream copy produced wrong command: %s", call)
	}
	if d, _ := h.runner.duration(out); d != 2.5 {
		t.Errorf("output duration = %v, want 2.5", d)
	}
}

func TestConcatenateStreamCopyCleansManifest(t *testing.T) {
	h := newHarness(t, false)
	var inputs []string
	for i := 0; i < 2; i++ {
		p := filepath.Join(h.layout.TempDir(), fmt.Sprintf("part%d.mp4", i))
		if err := os.WriteFile(p, []byte("media"), 0o644); err != nil {
			t.Fatal(err)
		}
		h.runner.setDuration(p, 2)
		inputs = append(inputs, p)
	}

	concat := NewConcatenator(h.runner, h.encoder, testLogger())
	out := filepath.Join(h.layout.TempDir(), "joined.mp4")
	if err := concat.Concatenate(context.Background(), inputs, out, StreamCopy, h.temps); err != nil {
		t.Fatal(err)
	}
	if d, _ := h.runner.duration(out); d != 4 {
		t.Errorf("joined duration = %v, want 4", d)
	}

	matches, _ := filepath.Glob(filepath.Join(h.layout.TempDir(), "*concat_list*"))
	if len(matches) != 0 {
		t.Errorf("manifest not cleaned up: %v", matches)
	}
}

func TestConcatenateRejectsQuotedPaths(t *testing.T) {
	h := newHarness(t, false)
	dir := filepath.Join(h.layout.TempDir(), "odd's")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	concat := NewConcatenator(h.runner, h.encoder, testLogger())
	err := concat.Concatenate(context.Background(), []string{bad}, filepath.Join(h.layout.TempDir(), "o.mp4"), StreamCopy, h.temps)
	if err == nil || !strings.Contains(err.Error(), "single quote") {
		t.Errorf("err = %v, want single-quote rejection", err)
	}
}

func TestCompositorStripsHardwareArgsOnRetry(t *testing.T) {
	h := newHarness(t, true)
	bg := filepath.Join(h.layout.TempDir(), "bg.mp4")
	thumb := filepath.Join(h.layout.TempDir(), "thumb.png")
	audio := filepath.Join(h.layout.TempDir(), "audio.wav")
	for _, p := range []string{bg, thumb, audio} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h.runner.setDuration(bg, 3.2)
	h.runner.failWhen = failOn("h264_nvenc", -1)

	comp := NewCompositor(h.runner, h.encoder, h.prober, testLogger())
	out := filepath.Join(h.layout.TempDir(), "hook.mp4")
	if err := comp.Composite(context.Background(), bg, thumb, audio, out); err != nil {
		t.Fatal(err)
	}

	calls := h.runner.calls()
	if len(calls) != 2 {
		t.Fatalf("encode calls = %d, want 2", len(calls))
	}
	first := strings.Join(calls[0], " ")
	second := strings.Join(calls[1], " ")
	if !strings.Contains(first, "overlay=0:0") || !strings.Contains(first, "fade=t=in:st=0:d=0.5") {
		t.Errorf("filter graph wrong: %s", first)
	}
	if strings.Contains(second, "nvenc") || !strings.Contains(second, "libx264") {
		t.Errorf("retry kept hardware args: %s", second)
	}
	if calls[1][len(calls[1])-1] != out {
		t.Errorf("retry output path not last: %s", second)
	}
}

func TestBurnerFailsWithSubtitleBurnError(t *testing.T) {
	h := newHarness(t, false)
	burner := NewBurner(h.runner, h.encoder, testLogger())

	err := burner.Burn(context.Background(), BurnSpec{
		Background: "bg.mp4",
		Audio:      "a.wav",
		Subtitle:   filepath.Join(t.TempDir(), "missing.srt"),
		Style:      subtitles.DefaultStyle(false),
		Width:      1920,
		Height:     1080,
		Output:     "out.mp4",
	}, h.temps)
	var burnErr *SubtitleBurnError
	if !errors.As(err, &burnErr) {
		t.Errorf("err = %v, want SubtitleBurnError", err)
	}
}

func TestBurnerBuildsFilterAndFallsBack(t *testing.T) {
	h := newHarness(t, true)
	dir := h.layout.TempDir()
	bg := filepath.Join(dir, "bg.mp4")
	audio := filepath.Join(dir, "a.wav")
	srt := filepath.Join(dir, "subs.srt")
	for p, content := range map[string]string{
		bg:    "media",
		audio: "media",
		srt:   "1\n00:00:00,000 --> 00:00:01,000\nhello\n",
	} {
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h.runner.setDuration(bg, 5.8)
	h.runner.failWhen = failOn("h264_nvenc", -1)

	burner := NewBurner(h.runner, h.encoder, testLogger())
	out := filepath.Join(dir, "main.mp4")
	spec := BurnSpec{
		Background: bg,
		Audio:      audio,
		Subtitle:   srt,
		Style:      subtitles.DefaultStyle(false),
		Width:      1920,
		Height:     1080,
		Output:     out,
	}
	if err := burner.Burn(context.Background(), spec, h.temps); err != nil {
		t.Fatal(err)
	}

	first := strings.Join(h.runner.calls()[0], " ")
	if !strings.Contains(first, "scale=1920:1080,fps=30,setpts=PTS-STARTPTS,ass=") {
		t.Errorf("burn filter wrong: %s", first)
	}
	if n := h.runner.countCalls("libx264"); n != 1 {
		t.Errorf("software attempts = %d, want 1", n)
	}
}

func TestBurnerCentersOverlays(t *testing.T) {
	h := newHarness(t, false)
	dir := h.layout.TempDir()
	bg := filepath.Join(dir, "bg.mp4")
	audio := filepath.Join(dir, "a.wav")
	srt := filepath.Join(dir, "subs.srt")
	ov1 := filepath.Join(dir, "overlay1.png")
	ov2 := filepath.Join(dir, "overlay2.png")
	for p, content := range map[string]string{
		bg:    "media",
		audio: "media",
		srt:   "1\n00:00:00,000 --> 00:00:01,000\nhello\n",
		ov1:   "image",
		ov2:   "image",
	} {
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h.runner.setDuration(bg, 5.8)

	burner := NewBurner(h.runner, h.encoder, testLogger())
	spec := BurnSpec{
		Background: bg,
		Audio:      audio,
		Subtitle:   srt,
		Overlays:   []string{ov1, ov2},
		Style:      subtitles.DefaultStyle(false),
		Width:      1920,
		Height:     1080,
		Output:     filepath.Join(dir, "main.mp4"),
	}
	if err := burner.Burn(context.Background(), spec, h.temps); err != nil {
		t.Fatal(err)
	}

	call := strings.Join(h.runner.calls()[0], " ")
	// Overlay inputs follow the background and audio, so they resolve to
	// streams 2 and 3 in the filter graph.
	for _, want := range []string{
		"-i " + ov1,
		"-i " + ov2,
		"[base][2:v]overlay=(W-w)/2:(H-h)/2[ov1]",
		"[ov1][3:v]overlay=(W-w)/2:(H-h)/2[ov2]",
		"[ov2]ass=",
	} {
		if !strings.Contains(call, want) {
			t.Errorf("encode args missing %q:\n%s", want, call)
		}
	}
}

func TestBurnerWritesStyledScriptIntoJobTemps(t *testing.T) {
	h := newHarness(t, false)
	srcDir := t.TempDir()
	bg := filepath.Join(h.layout.TempDir(), "bg.mp4")
	audio := filepath.Join(h.layout.TempDir(), "a.wav")
	srt := filepath.Join(srcDir, "subs.srt")
	for p, content := range map[string]string{
		bg:    "media",
		audio: "media",
		srt:   "1\n00:00:00,000 --> 00:00:01,000\nhello\n",
	} {
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h.runner.setDuration(bg, 5.8)

	burner := NewBurner(h.runner, h.encoder, testLogger())
	spec := BurnSpec{
		Background: bg,
		Audio:      audio,
		Subtitle:   srt,
		Style:      subtitles.DefaultStyle(false),
		Width:      1920,
		Height:     1080,
		Output:     filepath.Join(h.layout.TempDir(), "main.mp4"),
	}
	if err := burner.Burn(context.Background(), spec, h.temps); err != nil {
		t.Fatal(err)
	}

	// The styled script lands in the job's temp set, never next to the
	// source subtitle.
	if _, err := os.Stat(filepath.Join(srcDir, "subs.ass")); !os.IsNotExist(err) {
		t.Error("styled script written next to the source subtitle")
	}
	scripts, err := filepath.Glob(filepath.Join(h.layout.TempDir(), "testjob_styled_subtitle_*.ass"))
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 1 {
		t.Fatalf("styled scripts in temp dir = %d, want 1", len(scripts))
	}

	h.temps.Cleanup()
	if _, err := os.Stat(scripts[0]); !os.IsNotExist(err) {
		t.Error("styled script survived temp cleanup")
	}
}

func TestNormalizerArgs(t *testing.T) {
	h := newHarness(t, false)
	in := filepath.Join(h.layout.TempDir(), "in.mp3")
	if err := os.WriteFile(in, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.runner.setDuration(in, 3.2)

	norm := NewNormalizer(h.runner, testLogger())
	out := filepath.Join(h.layout.TempDir(), "out.wav")
	if err := norm.Normalize(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}
	call := strings.Join(h.runner.calls()[0], " ")
	if !strings.Contains(call, "-acodec pcm_s24le -ar 34000 -ac 2") {
		t.Errorf("normalize args wrong: %s", call)
	}
	if d, _ := h.runner.duration(out); d != 3.2 {
		t.Errorf("normalized duration = %v, want passthrough 3.2", d)
	}
}

func TestTempFileSetCleanup(t *testing.T) {
	dir := t.TempDir()
	temps := NewTempFileSet(dir, "job1", testLogger())
	temps.sleep = func(time.Duration) {}

	created := temps.Path("stage", "mp4")
	if err := os.WriteFile(created, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(filepath.Base(created), "job1_") {
		t.Errorf("temp name not namespaced: %s", created)
	}
	// Reserved but never materialized; cleanup must tolerate it.
	temps.Path("ghost", "mp4")

	if failed := temps.Cleanup(); failed != 0 {
		t.Errorf("cleanup failures = %d, want 0", failed)
	}
	if _, err := os.Stat(created); !os.IsNotExist(err) {
		t.Errorf("temp file still present: %s", created)
	}
}

// orchestratorHarness seeds audio inputs and a clip pool, returning a
// configured orchestrator and job.
func setupOrchestrator(t *testing.T, h *harness, hookDur, mainDur float64, poolSize int) (*Orchestrator, Job) {
	t.Helper()
	dir := t.TempDir()
	job := Job{
		ID:        "job42",
		HookAudio: filepath.Join(dir, "hook.mp3"),
		MainAudio: filepath.Join(dir, "main.mp3"),
		Subtitle:  filepath.Join(dir, "subs.srt"),
		Thumbnail: filepath.Join(dir, "thumb.png"),
		Output:    filepath.Join(h.layout.FinalDir(), "result.mp4"),
	}
	files := map[string]string{
		job.HookAudio: "audio",
		job.MainAudio: "audio",
		job.Thumbnail: "image",
		job.Subtitle:  "1\n00:00:00,000 --> 00:00:01,000\nhello\n",
	}
	for p, content := range files {
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h.runner.setDuration(job.HookAudio, hookDur)
	h.runner.setDuration(job.MainAudio, mainDur)
	h.seedPool(t, library.Landscape, poolSize, 2.0)

	o := NewOrchestrator(h.runner, h.encoder, h.prober, h.prober, h.layout, testLogger())
	o.sleep = func(time.Duration) {}
	o.retryDelay = 0
	return o, job
}

func TestOrchestratorEndToEnd(t *testing.T) {
	h := newHarness(t, false)
	o, job := setupOrchestrator(t, h, 3.2, 5.8, 10)

	var stages []Stage
	out, err := o.Render(context.Background(), job, func(s Stage, pct int, msg string) {
		stages = append(stages, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != job.Output {
		t.Errorf("output = %s, want %s", out, job.Output)
	}
	if _, err := os.Stat(job.Output); err != nil {
		t.Fatalf("final output missing: %v", err)
	}

	// Final duration is the sum of both sides, within a frame.
	var finalDur float64
	h.runner.mu.Lock()
	for p, d := range h.runner.durations {
		if strings.Contains(filepath.Base(p), "_final_") {
			finalDur = d
		}
	}
	h.runner.mu.Unlock()
	if math.Abs(finalDur-9.0) > 0.04 {
		t.Errorf("final duration = %v, want 9.0", finalDur)
	}

	if stages[len(stages)-1] != StageDone {
		t.Errorf("last stage = %s, want DONE", stages[len(stages)-1])
	}
	want := []Stage{
		StageNormalizingAudio, StageProbingDurations, StageSelectingBackgrounds,
		StageCompositingHook, StageBurningSubtitles, StageConcatenating, StageDone,
	}
	for i, s := range want {
		if stages[i] != s {
			t.Fatalf("stage[%d] = %s, want %s", i, stages[i], s)
		}
	}

	entries, err := os.ReadDir(h.layout.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned: %d entries remain", len(entries))
	}
}

func TestOrchestratorSingleTrackRender(t *testing.T) {
	h := newHarness(t, false)
	dir := t.TempDir()
	job := Job{
		ID:        "job77",
		MainAudio: filepath.Join(dir, "voice.mp3"),
		Subtitle:  filepath.Join(dir, "subs.srt"),
		Overlay1:  filepath.Join(dir, "frame.png"),
		Overlay2:  filepath.Join(dir, "gone.png"), // never written
		Output:    filepath.Join(h.layout.FinalDir(), "voice_final.mp4"),
	}
	files := map[string]string{
		job.MainAudio: "audio",
		job.Subtitle:  "1\n00:00:00,000 --> 00:00:01,000\nhello\n",
		job.Overlay1:  "image",
	}
	for p, content := range files {
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h.runner.setDuration(job.MainAudio, 5.8)
	h.seedPool(t, library.Landscape, 10, 2.0)

	o := NewOrchestrator(h.runner, h.encoder, h.prober, h.prober, h.layout, testLogger())
	o.sleep = func(time.Duration) {}
	o.retryDelay = 0

	var stages []Stage
	out, err := o.Render(context.Background(), job, func(s Stage, pct int, msg string) {
		stages = append(stages, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != job.Output {
		t.Errorf("output = %s, want %s", out, job.Output)
	}
	if _, err := os.Stat(job.Output); err != nil {
		t.Fatalf("final output missing: %v", err)
	}

	want := []Stage{
		StageNormalizingAudio, StageProbingDurations,
		StageSelectingBackgrounds, StageBurningSubtitles, StageDone,
	}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i, s := range want {
		if stages[i] != s {
			t.Fatalf("stage[%d] = %s, want %s", i, stages[i], s)
		}
	}

	if n := h.runner.countCalls("fade=t=in"); n != 0 {
		t.Errorf("thumbnail composite ran %d times on the single-track path", n)
	}
	if n := h.runner.countCalls(job.Overlay1); n != 1 {
		t.Errorf("overlay encode calls = %d, want 1", n)
	}
	if n := h.runner.countCalls(job.Overlay2); n != 0 {
		t.Errorf("missing overlay reached the encoder %d times", n)
	}

	entries, err := os.ReadDir(h.layout.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned: %d entries remain", len(entries))
	}
}

func TestOrchestratorRetriesOnceThenSucceeds(t *testing.T) {
	h := newHarness(t, false)
	o, job := setupOrchestrator(t, h, 3.2, 5.8, 10)
	h.runner.failWhen = failOn("overlay=0:0", 1)

	if _, err := o.Render(context.Background(), job, nil); err != nil {
		t.Fatal(err)
	}
	// Two attempts means the normalize step ran twice per audio track.
	if n := h.runner.countCalls("pcm_s24le"); n != 4 {
		t.Errorf("normalize invocations = %d, want 4 (two attempts)", n)
	}
}

func TestOrchestratorFailsAfterTwoAttempts(t *testing.T) {
	h := newHarness(t, false)
	o, job := setupOrchestrator(t, h, 3.2, 5.8, 10)
	h.runner.failWhen = failOn("overlay=0:0", -1)

	var last Stage
	_, err := o.Render(context.Background(), job, func(s Stage, pct int, msg string) { last = s })
	if err == nil {
		t.Fatal("want error")
	}
	if last != StageFailed {
		t.Errorf("terminal stage = %s, want FAILED", last)
	}
	if n := h.runner.countCalls("pcm_s24le"); n != 4 {
		t.Errorf("normalize invocations = %d, want 4 (exactly two attempts)", n)
	}
	if _, statErr := os.Stat(job.Output); !os.IsNotExist(statErr) {
		t.Error("partial output left at declared output path")
	}
	entries, _ := os.ReadDir(h.layout.TempDir())
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned after failure: %d entries remain", len(entries))
	}
}

func TestOrchestratorInsufficientMediaDoesNotRetry(t *testing.T) {
	h := newHarness(t, false)
	o, job := setupOrchestrator(t, h, 3.2, 5.8, 0)

	_, err := o.Render(context.Background(), job, nil)
	if !errors.Is(err, ErrInsufficientMedia) {
		t.Fatalf("err = %v, want ErrInsufficientMedia", err)
	}
	if n := h.runner.countCalls("pcm_s24le"); n != 2 {
		t.Errorf("normalize invocations = %d, want 2 (single attempt)", n)
	}
}

func TestPreparerCutsRawVideo(t *testing.T) {
	h := newHarness(t, false)
	raw := filepath.Join(h.layout.RawDir(), "footage.mp4")
	if err := os.WriteFile(raw, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.runner.setDuration(raw, 10.0)

	prep := NewPreparer(h.cutter, h.prober, h.layout, testLogger(), rand.New(rand.NewSource(1)))
	cuts, err := prep.ProcessRaw(context.Background(), raw, 4.0, 4.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cuts) != 3 {
		t.Fatalf("got %d cuts, want 3 (4s + 4s + 2s)", len(cuts))
	}
	total := 0.0
	for _, c := range cuts {
		d, _ := h.runner.duration(c)
		total += d
		if filepath.Dir(c) != h.layout.CutDir() {
			t.Errorf("cut %s not in cut dir", c)
		}
	}
	if math.Abs(total-10.0) > 1e-9 {
		t.Errorf("total cut duration = %v, want 10.0", total)
	}
	if matches, _ := filepath.Glob(filepath.Join(h.layout.CutDir(), "std_*")); len(matches) != 0 {
		t.Errorf("standardized temp not removed: %v", matches)
	}
}

func TestPreparerInvalidBounds(t *testing.T) {
	h := newHarness(t, false)
	prep := NewPreparer(h.cutter, h.prober, h.layout, testLogger(), rand.New(rand.NewSource(1)))
	if _, err := prep.ProcessRaw(context.Background(), "x.mp4", 7, 4); err == nil {
		t.Error("want error for inverted bounds")
	}
}
