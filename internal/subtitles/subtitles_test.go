package subtitles

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
Hello there

2
00:00:04,000 --> 00:00:06,000
Second line
continues here
`

func TestParseSRT(t *testing.T) {
	cues, err := ParseSRT(strings.NewReader(sampleSRT))
	if err != nil {
		t.Fatal(err)
	}
	if len(cues) != 2 {
		t.Fatalf("got %d cues, want 2", len(cues))
	}
	if cues[0].Start != time.Second || cues[0].End != 3500*time.Millisecond {
		t.Errorf("cue 0 timing = %v..%v", cues[0].Start, cues[0].End)
	}
	if cues[0].Text != "Hello there" {
		t.Errorf("cue 0 text = %q", cues[0].Text)
	}
	if cues[1].Text != "Second line\ncontinues here" {
		t.Errorf("cue 1 text = %q", cues[1].Text)
	}
}

func TestParseSRTSkipsMalformedBlocks(t *testing.T) {
	input := "garbage without timing\n\n" +
		"1\n00:00:05,000 --> 00:00:02,000\nend before start\n\n" +
		"2\n00:00:01.000 --> 00:00:02.000\ndot separator ok\n"
	cues, err := ParseSRT(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(cues) != 1 || cues[0].Text != "dot separator ok" {
		t.Fatalf("cues = %+v, want single dot-separator cue", cues)
	}
}

func TestParseSRTEmpty(t *testing.T) {
	if _, err := ParseSRT(strings.NewReader("\n\n")); err == nil {
		t.Error("want error for file without cues")
	}
}

func TestParseSRTStripsBOM(t *testing.T) {
	cues, err := ParseSRT(strings.NewReader("\ufeff1\n00:00:00,000 --> 00:00:01,000\nbom\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cues[0].Index != 1 {
		t.Errorf("index = %d, want 1", cues[0].Index)
	}
}

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultPrimaryColor},
		{"#FF0000", "&H0000FF&"},   // red RGB -> BGR
		{"0x00FF00", "&H00FF00&"},  // green stays symmetric
		{"0000FF", "&HFF0000&"},    // blue
		{"&HABCDEF&", "&HABCDEF&"}, // already ASS
		{"F00", "&H0000FF&"},       // short form
		{"not-a-color", DefaultPrimaryColor},
		{"&HZZZZZZ&", DefaultPrimaryColor},
	}
	for _, tt := range tests {
		if got := NormalizeColor(tt.in, DefaultPrimaryColor); got != tt.want {
			t.Errorf("NormalizeColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultStyleOrientation(t *testing.T) {
	h := DefaultStyle(false)
	if h.Alignment != 2 || h.MarginV != 10 {
		t.Errorf("horizontal style = %+v", h)
	}
	v := DefaultStyle(true)
	if v.Alignment != 5 || v.MarginV != 20 {
		t.Errorf("vertical style = %+v", v)
	}
}

func TestMergeKeepsBaseForZeroFields(t *testing.T) {
	base := DefaultStyle(false)
	merged := base.Merge(StyleConfig{FontSize: 32, Alignment: 8})
	if merged.FontSize != 32 || merged.Alignment != 8 {
		t.Errorf("overrides not applied: %+v", merged)
	}
	if merged.FontName != "Arial" || merged.MarginV != 10 {
		t.Errorf("base fields lost: %+v", merged)
	}
	if got := base.Merge(StyleConfig{Alignment: 11}); got.Alignment != 2 {
		t.Errorf("out-of-range alignment accepted: %d", got.Alignment)
	}
}

func TestRenderASS(t *testing.T) {
	cues := []Cue{{Start: time.Second, End: 2 * time.Second, Text: "{\\i1}styled{\\i0} text"}}
	style := DefaultStyle(false)
	style.Alignment = 8

	script := RenderASS(cues, style, 1920, 1080, 0)

	if !strings.Contains(script, "PlayResX: 1920") || !strings.Contains(script, "PlayResY: 1080") {
		t.Error("missing play resolution")
	}
	if !strings.Contains(script, "{\\an8}styled text") {
		t.Errorf("event line wrong:\n%s", script)
	}
	if strings.Contains(script, "\\i1") {
		t.Error("source override tags not stripped")
	}
}

func TestRenderASSOffset(t *testing.T) {
	cues := []Cue{{Start: 0, End: time.Second, Text: "x"}}
	script := RenderASS(cues, DefaultStyle(false), 1920, 1080, 2*time.Second)
	if !strings.Contains(script, "Dialogue: 0,0:00:02.00,0:00:03.00,") {
		t.Errorf("offset not applied:\n%s", script)
	}
}

func TestRenderASSWrapsLongLines(t *testing.T) {
	style := DefaultStyle(false)
	style.MaxChars = 10
	cues := []Cue{{Start: 0, End: time.Second, Text: "one two three four five"}}

	script := RenderASS(cues, style, 1920, 1080, 0)

	idx := strings.Index(script, "{\\an2}")
	line := script[idx+len("{\\an2}"):]
	line = strings.TrimRight(strings.SplitN(line, "\n", 2)[0], "\r")
	for _, part := range strings.Split(line, "\\N") {
		if len(part) > 10 {
			t.Errorf("wrapped segment %q exceeds budget", part)
		}
	}
	if !strings.Contains(line, "\\N") {
		t.Errorf("no wrapping happened: %q", line)
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	srt := filepath.Join(dir, "subs.srt")
	if err := os.WriteFile(srt, []byte(sampleSRT), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "styled.ass")
	assPath, err := ConvertFile(srt, dest, DefaultStyle(true), 1080, 1920, 0)
	if err != nil {
		t.Fatal(err)
	}
	if assPath != dest {
		t.Errorf("ass path = %q, want %q", assPath, dest)
	}
	data, err := os.ReadFile(assPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "{\\an5}Hello there") {
		t.Errorf("converted script missing styled cue:\n%s", data)
	}
}

func TestConvertFilePassesThroughASS(t *testing.T) {
	got, err := ConvertFile("/media/subs.ASS", "/tmp/ignored.ass", DefaultStyle(false), 1920, 1080, 0)
	if err != nil || got != "/media/subs.ASS" {
		t.Errorf("ConvertFile = %q, %v", got, err)
	}
}
