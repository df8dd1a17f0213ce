// Package subtitles parses SRT files and renders styled ASS subtitle
// scripts for burn-in. The output targets libass via ffmpeg's ass filter.
package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cue is one subtitle event. Text may contain multiple display lines.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// ParseSRT reads SubRip cues from r. Blank cues and malformed blocks are
// skipped rather than failing the whole file; an error is returned only
// when no usable cue remains.
func ParseSRT(r io.Reader) ([]Cue, error) {
	var cues []Cue

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var block []string
	flush := func() {
		if cue, ok := parseBlock(block); ok {
			cues = append(cues, cue)
		}
		block = block[:0]
	}

	first := true
	for scanner.Scan() {
		text := scanner.Text()
		if first {
			text = strings.TrimPrefix(text, "\ufeff")
			first = false
		}
		if strings.TrimSpace(text) == "" {
			flush()
			continue
		}
		block = append(block, text)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("no subtitle cues found")
	}
	return cues, nil
}

// ParseSRTFile is ParseSRT over a file path.
func ParseSRTFile(path string) ([]Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer f.Close()
	return ParseSRT(f)
}

func parseBlock(block []string) (Cue, bool) {
	// Expected shape: index line, timing line, one or more text lines.
	// Some exporters omit the index, so locate the timing line instead.
	timing := -1
	for i, ln := range block {
		if strings.Contains(ln, "-->") {
			timing = i
			break
		}
	}
	if timing < 0 || timing+1 >= len(block) {
		return Cue{}, false
	}

	start, end, err := parseTiming(block[timing])
	if err != nil || end <= start {
		return Cue{}, false
	}

	cue := Cue{
		Start: start,
		End:   end,
		Text:  strings.Join(block[timing+1:], "\n"),
	}
	if timing > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(block[timing-1])); err == nil {
			cue.Index = n
		}
	}
	if strings.TrimSpace(cue.Text) == "" {
		return Cue{}, false
	}
	return cue, true
}

func parseTiming(line string) (time.Duration, time.Duration, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed timing line: %q", line)
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// Position cues append coordinates after the end timestamp.
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("missing end timestamp: %q", line)
	}
	end, err := parseTimestamp(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp accepts HH:MM:SS,mmm with either comma or dot millisecond
// separators.
func parseTimestamp(s string) (time.Duration, error) {
	s = strings.ReplaceAll(s, ",", ".")
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("malformed timestamp: %q", s)
	}
	h, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp: %q", s)
	}
	m, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp: %q", s)
	}
	sec, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp: %q", s)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second)), nil
}
