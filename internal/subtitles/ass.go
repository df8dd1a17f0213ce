package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StyleConfig is the user-facing subtitle styling surface. Colors accept
// any form NormalizeColor understands. Alignment uses the numpad layout
// (1 bottom-left .. 9 top-right). MaxChars > 0 re-wraps cue text.
type StyleConfig struct {
	FontName     string `json:"font_name"`
	FontSize     int    `json:"font_size"`
	PrimaryColor string `json:"primary_color"`
	OutlineColor string `json:"outline_color"`
	BackColor    string `json:"back_color"`
	Bold         bool   `json:"bold"`
	Outline      int    `json:"outline"`
	Shadow       int    `json:"shadow"`
	MarginV      int    `json:"margin_v"`
	MarginH      int    `json:"margin_h"`
	Alignment    int    `json:"alignment"`
	MaxChars     int    `json:"max_chars"`
}

// DefaultStyle returns the baseline style for the given orientation:
// middle-center for vertical frames, bottom-center for landscape.
func DefaultStyle(vertical bool) StyleConfig {
	s := StyleConfig{
		FontName:     "Arial",
		FontSize:     20,
		PrimaryColor: DefaultPrimaryColor,
		OutlineColor: DefaultOutlineColor,
		BackColor:    DefaultBackColor,
		Outline:      1,
		Shadow:       0,
		Alignment:    2,
		MarginV:      10,
		MarginH:      10,
	}
	if vertical {
		s.Alignment = 5
		s.MarginV = 20
		s.MarginH = 20
	}
	return s
}

// Merge overlays non-zero fields of other onto s and returns the result.
func (s StyleConfig) Merge(other StyleConfig) StyleConfig {
	if other.FontName != "" {
		s.FontName = other.FontName
	}
	if other.FontSize > 0 {
		s.FontSize = other.FontSize
	}
	if other.PrimaryColor != "" {
		s.PrimaryColor = other.PrimaryColor
	}
	if other.OutlineColor != "" {
		s.OutlineColor = other.OutlineColor
	}
	if other.BackColor != "" {
		s.BackColor = other.BackColor
	}
	if other.Bold {
		s.Bold = true
	}
	if other.Outline > 0 {
		s.Outline = other.Outline
	}
	if other.Shadow > 0 {
		s.Shadow = other.Shadow
	}
	if other.MarginV > 0 {
		s.MarginV = other.MarginV
	}
	if other.MarginH > 0 {
		s.MarginH = other.MarginH
	}
	if other.Alignment >= 1 && other.Alignment <= 9 {
		s.Alignment = other.Alignment
	}
	if other.MaxChars > 0 {
		s.MaxChars = other.MaxChars
	}
	return s
}

func (s StyleConfig) normalized() StyleConfig {
	s.PrimaryColor = NormalizeColor(s.PrimaryColor, DefaultPrimaryColor)
	s.OutlineColor = NormalizeColor(s.OutlineColor, DefaultOutlineColor)
	s.BackColor = NormalizeColor(s.BackColor, DefaultBackColor)
	if s.FontName == "" {
		s.FontName = "Arial"
	}
	if s.FontSize <= 0 {
		s.FontSize = 20
	}
	if s.Alignment < 1 || s.Alignment > 9 {
		s.Alignment = 2
	}
	return s
}

// RenderASS produces a complete ASS script for the cues. Every event
// carries an explicit {\anN} alignment tag so player style overrides
// cannot reposition the text. Offset shifts all event times forward.
func RenderASS(cues []Cue, style StyleConfig, width, height int, offset time.Duration) string {
	style = style.normalized()

	bold := 0
	if style.Bold {
		bold = -1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Script Info]\nScriptType: v4.00+\nPlayResX: %d\nPlayResY: %d\nScaledBorderAndShadow: yes\n\n", width, height)
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Default,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,1,%d,%d,%d,%d,%d,%d,1\n\n",
		style.FontName, style.FontSize,
		styleColor(style.PrimaryColor), styleColor(style.PrimaryColor),
		styleColor(style.OutlineColor), styleColor(style.BackColor),
		bold, style.Outline, style.Shadow, style.Alignment,
		style.MarginH, style.MarginH, style.MarginV)

	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, cue := range cues {
		text := sanitizeText(cue.Text)
		if style.MaxChars > 0 {
			text = wrapText(text, style.MaxChars)
		}
		text = strings.ReplaceAll(text, "\n", "\\N")
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,{\\an%d}%s\n",
			assTime(cue.Start+offset), assTime(cue.End+offset), style.Alignment, text)
	}
	return b.String()
}

// ConvertFile renders an SRT file as a styled .ass script at assPath and
// returns that path. Files already in ASS form pass through untouched.
func ConvertFile(srtPath, assPath string, style StyleConfig, width, height int, offset time.Duration) (string, error) {
	if strings.EqualFold(filepath.Ext(srtPath), ".ass") {
		return srtPath, nil
	}

	cues, err := ParseSRTFile(srtPath)
	if err != nil {
		return "", err
	}

	script := RenderASS(cues, style, width, height, offset)
	if err := os.WriteFile(assPath, []byte(script), 0o644); err != nil {
		return "", fmt.Errorf("failed to write subtitle script: %w", err)
	}
	return assPath, nil
}

// sanitizeText strips pre-existing override tags so stale styling in the
// source file cannot fight the generated alignment tag.
func sanitizeText(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// wrapText greedily re-wraps text so no display line exceeds maxChars.
// Words longer than the budget stay on their own line.
func wrapText(s string, maxChars int) string {
	var out []string
	for _, srcLine := range strings.Split(s, "\n") {
		words := strings.Fields(srcLine)
		if len(words) == 0 {
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			if len([]rune(cur))+1+len([]rune(w)) > maxChars {
				out = append(out, cur)
				cur = w
				continue
			}
			cur += " " + w
		}
		out = append(out, cur)
	}
	return strings.Join(out, "\n")
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}
