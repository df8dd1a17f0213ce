package subtitles

import (
	"fmt"
	"strconv"
	"strings"
)

// Default ASS colors used when an input color is absent or invalid.
const (
	DefaultPrimaryColor = "&HFFFFFF&" // white
	DefaultOutlineColor = "&H000000&" // black
	DefaultBackColor    = "&H000000&" // black
)

// NormalizeColor converts a user-supplied color to the ASS &HBBGGRR& form.
// Accepted inputs: already-ASS values, #RRGGBB, 0xRRGGBB, bare RRGGBB and
// short RGB. Anything unparsable falls back to the given default.
func NormalizeColor(color, fallback string) string {
	if fallback == "" {
		fallback = DefaultPrimaryColor
	}
	if color == "" {
		return fallback
	}

	color = strings.TrimSpace(color)
	color = strings.ReplaceAll(color, "#", "")
	color = strings.ReplaceAll(color, "0x", "")

	if strings.HasPrefix(color, "&H") && strings.HasSuffix(color, "&") {
		hex := color[2 : len(color)-1]
		if len(hex) == 6 && isHex(hex) {
			return color
		}
		return fallback
	}

	switch len(color) {
	case 6:
		if isHex(color) {
			r, g, b := color[0:2], color[2:4], color[4:6]
			return fmt.Sprintf("&H%s%s%s&", b, g, r)
		}
	case 3:
		if isHex(color) {
			r := strings.Repeat(string(color[0]), 2)
			g := strings.Repeat(string(color[1]), 2)
			b := strings.Repeat(string(color[2]), 2)
			return fmt.Sprintf("&H%s%s%s&", b, g, r)
		}
	}
	return fallback
}

// styleColor renders a normalized &HBBGGRR& color in the V4+ style table
// form with a zero alpha channel.
func styleColor(c string) string {
	hex := strings.TrimSuffix(strings.TrimPrefix(c, "&H"), "&")
	return "&H00" + strings.ToUpper(hex)
}

func isHex(s string) bool {
	_, err := strconv.ParseUint(s, 16, 64)
	return err == nil
}
