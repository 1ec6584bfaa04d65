// Package color converts between CSS-style colours and the device-native
// HSV encoding used by colour lights.
//
// The device format is twelve hex digits, four each for hue (0-360),
// saturation (0-1000) and value (0-1000).
package color

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Device scale maxima.
const (
	MaxHue        = 360
	MaxSaturation = 1000
	MaxValue      = 1000

	deviceLen = 12
)

// ErrInvalidColor is returned for input that cannot be parsed.
var ErrInvalidColor = errors.New("invalid color")

// HexToDevice converts "RRGGBB", "#RRGGBB", "#RGB" or "rgb(r,g,b)" to the
// device encoding. Each component is rounded to the nearest unit.
func HexToDevice(s string) (string, error) {
	c, err := Parse(s)
	if err != nil {
		return "", err
	}

	h, sat, v := c.Hsv()
	hue := math.Round(h / 360 * MaxHue)
	if hue >= MaxHue {
		hue = 0
	}
	return fmt.Sprintf("%04x%04x%04x",
		int(hue),
		int(math.Round(sat*MaxSaturation)),
		int(math.Round(v*MaxValue)),
	), nil
}

// DeviceToHex converts the device encoding to a lower-case "rrggbb" string.
func DeviceToHex(s string) (string, error) {
	if len(s) != deviceLen {
		return "", fmt.Errorf("%w: device color %q must have %d hex digits", ErrInvalidColor, s, deviceLen)
	}

	var parts [3]float64
	for i := range parts {
		n, err := strconv.ParseUint(s[i*4:i*4+4], 16, 16)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %w", ErrInvalidColor, s, err)
		}
		parts[i] = float64(n)
	}

	hue := parts[0] / MaxHue * 360
	sat := math.Min(parts[1]/MaxSaturation, 1)
	val := math.Min(parts[2]/MaxValue, 1)

	c := colorful.Hsv(math.Mod(hue, 360), sat, val).Clamped()
	return strings.TrimPrefix(c.Hex(), "#"), nil
}

// Parse reads a CSS-style colour.
func Parse(s string) (colorful.Color, error) {
	in := strings.ToLower(strings.TrimSpace(s))

	if strings.HasPrefix(in, "rgb(") && strings.HasSuffix(in, ")") {
		return parseRGB(in[len("rgb(") : len(in)-1])
	}

	if !strings.HasPrefix(in, "#") {
		in = "#" + in
	}
	c, err := colorful.Hex(in)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

func parseRGB(body string) (colorful.Color, error) {
	fields := strings.Split(body, ",")
	if len(fields) != 3 {
		return colorful.Color{}, fmt.Errorf("%w: rgb(%s)", ErrInvalidColor, body)
	}

	var rgb [3]float64
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 || n > 255 {
			return colorful.Color{}, fmt.Errorf("%w: rgb(%s)", ErrInvalidColor, body)
		}
		rgb[i] = float64(n) / 255
	}
	return colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}
