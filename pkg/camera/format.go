package camera

import (
	"fmt"
	"math"
	"strings"
)

type RequestPolicy int

const (
	HighestFrameRate RequestPolicy = iota
	HighestResolution
	Closest
)

func (p RequestPolicy) String() string {
	switch p {
	case HighestFrameRate:
		return "highest_framerate"
	case HighestResolution:
		return "highest_resolution"
	case Closest:
		return "closest"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts the names produced by RequestPolicy.String.
func ParsePolicy(s string) (RequestPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "highest_framerate":
		return HighestFrameRate, nil
	case "highest_resolution":
		return HighestResolution, nil
	case "closest":
		return Closest, nil
	}
	return 0, fmt.Errorf("unknown format policy %q", s)
}

// FormatRequest says which of a device's modes to open. Width and Height
// are only consulted by the Closest policy.
type FormatRequest struct {
	Policy RequestPolicy
	Width  int
	Height int
}

// DefaultRequest asks for the fastest mode the device offers.
var DefaultRequest = FormatRequest{Policy: HighestFrameRate}

// formatRank orders pixel formats by how cheaply they turn into RGBA.
var formatRank = map[PixelFormat]int{
	FormatRGBA:  5,
	FormatYUYV:  4,
	FormatNV21:  3,
	FormatI420:  2,
	FormatMJPEG: 1,
}

// SelectFormat picks the mode in formats that best satisfies req.
func SelectFormat(formats []StreamFormat, req FormatRequest) (StreamFormat, error) {
	if len(formats) == 0 {
		return StreamFormat{}, ErrUnsupportedFormat
	}

	best := formats[0]
	for _, f := range formats[1:] {
		if better(f, best, req) {
			best = f
		}
	}
	return best, nil
}

func better(a, b StreamFormat, req FormatRequest) bool {
	pa, pb := a.Width*a.Height, b.Width*b.Height

	switch req.Policy {
	case HighestResolution:
		if pa != pb {
			return pa > pb
		}
		if a.FPS != b.FPS {
			return a.FPS > b.FPS
		}
	case Closest:
		da, db := distance(a, req), distance(b, req)
		if da != db {
			return da < db
		}
		if a.FPS != b.FPS {
			return a.FPS > b.FPS
		}
	default:
		if a.FPS != b.FPS {
			return a.FPS > b.FPS
		}
		if pa != pb {
			return pa > pb
		}
	}
	return formatRank[a.Pixel] > formatRank[b.Pixel]
}

func distance(f StreamFormat, req FormatRequest) float64 {
	dw := float64(f.Width - req.Width)
	dh := float64(f.Height - req.Height)
	return math.Sqrt(dw*dw + dh*dh)
}
