// Package export writes terminal renderings and flux rasters as SVG
// documents.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/muflux/internal/render"
	"github.com/san-kum/muflux/internal/scan"
)

// CanvasToSVG converts a Braille canvas to SVG, one dot per lit
// sub-pixel.
func CanvasToSVG(canvas *render.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff00">
`, width, height, width, height))

	pixelMap := [4][2]int{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}
	dotRadius := scale * 0.4

	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			r := canvas.Grid[row][col]
			if r <= 0x2800 {
				continue
			}
			pattern := int(r - 0x2800)

			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4

			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] != 0 {
						cx := baseX + float64(dx)*scale + scale/2
						cy := baseY + float64(dy)*scale + scale/2
						sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f"/>
`, cx, cy, dotRadius))
					}
				}
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// MapToSVG renders a flux raster as a heat map, one rectangle per
// cell. Flux is compressed logarithmically; cellSize is in SVG units.
func MapToSVG(m *scan.Map, cellSize float64) string {
	if m == nil || m.Cells() == 0 {
		return ""
	}

	const margin = 40.0
	width := float64(m.Azimuths)*cellSize + 2*margin
	height := float64(m.Elevations)*cellSize + 2*margin

	lo, hi := m.Range()
	logLo, logHi := safeLog10(lo), safeLog10(hi)
	span := logHi - logLo
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for j := 0; j < m.Elevations; j++ {
		// top row is the highest elevation
		y := margin + float64(m.Elevations-1-j)*cellSize
		for i := 0; i < m.Azimuths; i++ {
			x := margin + float64(i)*cellSize
			t := (safeLog10(m.At(i, j).Value) - logLo) / span
			if t < 0 {
				t = 0
			}
			if t > 1 {
				t = 1
			}
			sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>
`, x, y, cellSize, cellSize, heatColor(t)))
		}
	}

	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" fill="#cccccc" font-family="monospace" font-size="12">azimuth %.0f to %.0f deg, elevation %.0f to %.0f deg, %g GeV</text>
`, margin, height-12, m.AzimuthMin, m.AzimuthMax, m.ElevationMin, m.ElevationMax, m.Energy))
	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" fill="#cccccc" font-family="monospace" font-size="12">%.3e to %.3e /GeV/m2/s/sr</text>
`, margin, 24.0, lo, hi))
	sb.WriteString("</svg>")
	return sb.String()
}

func safeLog10(v float64) float64 {
	if v <= 0 {
		return -30
	}
	return math.Log10(v)
}

// heatColor maps t in [0, 1] onto a dark-violet to yellow ramp.
func heatColor(t float64) string {
	stops := [][3]float64{
		{27, 12, 65},
		{97, 31, 83},
		{165, 44, 96},
		{228, 90, 49},
		{251, 155, 6},
		{247, 208, 60},
	}
	f := t * float64(len(stops)-1)
	i := int(f)
	if i >= len(stops)-1 {
		i = len(stops) - 2
		f = float64(len(stops) - 1)
	}
	frac := f - float64(i)
	var rgb [3]int
	for k := 0; k < 3; k++ {
		rgb[k] = int(stops[i][k] + (stops[i+1][k]-stops[i][k])*frac)
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}
