package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/muflux/internal/scan"
)

var shades = []rune{' ', '░', '░', '▒', '▒', '▓', '▓', '█'}

// SkyMap renders a flux raster as a shaded grid, brightest cells for
// the highest flux. Rows run from the top elevation down, columns
// from the minimum azimuth. Flux spans are compressed logarithmically
// since the spectrum covers decades.
func SkyMap(m *scan.Map, theme Theme) string {
	lo, hi := m.Range()
	scale := newFluxScale(lo, hi)

	var b strings.Builder
	headerStyle := lipgloss.NewStyle().Foreground(theme.Header).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(theme.Label)
	mutedStyle := lipgloss.NewStyle().Foreground(theme.Muted)

	b.WriteString(headerStyle.Render(fmt.Sprintf("flux at %g GeV", m.Energy)))
	b.WriteString("\n")

	rampStyles := make([]lipgloss.Style, len(theme.Ramp))
	for i, color := range theme.Ramp {
		rampStyles[i] = lipgloss.NewStyle().Foreground(color)
	}

	for j := m.Elevations - 1; j >= 0; j-- {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%5.1f ", m.Elevation(j))))
		for i := 0; i < m.Azimuths; i++ {
			t := scale.normalize(m.At(i, j).Value)
			shade := shades[int(t*float64(len(shades)-1))]
			style := rampStyles[int(t*float64(len(rampStyles)-1))]
			b.WriteString(style.Render(string(shade)))
		}
		b.WriteString("\n")
	}

	b.WriteString(labelStyle.Render("      "))
	b.WriteString(mutedStyle.Render(azimuthAxis(m.Grid)))
	b.WriteString("\n")
	b.WriteString(legend(lo, hi, theme))
	return b.String()
}

// azimuthAxis marks the first, middle and last column.
func azimuthAxis(g scan.Grid) string {
	if g.Azimuths < 2 {
		return fmt.Sprintf("%.0f", g.AzimuthMin)
	}
	first := fmt.Sprintf("%.0f", g.Azimuth(0))
	mid := fmt.Sprintf("%.0f", g.Azimuth(g.Azimuths/2))
	last := fmt.Sprintf("%.0f", g.Azimuth(g.Azimuths-1))

	axis := make([]rune, g.Azimuths)
	for i := range axis {
		axis[i] = '─'
	}
	line := string(axis)
	if g.Azimuths >= len(first)+len(mid)+len(last)+2 {
		line = first +
			string(axis[len(first):g.Azimuths/2-len(mid)/2]) + mid +
			string(axis[g.Azimuths/2-len(mid)/2+len(mid):g.Azimuths-len(last)]) + last
	}
	return line
}

func legend(lo, hi float64, theme Theme) string {
	labelStyle := lipgloss.NewStyle().Foreground(theme.Label)
	valueStyle := lipgloss.NewStyle().Foreground(theme.Value)
	return labelStyle.Render("      range ") +
		valueStyle.Render(fmt.Sprintf("%.3e .. %.3e", lo, hi)) +
		labelStyle.Render(" /GeV/m2/s/sr")
}

type fluxScale struct {
	logLo, logSpan float64
	flat           bool
}

func newFluxScale(lo, hi float64) fluxScale {
	const floor = 1e-30
	if lo < floor {
		lo = floor
	}
	if hi < floor {
		hi = floor
	}
	logLo := math.Log10(lo)
	span := math.Log10(hi) - logLo
	return fluxScale{logLo: logLo, logSpan: span, flat: span <= 0}
}

// normalize maps a flux value to [0, 1].
func (s fluxScale) normalize(v float64) float64 {
	if s.flat {
		return 1
	}
	if v <= 0 {
		return 0
	}
	t := (math.Log10(v) - s.logLo) / s.logSpan
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Spectrum plots flux against energy on log-log axes.
func Spectrum(energies, values []float64, height, width int) string {
	logged := make([]float64, len(values))
	for i, v := range values {
		if v <= 0 {
			v = 1e-30
		}
		logged[i] = math.Log10(v)
	}
	caption := "log10 flux"
	if len(energies) > 1 {
		caption = fmt.Sprintf("log10 flux, %g to %g GeV", energies[0], energies[len(energies)-1])
	}
	return asciigraph.Plot(logged,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// ElevationProfile plots the flux of one azimuth column against
// elevation.
func ElevationProfile(m *scan.Map, column int, height, width int) string {
	values := make([]float64, m.Elevations)
	for j := 0; j < m.Elevations; j++ {
		v := m.At(column, j).Value
		if v <= 0 {
			v = 1e-30
		}
		values[j] = math.Log10(v)
	}
	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("log10 flux at azimuth %.0f", m.Azimuth(column))),
	)
}
