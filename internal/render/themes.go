package render

import "github.com/charmbracelet/lipgloss"

// Theme is a color scheme for sky maps. Ramp runs from the dimmest to
// the brightest flux cell.
type Theme struct {
	Name   string
	Header lipgloss.Color
	Label  lipgloss.Color
	Value  lipgloss.Color
	Muted  lipgloss.Color
	Ramp   []lipgloss.Color
}

var (
	ThemeInferno = Theme{
		Name:   "inferno",
		Header: lipgloss.Color("86"),
		Label:  lipgloss.Color("245"),
		Value:  lipgloss.Color("252"),
		Muted:  lipgloss.Color("240"),
		Ramp: []lipgloss.Color{
			lipgloss.Color("#1b0c41"),
			lipgloss.Color("#611f53"),
			lipgloss.Color("#a52c60"),
			lipgloss.Color("#e45a31"),
			lipgloss.Color("#fb9b06"),
			lipgloss.Color("#f7d03c"),
		},
	}

	ThemeRetroGreen = Theme{
		Name:   "retro",
		Header: lipgloss.Color("#00ff00"),
		Label:  lipgloss.Color("#005500"),
		Value:  lipgloss.Color("#00ff00"),
		Muted:  lipgloss.Color("#003300"),
		Ramp: []lipgloss.Color{
			lipgloss.Color("#002200"),
			lipgloss.Color("#005500"),
			lipgloss.Color("#008800"),
			lipgloss.Color("#00bb00"),
			lipgloss.Color("#00ff00"),
			lipgloss.Color("#88ff88"),
		},
	}

	ThemeMinimal = Theme{
		Name:   "minimal",
		Header: lipgloss.Color("#ffffff"),
		Label:  lipgloss.Color("#888888"),
		Value:  lipgloss.Color("#ffffff"),
		Muted:  lipgloss.Color("#444444"),
		Ramp: []lipgloss.Color{
			lipgloss.Color("#222222"),
			lipgloss.Color("#555555"),
			lipgloss.Color("#888888"),
			lipgloss.Color("#aaaaaa"),
			lipgloss.Color("#dddddd"),
			lipgloss.Color("#ffffff"),
		},
	}

	CurrentTheme = ThemeInferno

	Themes = []Theme{ThemeInferno, ThemeRetroGreen, ThemeMinimal}
)

// GetTheme returns a theme by name, falling back to the default.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeInferno
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
