package display

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour set a Style is built from.
type Theme struct {
	Name       string      `toml:"name"`
	Colors     ThemeColors `toml:"colors"`
	Borderless bool        `toml:"borderless"`
}

type ThemeColors struct {
	Background string `toml:"background"`
	Foreground string `toml:"foreground"`
	Secondary  string `toml:"secondary"`
	Muted      string `toml:"muted"`
	Error      string `toml:"error"`
	Accent     string `toml:"accent"`
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func DefaultTheme() Theme {
	return Theme{
		Name: "default",
		Colors: ThemeColors{
			Background: "#000000",
			Foreground: "#FFFFFF",
			Secondary:  "#D8D8D8",
			Muted:      "#808080",
			Error:      "#FF6B6B",
			Accent:     "#FF0000",
		},
	}
}

// LoadTheme reads a TOML theme. Colours left out of the file keep their
// default value.
func LoadTheme(path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, fmt.Errorf("read theme: %w", err)
	}
	return ParseTheme(data)
}

func ParseTheme(data []byte) (Theme, error) {
	t := DefaultTheme()
	if err := toml.Unmarshal(data, &t); err != nil {
		return Theme{}, fmt.Errorf("parse theme: %w", err)
	}
	for name, c := range map[string]string{
		"background": t.Colors.Background,
		"foreground": t.Colors.Foreground,
		"secondary":  t.Colors.Secondary,
		"muted":      t.Colors.Muted,
		"error":      t.Colors.Error,
		"accent":     t.Colors.Accent,
	} {
		if !hexColor.MatchString(c) {
			return Theme{}, fmt.Errorf("theme color %s: invalid hex %q", name, c)
		}
	}
	return t, nil
}

// Style holds the lipgloss styles for every element of a card. It is built
// once at startup and passed to the renderer.
type Style struct {
	Theme  Theme
	Frame  lipgloss.Style
	Title  lipgloss.Style
	Body   lipgloss.Style
	Muted  lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style
	Bar    lipgloss.Style
}

func NewStyle(t Theme) *Style {
	c := t.Colors
	frame := lipgloss.NewStyle().
		Background(lipgloss.Color(c.Background)).
		Foreground(lipgloss.Color(c.Foreground))
	if !t.Borderless {
		frame = frame.Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(c.Muted))
	}
	return &Style{
		Theme:  t,
		Frame:  frame,
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Secondary)),
		Body:   lipgloss.NewStyle().Foreground(lipgloss.Color(c.Foreground)),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color(c.Muted)),
		Status: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(c.Secondary)),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Error)),
		Bar:    lipgloss.NewStyle().Foreground(lipgloss.Color(c.Accent)),
	}
}
