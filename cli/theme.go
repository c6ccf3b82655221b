package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/pulse/pkg/models"
)

// Kanagawa palette, dark and light variants.
var (
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#98BB6C", Light: "#4E7C5A"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#FF9E3B", Light: "#A68A64"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF5D62", Light: "#C34043"}
	colorOrange = lipgloss.AdaptiveColor{Dark: "#FFA066", Light: "#CC6B4E"}
	colorCyan   = lipgloss.AdaptiveColor{Dark: "#7E9CD8", Light: "#5B8BBE"}
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#7FB4CA", Light: "#4F7CAC"}
	colorViolet = lipgloss.AdaptiveColor{Dark: "#957FB8", Light: "#674D7A"}
	colorMuted  = lipgloss.AdaptiveColor{Dark: "#727169", Light: "#6C7086"}
	colorBorder = lipgloss.AdaptiveColor{Dark: "#363646", Light: "#B5BDC5"}
)

// Theme holds the styles used for human-readable CLI output.
type Theme struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Command lipgloss.Style
	Flag    lipgloss.Style
	Muted   lipgloss.Style
	Italic  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Header  lipgloss.Style
	Border  lipgloss.Style
}

// DefaultTheme is the theme used by help and render functions.
var DefaultTheme = NewTheme()

// NewTheme builds the default styles.
func NewTheme() *Theme {
	return &Theme{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorOrange),
		Section: lipgloss.NewStyle().Italic(true).Foreground(colorOrange),
		Command: lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		Flag:    lipgloss.NewStyle().Foreground(colorViolet),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Italic:  lipgloss.NewStyle().Italic(true),
		Success: lipgloss.NewStyle().Foreground(colorGreen),
		Warning: lipgloss.NewStyle().Foreground(colorYellow),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(colorRed),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1),
		Border:  lipgloss.NewStyle().Foreground(colorBorder),
	}
}

// CodeStyle colors a code by its category.
func (t *Theme) CodeStyle(c models.Category) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch c {
	case models.CategorySchedule:
		return base.Foreground(colorCyan)
	case models.CategoryPriority:
		return base.Foreground(colorOrange)
	case models.CategoryCommitment:
		return base.Foreground(colorViolet)
	}
	return base
}
