package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"mc-resource-manager/resource"
)

// Colorize applies the given color to the text using lipgloss.
// color is the integer representation Modrinth uses for project colors.
func Colorize(text string, color int) string {
	hexColor := fmt.Sprintf("#%06x", color)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor))
	return style.Render(text)
}

var domainColors = map[resource.Domain]int{
	resource.DomainMods:          0x5da545,
	resource.DomainResourcePacks: 0x3b8ed8,
	resource.DomainModpacks:      0xd8813b,
	resource.DomainSaves:         0xc9b03a,
	resource.DomainShaderPacks:   0xa35dd8,
}

// DomainColor returns the display color for a domain, grey when unknown.
func DomainColor(d resource.Domain) int {
	if c, ok := domainColors[d]; ok {
		return c
	}
	return 0x888888
}

// Domain renders a domain name in its color.
func Domain(d resource.Domain) string {
	return Colorize(string(d), DomainColor(d))
}

var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	Failure = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	Muted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
