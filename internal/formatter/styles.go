package formatter

import (
	"github.com/charmbracelet/lipgloss"
)

// DefaultPalette is the palette used by the CLI.
var DefaultPalette = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields. A nil
// *Palette renders plain text.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string {
	return p.render(s, func(p *Palette) lipgloss.Style { return p.title })
}
func (p *Palette) OK(s string) string {
	return p.render(s, func(p *Palette) lipgloss.Style { return p.ok })
}
func (p *Palette) Err(s string) string {
	return p.render(s, func(p *Palette) lipgloss.Style { return p.err })
}
func (p *Palette) Warn(s string) string {
	return p.render(s, func(p *Palette) lipgloss.Style { return p.warn })
}
func (p *Palette) Help(s string) string {
	return p.render(s, func(p *Palette) lipgloss.Style { return p.help })
}

func (p *Palette) render(s string, style func(*Palette) lipgloss.Style) string {
	if p == nil {
		return s
	}
	return style(p).Render(s)
}
