// internal/ui/style/palette.go
package style

import "github.com/charmbracelet/lipgloss"

var (
	Cyan    = lipgloss.Color("#00E5FF") // основной акцент
	Magenta = lipgloss.Color("#FF1B6B")
	Yellow  = lipgloss.Color("#FFB500")
	Green   = lipgloss.Color("#2AFFAA")
	Red     = lipgloss.Color("#FF5555")
	Blue    = lipgloss.Color("#3B82F6")

	Base01 = lipgloss.Color("#6C7280") // приглушённый текст
	Base2  = lipgloss.Color("#ECEFF4")
)

// Palette - цвета дашборда
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Info      lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
}

func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Secondary: Magenta,
		Success:   Green,
		Error:     Red,
		Warning:   Yellow,
		Info:      Blue,
		Text:      Base2,
		TextMuted: Base01,
	}
}

// Styles - готовые стили экрана токенов.
type Styles struct {
	Title   lipgloss.Style
	Owner   lipgloss.Style
	Phase   lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Logs    lipgloss.Style
	Input   lipgloss.Style
	Muted   lipgloss.Style
}

func DefaultStyles() Styles {
	p := DefaultPalette()
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(p.Primary).Bold(true).MarginBottom(1),
		Owner:   lipgloss.NewStyle().Foreground(p.TextMuted),
		Phase:   lipgloss.NewStyle().Foreground(p.Warning).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(p.Info),
		Success: lipgloss.NewStyle().Foreground(p.Success).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(p.Error).Bold(true),
		Logs: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Info).
			Padding(0, 1),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Secondary).
			Padding(0, 1),
		Muted: lipgloss.NewStyle().Foreground(p.TextMuted),
	}
}
