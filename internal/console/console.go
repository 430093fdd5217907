// Package console renders the human facing CLI output on stderr. Machine
// readable results go to stdout through the commands themselves.
package console

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
)

var (
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("32"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("31"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// Printer writes indented, optionally emoji prefixed status lines.
type Printer struct {
	stream io.Writer
	indent string
}

// NewPrinter creates a new Printer instance with the specified output stream.
// Colours follow the NO_COLOR and CLICOLOR_FORCE environment conventions.
func NewPrinter(stream io.Writer) *Printer {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())

	return &Printer{
		stream: stream,
		indent: "  ",
	}
}

// Info writes an unstyled status line.
func (p *Printer) Info(emoji string, format string, a ...any) (n int, err error) {
	return fmt.Fprintln(p.stream, p.line(emoji, format, a))
}

// Success writes a green status line.
func (p *Printer) Success(emoji string, format string, a ...any) (n int, err error) {
	return p.styled(successStyle, emoji, format, a)
}

// Warn writes a yellow status line, used for outcomes that need attention
// but did not fail, such as deleting a blob that was already gone.
func (p *Printer) Warn(emoji string, format string, a ...any) (n int, err error) {
	return p.styled(warnStyle, emoji, format, a)
}

// Error writes a red status line.
func (p *Printer) Error(emoji string, format string, a ...any) (n int, err error) {
	return p.styled(errorStyle, emoji, format, a)
}

// Table renders rows under bold headers with a rounded border, used for
// container listings.
func (p *Printer) Table(headers []string, rows [][]string) (n int, err error) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return fmt.Fprintln(p.stream, t.Render())
}

func (p *Printer) styled(style lipgloss.Style, emoji, format string, a []any) (int, error) {
	return fmt.Fprintln(p.stream, style.Render(p.line(emoji, format, a)))
}

func (p *Printer) line(emoji, format string, a []any) string {
	return p.indent + withEmoji(emoji) + fmt.Sprintf(format, a...)
}

func withEmoji(emoji string) string {
	if emoji == "" {
		return ""
	}
	return emoji + " "
}
