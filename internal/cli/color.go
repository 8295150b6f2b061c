package cli

import "github.com/charmbracelet/lipgloss"

// Cargo/rustc-like palette in ANSI 256 colors.
var (
	styleError    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleWarning  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleNote     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	styleHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleSuccess  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleCode     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleLineNum  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	stylePointer  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleFilePath = lipgloss.NewStyle().Bold(true)
	styleHeader   = lipgloss.NewStyle().Bold(true)
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func paint(style lipgloss.Style, s string) string {
	if !EnableColors() {
		return s
	}
	return style.Render(s)
}

// Error styles an error label.
func Error(s string) string { return paint(styleError, s) }

// Warning styles a warning label.
func Warning(s string) string { return paint(styleWarning, s) }

// Note styles a note label.
func Note(s string) string { return paint(styleNote, s) }

// Help styles a help label.
func Help(s string) string { return paint(styleHelp, s) }

// Success styles a success label.
func Success(s string) string { return paint(styleSuccess, s) }

// Code styles an error code.
func Code(s string) string { return paint(styleCode, s) }

// FilePath styles a path or location.
func FilePath(s string) string { return paint(styleFilePath, s) }

// Header styles a table header.
func Header(s string) string { return paint(styleHeader, s) }

// Dim styles muted text.
func Dim(s string) string { return paint(styleDim, s) }

// Pipe returns the gutter character.
func Pipe() string { return paint(styleLineNum, "|") }
