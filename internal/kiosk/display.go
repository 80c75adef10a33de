package kiosk

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// Tone is the feedback colour class of a result.
type Tone int

const (
	ToneNeutral Tone = iota
	ToneAllow
	ToneDeny
	ToneAdmin
	ToneDuplicate
)

// ToneFor maps a result to its screen colour: green allow, red deny and
// error, purple admin, amber duplicate.
func ToneFor(code types.ResultCode) Tone {
	switch {
	case code == "":
		return ToneNeutral
	case code == types.ResultSuperAdmin:
		return ToneAdmin
	case code == types.ResultIgnoredDuplicateTap:
		return ToneDuplicate
	case code.Family() == types.FamilyAllow:
		return ToneAllow
	default:
		return ToneDeny
	}
}

var toneColors = map[Tone]lipgloss.Color{
	ToneNeutral:   lipgloss.Color("240"),
	ToneAllow:     lipgloss.Color("#2E7D32"),
	ToneDeny:      lipgloss.Color("#C62828"),
	ToneAdmin:     lipgloss.Color("#6A1B9A"),
	ToneDuplicate: lipgloss.Color("#FF8F00"),
}

// TerminalDisplay renders one status line per state change.
type TerminalDisplay struct {
	out   io.Writer
	width int

	banner  lipgloss.Style
	admin   lipgloss.Style
	offline lipgloss.Style
}

func NewTerminalDisplay(out io.Writer, width int) *TerminalDisplay {
	if width <= 0 {
		width = 48
	}
	return &TerminalDisplay{
		out:     out,
		width:   width,
		banner:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Padding(0, 1),
		admin:   lipgloss.NewStyle().Bold(true).Foreground(toneColors[ToneAdmin]),
		offline: lipgloss.NewStyle().Foreground(toneColors[ToneDeny]),
	}
}

func (d *TerminalDisplay) Render(s State) {
	fmt.Fprintln(d.out, d.Line(s))
}

// Line builds the status line without writing it.
func (d *TerminalDisplay) Line(s State) string {
	var parts []string
	if s.Mode == ModeAdmin {
		parts = append(parts, d.admin.Render("ADMIN "+formatCountdown(s.AdminRemaining)))
	}
	if !s.Online {
		parts = append(parts, d.offline.Render("OFFLINE"))
	}

	text := "TAP CARD"
	switch s.Phase {
	case PhaseProcessing:
		text = "CHECKING..."
	case PhaseFeedback:
		text = string(s.Result)
		if s.MemberName != "" {
			text += "  " + s.MemberName
		}
		if s.Message != "" {
			text += "  " + s.Message
		}
	}
	parts = append(parts, d.banner.
		Background(toneColors[ToneFor(s.Result)]).
		Width(d.width).
		MaxWidth(d.width).
		Render(text))
	return strings.Join(parts, " ")
}

func formatCountdown(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
