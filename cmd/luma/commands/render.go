// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vhc-foundation/luma/lib/budget"
	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/gate"
)

// palette styles human-readable output. The zero-attribute palette
// used off a terminal renders plain text.
type palette struct {
	allowed lipgloss.Style
	denied  lipgloss.Style
	warning lipgloss.Style
	label   lipgloss.Style
	faint   lipgloss.Style
}

func newPalette(color bool) palette {
	if !color {
		plain := lipgloss.NewStyle()
		return palette{allowed: plain, denied: plain, warning: plain, label: plain, faint: plain}
	}
	return palette{
		allowed: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		denied:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		faint:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (p palette) row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", p.label.Render(fmt.Sprintf("%-10s", label)), value)
}

func renderDecision(w io.Writer, p palette, decision gate.Decision, preflight bool) {
	verdict := p.allowed.Render("ADMITTED")
	if preflight {
		verdict = p.allowed.Render("WOULD ADMIT")
	}
	if !decision.Allowed {
		verdict = p.denied.Render("DENIED")
	}
	fmt.Fprintln(w, verdict)

	p.row(w, "stage", string(decision.Stage))
	if decision.Reason != "" {
		p.row(w, "reason", decision.Reason)
	}
	for _, warning := range decision.Warnings {
		p.row(w, "warning", p.warning.Render(warning))
	}
	p.row(w, "at", fmt.Sprintf("%s %s", clock.FromMilli(decision.At).Format("2006-01-02T15:04:05.000Z07:00"), p.faint.Render(fmt.Sprintf("(%d)", decision.At))))
	if decision.ProofRef != "" {
		p.row(w, "proof", decision.ProofRef)
	}
	if decision.Budget != nil {
		p.row(w, "budget", decision.Budget.Date)
		renderRemaining(w, p, decision.Budget)
	}
}

func renderRemaining(w io.Writer, p palette, b *budget.NullifierBudget) {
	limits := slices.Clone(b.Limits)
	slices.SortFunc(limits, func(a, b budget.Limit) int { return strings.Compare(string(a.ActionKey), string(b.ActionKey)) })
	for _, limit := range limits {
		remaining, _ := b.Remaining(limit.ActionKey)
		line := fmt.Sprintf("%d/%d remaining", remaining, limit.DailyLimit)
		if remaining == 0 {
			line = p.denied.Render(line)
		}
		if limit.PerTopicCap != nil {
			line += p.faint.Render(fmt.Sprintf(" (per topic %d)", *limit.PerTopicCap))
		}
		fmt.Fprintf(w, "  %-22s %s\n", limit.ActionKey, line)
	}
}
