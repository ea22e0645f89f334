package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jghoshh/taskvibe/backend/engine"
	"github.com/jghoshh/taskvibe/backend/models"
	"github.com/jghoshh/taskvibe/backend/notifications"
)

var (
	cPrimary = lipgloss.Color("63")
	cAccent  = lipgloss.Color("205")
	cGood    = lipgloss.Color("42")
	cWarn    = lipgloss.Color("214")
	cBad     = lipgloss.Color("196")
	cMuted   = lipgloss.Color("244")
	cGold    = lipgloss.Color("220")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	mutedStyle = lipgloss.NewStyle().Foreground(cMuted)
	goodStyle  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	goldStyle  = lipgloss.NewStyle().Bold(true).Foreground(cGold)
	panelStyle = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)

	urgencyStyles = map[models.Urgency]lipgloss.Style{
		models.UrgencyImmediate: lipgloss.NewStyle().Bold(true).Foreground(cBad),
		models.UrgencyMedium:    lipgloss.NewStyle().Bold(true).Foreground(cWarn),
		models.UrgencyDelayed:   lipgloss.NewStyle().Bold(true).Foreground(cGood),
	}
)

const xpBarWidth = 20

// xpBar draws progress through the current level. Every level is 100 XP wide.
func xpBar(xp int) string {
	into := xp % 100
	filled := into * xpBarWidth / 100
	return fmt.Sprintf("[%s%s] %d/100",
		strings.Repeat("#", filled), strings.Repeat("-", xpBarWidth-filled), into)
}

func formatUrgency(u models.Urgency) string {
	style, ok := urgencyStyles[u]
	if !ok {
		style = mutedStyle
	}
	return style.Render(fmt.Sprintf("%-9s", u))
}

// formatTaskList numbers tasks from 1 in the order given.
func formatTaskList(tasks []models.Task) string {
	if len(tasks) == 0 {
		return mutedStyle.Render("Nothing here yet.")
	}
	var b strings.Builder
	for i, t := range tasks {
		fmt.Fprintf(&b, "%3d. %s %s", i+1, formatUrgency(t.Urgency), t.Title)
		if t.Completed && t.CompletedAt != nil {
			b.WriteString(mutedStyle.Render("  done " + t.CompletedAt.Local().Format("Jan 2 15:04")))
		}
		if t.Description != "" {
			b.WriteString("\n       " + mutedStyle.Render(t.Description))
		}
		if i < len(tasks)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatUser(u *models.User) string {
	name := u.Nickname
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return fmt.Sprintf("%s  %s %d  %s",
		headStyle.Render(name), goldStyle.Render("Level"), u.Level, xpBar(u.XP))
}

func formatCompletion(r *engine.CompleteResult) string {
	if r.XPDelta == 0 {
		return mutedStyle.Render("No change.")
	}
	var lines []string
	if r.XPDelta > 0 {
		lines = append(lines, goodStyle.Render(fmt.Sprintf("+%d XP", r.XPDelta))+"  "+r.Task.Title)
	} else {
		lines = append(lines, badStyle.Render(fmt.Sprintf("%d XP", r.XPDelta))+"  "+r.Task.Title)
	}
	if r.LevelUp {
		lines = append(lines, goldStyle.Render(fmt.Sprintf("LEVEL UP  %d -> %d", r.LevelBefore, r.LevelAfter)))
	}
	if r.Achievement != nil {
		lines = append(lines, formatAchievement(*r.Achievement))
	}
	return strings.Join(lines, "\n")
}

func formatAchievement(a models.Achievement) string {
	return fmt.Sprintf("%s %s  %s", a.Icon, goldStyle.Render(a.Title), mutedStyle.Render(a.Description))
}

func formatAchievements(achievements []models.Achievement) string {
	if len(achievements) == 0 {
		return mutedStyle.Render("No achievements yet. Complete some tasks!")
	}
	lines := make([]string, 0, len(achievements))
	for _, a := range achievements {
		lines = append(lines, formatAchievement(a))
	}
	return strings.Join(lines, "\n")
}

func formatStats(user *models.User, stats *engine.UserStats, daily []models.DailyStat) string {
	var b strings.Builder
	b.WriteString(formatUser(user) + "\n\n")
	fmt.Fprintf(&b, "%s %d   %s %d\n", headStyle.Render("Completed:"), stats.TotalCompleted,
		headStyle.Render("Today:"), stats.TodayCompleted)
	fmt.Fprintf(&b, "%s %s %d  %s %d  %s %d",
		headStyle.Render("Pending:"),
		formatUrgency(models.UrgencyImmediate), stats.ImmediateCount,
		formatUrgency(models.UrgencyMedium), stats.MediumCount,
		formatUrgency(models.UrgencyDelayed), stats.DelayedCount)
	if len(daily) > 0 {
		b.WriteString("\n\n" + headStyle.Render("Last days:"))
		for _, d := range daily {
			fmt.Fprintf(&b, "\n  %s  %2d tasks  %4d XP", d.Date.Format("Mon Jan 2"), d.TasksCompleted, d.XPEarned)
		}
	}
	return panelStyle.Render(b.String())
}

func formatToasts(toasts []notifications.Toast) string {
	if len(toasts) == 0 {
		return mutedStyle.Render("No new notifications.")
	}
	lines := make([]string, 0, len(toasts))
	for _, t := range toasts {
		lines = append(lines, fmt.Sprintf("%s %s", titleStyle.Render(t.Title), t.Message))
	}
	return strings.Join(lines, "\n")
}
