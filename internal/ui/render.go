package ui

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Jayphen/flowsync/internal/types"
)

// Column widths for the task table.
const (
	idWidth       = 14
	titleWidth    = 36
	priorityWidth = 10
)

// SortTasks orders tasks by priority (critical first), then by id.
func SortTasks(tasks []types.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return b.Priority.Less(a.Priority)
		}
		return a.ID < b.ID
	})
}

// RenderTaskTable writes tasks as an aligned table followed by a summary line.
func RenderTaskTable(w io.Writer, tasks []types.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found")
		return
	}

	header := padRight("ID", idWidth) + " " + padRight("TITLE", titleWidth) + " " + padRight("PRIORITY", priorityWidth) + " STATUS"
	fmt.Fprintln(w, HeaderStyle.Render(header))
	fmt.Fprintln(w, strings.Repeat("-", idWidth+titleWidth+priorityWidth+16))

	done := 0
	for _, t := range tasks {
		if t.Status == types.StatusDone {
			done++
		}

		limit := titleWidth
		if t.AIInsights != nil {
			limit -= 2
		}
		title := t.Title
		if title == "" {
			title = DimStyle.Render("(untitled)")
		} else {
			title = truncate(title, limit)
		}
		if t.AIInsights != nil {
			title = padRight(title, limit) + InsightsStyle.Render(" ✦")
		}

		fmt.Fprintf(w, "%s %s %s %s\n",
			padRight(DimStyle.Render(truncate(t.ID, idWidth)), idWidth),
			padRight(title, titleWidth),
			padRight(GetPriorityStyle(t.Priority).Render(string(t.Priority)), priorityWidth),
			GetStatusStyle(t.Status).Render(StatusIndicator(t.Status)+" "+statusLabel(t.Status)),
		)
	}

	percent := float64(done) / float64(len(tasks)) * 100
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total: %d tasks, %d done %s %.0f%%\n",
		len(tasks), done, SuccessStyle.Render(RenderProgressBar(percent, 20)), percent)
}

// RenderTask writes a detailed view of a single task.
func RenderTask(w io.Writer, t types.Task) {
	var b strings.Builder

	title := t.Title
	if title == "" {
		title = "(untitled)"
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(LabelStyle.Render(padRight(label, 12)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("id", t.ID)
	row("status", GetStatusStyle(t.Status).Render(StatusIndicator(t.Status)+" "+statusLabel(t.Status)))
	row("priority", GetPriorityStyle(t.Priority).Render(string(t.Priority)))

	if t.Description != nil {
		desc := *t.Description
		if desc == "" {
			desc = DimStyle.Render("(empty)")
		}
		row("description", desc)
	}

	if ai := t.AIInsights; ai != nil {
		b.WriteString("\n")
		b.WriteString(InsightsStyle.Render("AI insights"))
		b.WriteString("\n")
		row("complexity", strconv.FormatFloat(ai.Complexity, 'g', -1, 64))
		writeList(&b, "subtasks", ai.RecommendedSubtasks)
		writeList(&b, "blockers", ai.PotentialBlockers)
	}

	fmt.Fprintln(w, BoxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func writeList(b *strings.Builder, label string, items []string) {
	b.WriteString(LabelStyle.Render(padRight(label, 12)))
	if len(items) == 0 {
		b.WriteString(DimStyle.Render("none"))
		b.WriteString("\n")
		return
	}
	for i, item := range items {
		if i > 0 {
			b.WriteString(strings.Repeat(" ", 12))
		}
		b.WriteString("• " + item + "\n")
	}
}

func statusLabel(s types.TaskStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// padRight pads a string to the specified visible width.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

// truncate shortens s to at most width runes, marking the cut with "...".
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
