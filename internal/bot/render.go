package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tasklist/internal/model"
	"tasklist/internal/service"
)

const (
	iconOpen        = "⬜"
	iconDone        = "✅"
	untitled        = "(untitled)"
	emptyListText   = "No tasks yet. Add one with /add."
	emptyFilterText = "No tasks match this filter"
)

// renderTaskList numbers tasks in store order. The markup is nil when
// there is nothing to act on.
func renderTaskList(tasks []model.Task) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(tasks) == 0 {
		return emptyListText, nil
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Tasks</b>\n")
	builder.WriteString("Tap a task to toggle it.\n\n")
	for i, task := range tasks {
		builder.WriteString(fmt.Sprintf("%d. %s %s\n", i+1, statusIcon(task), escape(displayTitle(task.Title))))
	}

	markup := taskListKeyboard(tasks)
	return strings.TrimSpace(builder.String()), &markup
}

// renderView shows the projection with each task's number from the flat list.
func renderView(tasks []model.Task, filter model.Filter, now time.Time) string {
	positions := make(map[string]int, len(tasks))
	for i, task := range tasks {
		positions[task.ID] = i + 1
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗂 <b>%s tasks</b>\n\n", filter.Label()))

	groups := service.Project(tasks, filter, now)
	if len(groups) == 0 {
		builder.WriteString(emptyFilterText)
		return builder.String()
	}

	for _, group := range groups {
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", escape(group.Label)))
		for _, task := range group.Tasks {
			builder.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", statusIcon(task), positions[task.ID], escape(displayTitle(task.Title))))
		}
		builder.WriteByte('\n')
	}
	return strings.TrimSpace(builder.String())
}

func statusIcon(task model.Task) string {
	if task.Done {
		return iconDone
	}
	return iconOpen
}

func toggleLabel(position int, task model.Task) string {
	return fmt.Sprintf("%s %d · %s", statusIcon(task), position, shortTitle(task.Title, 24))
}

// displayTitle shows the stored title unchanged unless it is blank.
func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return untitled
	}
	return title
}

func shortTitle(title string, maxLen int) string {
	clean := displayTitle(strings.TrimSpace(strings.ReplaceAll(title, "\n", " ")))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
