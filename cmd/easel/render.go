package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"easel/internal/api"
	"easel/internal/queue"
)

const (
	ansiReset = "\x1b[0m"
	ansiBlue  = "\x1b[34m"
)

const promptColumnWidth = 40

func sectionHeader(title string, colorize bool) string {
	line := title
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return line + "\n" + rule
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// buildQueueStatusRows orders per-status counts in lifecycle order so the
// summary reads queued first and terminal states last.
func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	ordered := make([]string, 0, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		ordered = append(ordered, string(status))
	}
	seen := make(map[string]bool, len(ordered))

	rows := make([][]string, 0, len(stats))
	for _, status := range ordered {
		seen[status] = true
		if count, ok := stats[status]; ok && count > 0 {
			rows = append(rows, []string{status, fmt.Sprintf("%d", count)})
		}
	}

	extras := make([]string, 0)
	for status, count := range stats {
		if !seen[status] && count > 0 {
			extras = append(extras, status)
		}
	}
	sort.Strings(extras)
	for _, status := range extras {
		rows = append(rows, []string{status, fmt.Sprintf("%d", stats[status])})
	}
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			fmt.Sprintf("%d", item.QueuePosition),
			item.Provider,
			item.GenerationType,
			truncate(item.Prompt, promptColumnWidth),
			item.Status,
			fmt.Sprintf("%d", item.CreditsCost),
			formatQueueTime(item.CreatedAt),
		})
	}
	return rows
}

func formatQueueTime(value string) string {
	t := api.ParseQueueTime(value)
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
