package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"dqmon/internal/monitor"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

const (
	workerRowFormat = "         %-10s %4s %8s %6s %6s %6s %6s %10s"
	summaryFormat   = "%40s: %s"
	workersWidth    = 55
)

var (
	ruleLine = strings.Repeat("=", 20) + " " + strings.Repeat("=", workersWidth)
	numbers  = message.NewPrinter(language.English)
)

// renderSnapshot lays out the pipeline top to bottom: each source queue
// with its waiting count, the workers feeding the next queue, then the
// final queue and run-wide totals.
func renderSnapshot(snap monitor.Snapshot) []string {
	lines := []string{
		" Docs  Stage         " + center("Workers", workersWidth, '_'),
		workerRow("", "Id", "Memory", "Work", "Wait", "Block", "Ovrhd", "Time/Doc"),
		ruleLine,
	}
	for _, stage := range snap.Stages {
		lines = append(lines, queueLine(stage.Source, stage.Done))
		for i, w := range stage.Workers {
			arrow := "|"
			if i > 0 && i == len(stage.Workers)-1 {
				arrow = "V"
			}
			lines = append(lines, renderWorker(arrow, w))
		}
		if len(stage.Workers) == 0 {
			lines = append(lines, workerRow("|", "None", "-", "-", "-", "-", "-", "-"))
		}
		if len(stage.Workers) <= 1 {
			lines = append(lines, workerRow("V", "", "", "", "", "", "", ""))
		}
	}
	lines = append(lines, fmt.Sprintf("[%4d] %s", snap.Final.Counts.Waiting(), snap.Final.Name))

	if len(snap.Unassigned) > 0 {
		lines = append(lines, "", "Workers outside the pipeline:")
		for _, w := range snap.Unassigned {
			lines = append(lines, renderWorker("x", w)+"  "+w.Src+" -> "+w.Dst)
		}
	}

	lines = append(lines,
		ruleLine,
		fmt.Sprintf(summaryFormat, "Max total memory", formatMemory(snap.MaxTotalKB)),
		fmt.Sprintf(summaryFormat, "Max resident memory", formatMemory(snap.MaxResidentKB)),
		fmt.Sprintf(summaryFormat, "Documents processed", numbers.Sprintf("%d", snap.DocsProcessed)),
	)
	if snap.HasThroughput {
		tput := numbers.Sprintf("%d docs/hr (stddev=%d)", int64(snap.Throughput.PerHour), int64(snap.Throughput.StdDev))
		lines = append(lines, fmt.Sprintf(summaryFormat, "Throughput", tput))
	}
	return lines
}

func queueLine(q monitor.QueueStatus, done bool) string {
	line := fmt.Sprintf("[%4d] %s", q.Counts.Waiting(), q.Name)
	if done {
		line += " (done)"
	}
	return line
}

func renderWorker(arrow string, w monitor.WorkerStatus) string {
	memory := "(exited)"
	if w.Alive {
		memory = "?"
		if w.Memory.VirtualKB > 0 {
			memory = formatMemory(w.Memory.VirtualKB)
		}
	}
	return workerRow(arrow, fmt.Sprint(w.ID), memory,
		percent(w.Times.WorkShare()),
		percent(w.Times.WaitShare()),
		percent(w.Times.BlockShare()),
		percent(w.Times.OverheadShare()),
		formatTime(w.Times.PerDoc()),
	)
}

func workerRow(arrow, id, memory, work, wait, block, overhead, perDoc string) string {
	return strings.TrimRight(fmt.Sprintf(workerRowFormat, arrow, id, memory, work, wait, block, overhead, perDoc), " ")
}

func renderFailures(failures []monitor.Failure, verbosity int) []string {
	lines := []string{""}
	for _, f := range failures {
		lines = append(lines, fmt.Sprintf("* Gave up on %d documents in queue '%s'!", len(f.Docs), f.Queue))
		if verbosity > 1 {
			for _, doc := range f.Docs {
				lines = append(lines, "  - "+doc)
			}
		}
	}
	return lines
}

func percent(share float64) string {
	return fmt.Sprintf("%.1f%%", 100*share)
}

// formatTime picks the largest unit that keeps the value readable.
func formatTime(d time.Duration) string {
	msec := float64(d) / float64(time.Millisecond)
	switch {
	case msec < 1000:
		return fmt.Sprintf("%d msec", int64(msec))
	case msec < 60*1000:
		return fmt.Sprintf("%.1f sec", msec/1000)
	case msec < 60*60*1000:
		return fmt.Sprintf("%.1f min", msec/1000/60)
	default:
		return fmt.Sprintf("%.1f hrs", msec/1000/60/60)
	}
}

func formatMemory(kb int64) string {
	if kb <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(kb) * 1024)
}

// center pads s with fill on both sides to width, putting the odd
// character on the right.
func center(s string, width int, fill rune) string {
	margin := width - len(s)
	if margin <= 0 {
		return s
	}
	left := margin/2 + (margin & width & 1)
	return strings.Repeat(string(fill), left) + s + strings.Repeat(string(fill), margin-left)
}

func renderStatusLine(label string, kind statusKind, detail string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if detail != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, detail)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
