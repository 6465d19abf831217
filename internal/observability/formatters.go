// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/jonathan/article-agent/internal/pipeline"
	"github.com/jonathan/article-agent/internal/pipeline/steps"
	"github.com/jonathan/article-agent/internal/types"
)

const (
	// boxWidth is the outer width of formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// previewRunes bounds step output shown outside --full mode
	previewRunes = 600
)

// Printer handles formatted output for the CLI.
type Printer struct {
	out  io.Writer
	full bool

	box     lipgloss.Style
	title   lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	failure lipgloss.Style
}

// NewPrinter creates a Printer that writes to out. Colors are only emitted
// when out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out: out,
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, 1).
			Width(boxWidth - 2),
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFD7")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("#6C6C6C")),
		success: r.NewStyle().Foreground(lipgloss.Color("#00D787")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("#FFAF00")),
		failure: r.NewStyle().Foreground(lipgloss.Color("#FF005F")).Bold(true),
	}
}

// SetFull disables output truncation.
func (p *Printer) SetFull(full bool) {
	p.full = full
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title, content string) {
	body := p.title.Render(title)
	if content != "" {
		body += "\n\n" + content
	}
	fmt.Fprintln(p.out, p.box.Render(body))
}

func (p *Printer) statusStyle(s types.TaskStatus) lipgloss.Style {
	switch s {
	case types.StatusCompleted:
		return p.success
	case types.StatusWaitingConfirm:
		return p.warn
	case types.StatusError, types.StatusAborted:
		return p.failure
	default:
		return p.title
	}
}

// PrintTask outputs a task summary: status, position and the outputs so far.
func (p *Printer) PrintTask(task *types.WritingTask, defs []steps.Definition) {
	if task == nil {
		return
	}
	names := make(map[int]string, len(defs))
	for _, d := range defs {
		names[d.Step] = d.Name
	}

	var sb strings.Builder
	if task.Title != "" {
		fmt.Fprintf(&sb, "Title:    %s\n", task.Title)
	}
	fmt.Fprintf(&sb, "Brief:    %s\n", truncate(task.Brief, 80))
	fmt.Fprintf(&sb, "Status:   %s\n", p.statusStyle(task.Status).Render(string(task.Status)))
	fmt.Fprintf(&sb, "Step:     %d/%d %s\n", task.CurrentStep, types.LastStep, names[task.CurrentStep])
	fmt.Fprintf(&sb, "Version:  %d\n", task.Version)
	fmt.Fprintf(&sb, "Updated:  %s\n", task.UpdatedAt.Format(time.DateTime))
	if task.SelectedTopic != "" {
		fmt.Fprintf(&sb, "Topic:    %s\n", task.SelectedTopic)
	}

	if len(task.StepOutputs) > 0 {
		sb.WriteString("\nCompleted steps:\n")
		for step := types.FirstStep; step <= types.LastStep; step++ {
			out, ok := task.StepOutputs[step]
			if !ok {
				continue
			}
			marker := "•"
			if out.IsCheckpoint {
				marker = "◆"
			}
			line := fmt.Sprintf("  %s %d %s", marker, step, names[step])
			if out.LogMessage != "" {
				line += p.dim.Render("  " + truncate(out.LogMessage, 40))
			}
			sb.WriteString(line + "\n")
		}
	}

	p.printBox("TASK "+task.ID.String(), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStepOutput outputs one step result. Checkpoint outputs end with a
// reminder that the task waits for confirmation.
func (p *Printer) PrintStepOutput(name string, out types.StepOutput) {
	var sb strings.Builder
	text := out.Output
	if !p.full {
		text = truncate(text, previewRunes)
	}
	sb.WriteString(text)
	if out.Style != nil && out.Style.SourceLabel != "" {
		sb.WriteString("\n\n" + p.dim.Render("style: "+out.Style.SourceLabel))
	}
	if out.IsCheckpoint {
		sb.WriteString("\n\n" + p.warn.Render("Checkpoint: review and confirm to continue."))
	}
	p.printBox(fmt.Sprintf("STEP %d · %s", out.Step, name), sb.String())
}

// PrintLogEntry outputs one task log line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintLogEntry(e types.LogEntry) {
	level := string(e.Level)
	switch e.Level {
	case types.LogWarn:
		level = p.warn.Render(level)
	case types.LogError:
		level = p.failure.Render(level)
	}
	fmt.Fprintf(p.out, "%s %s [step %d] %s %s\n",
		p.dim.Render(fmt.Sprintf("#%d", e.Seq)),
		e.Timestamp.Format(time.TimeOnly), e.Step, level, e.Message)
}

// PrintTaskList outputs one line per task.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintTaskList(tasks []types.WritingTask) {
	if len(tasks) == 0 {
		fmt.Fprintln(p.out, p.dim.Render("no tasks"))
		return
	}
	for _, t := range tasks {
		label := t.Title
		if label == "" {
			label = truncate(t.Brief, 40)
		}
		fmt.Fprintf(p.out, "%s  step %d  %-16s  %s\n",
			t.ID, t.CurrentStep, p.statusStyle(t.Status).Render(string(t.Status)), label)
	}
}

// PrintChannels outputs channels with their rule counts.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintChannels(channels []types.Channel) {
	if len(channels) == 0 {
		fmt.Fprintln(p.out, p.dim.Render("no channels"))
		return
	}
	for _, ch := range channels {
		state := p.success.Render("active")
		if !ch.IsActive {
			state = p.dim.Render("inactive")
		}
		fmt.Fprintf(p.out, "%-20s %s  %s  %s\n", ch.Slug, ch.Name, state,
			p.dim.Render(fmt.Sprintf("%d blocked phrases, %d tags", len(ch.BlockedPhrases), len(ch.MaterialTags))))
	}
}

// PrintSample outputs a style sample and its analysis.
func (p *Printer) PrintSample(s *types.StyleSample) {
	if s == nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title:    %s\n", s.Title)
	if s.Source != "" {
		fmt.Fprintf(&sb, "Source:   %s\n", s.Source)
	}
	fmt.Fprintf(&sb, "Words:    %d\n", s.WordCount)
	if len(s.CustomTags) > 0 {
		fmt.Fprintf(&sb, "Tags:     %s\n", strings.Join(s.CustomTags, " "))
	}
	if len(s.AISuggestedTags) > 0 {
		fmt.Fprintf(&sb, "AI tags:  %s\n", strings.Join(firstN(s.AISuggestedTags, maxItemsToShow), " "))
	}
	if s.IsAnalyzed && s.Profile != nil {
		sb.WriteString("\nStyle profile:\n")
		writeProfile(&sb, s.Profile)
	} else {
		sb.WriteString(p.dim.Render("not analyzed"))
	}
	p.printBox("STYLE SAMPLE "+s.ID.String(), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProgress outputs one pipeline progress event.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(ev pipeline.ProgressEvent) {
	prefix := fmt.Sprintf("[%d/%d]", ev.Step, types.LastStep)
	switch ev.Category {
	case pipeline.CategoryCheckpoint:
		fmt.Fprintf(p.out, "%s %s\n", p.warn.Render(prefix), ev.Message)
	case pipeline.CategoryDone:
		fmt.Fprintf(p.out, "%s %s\n", p.success.Render("done"), ev.Message)
	default:
		fmt.Fprintf(p.out, "%s %s\n", p.title.Render(prefix), ev.Message)
	}
}

func writeProfile(sb *strings.Builder, prof *types.StyleProfile) {
	row := func(name, value string) {
		if value != "" {
			fmt.Fprintf(sb, "  • %-18s %s\n", name, truncate(value, 40))
		}
	}
	if prof.Opening != nil {
		row("opening", prof.Opening.Type)
	}
	if prof.SentencePattern != nil {
		row("sentences", fmt.Sprintf("avg %d, %.0f%% short", prof.SentencePattern.AvgLength, prof.SentencePattern.ShortRatio*100))
	}
	if prof.ParagraphRhythm != nil {
		row("paragraphs", prof.ParagraphRhythm.Variation)
	}
	if prof.Expressions != nil {
		row("vocabulary", strings.Join(firstN(prof.Expressions.HighFreqWords, maxItemsToShow), "、"))
	}
	if prof.Tone != nil {
		row("tone", prof.Tone.Type)
	}
	if prof.Ending != nil {
		row("ending", prof.Ending.Type)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
