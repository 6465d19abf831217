package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/article-agent/internal/observability"
	"github.com/jonathan/article-agent/internal/pipeline"
	"github.com/jonathan/article-agent/internal/pipeline/steps"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

var (
	taskChannel   string
	taskTitle     string
	taskBrief     string
	taskBriefFile string

	executeStep   int
	executeParams []string

	confirmTopic        string
	confirmSample       string
	confirmSummary      string
	confirmSummarySet   bool
	confirmMaterials    string
	confirmMaterialFile string
	confirmOverrideFile string
	confirmNote         string

	abortReason string

	showFull bool

	logFollow bool
	logAfter  int64

	listChannel string
	listStatus  string
	listLimit   int
	listOffset  int

	runStopAfter int
	runYes       bool
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create and drive writing tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a writing task from a brief",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.createTask(cmd)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintTask(task, a.controller.Registry().Definitions())
		return nil
	},
}

var taskExecuteCmd = &cobra.Command{
	Use:   "execute <task-id>",
	Short: "Execute one step (the current step unless --step is given)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		params, err := parseParams(executeParams)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		step := executeStep
		if step == 0 {
			task, err := a.controller.GetTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			step = task.CurrentStep
		}
		res, err := a.controller.ExecuteStep(cmd.Context(), id, step, params)
		if err != nil {
			return err
		}
		p := observability.NewPrinter(cmd.OutOrStdout())
		p.PrintStepOutput(a.stepName(step), res.Output)
		if res.Replayed {
			fmt.Fprintln(cmd.OutOrStdout(), "(checkpoint output replayed, not regenerated)")
		}
		return nil
	},
}

var taskConfirmCmd = &cobra.Command{
	Use:   "confirm <task-id>",
	Short: "Confirm the checkpoint the task is waiting on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		confirmSummarySet = cmd.Flags().Changed("knowledge-summary")
		in, err := confirmationFromFlags()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.controller.ConfirmCheckpoint(cmd.Context(), id, in)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintTask(task, a.controller.Registry().Definitions())
		return nil
	},
}

var taskAbortCmd = &cobra.Command{
	Use:   "abort <task-id>",
	Short: "Abort a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.controller.AbortTask(cmd.Context(), id, abortReason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "task %s %s at step %d\n", task.ID, task.Status, task.CurrentStep)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task and its step outputs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.controller.GetTask(cmd.Context(), id)
		if err != nil {
			return err
		}
		p := observability.NewPrinter(cmd.OutOrStdout())
		p.SetFull(showFull)
		p.PrintTask(task, a.controller.Registry().Definitions())
		for step := types.FirstStep; step <= types.LastStep; step++ {
			if out, ok := task.StepOutputs[step]; ok {
				p.PrintStepOutput(a.stepName(step), out)
			}
		}
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task and its log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.controller.DeleteTask(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "task %s deleted\n", id)
		return nil
	},
}

var taskLogCmd = &cobra.Command{
	Use:   "log <task-id>",
	Short: "Print the task log, optionally following new entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		p := observability.NewPrinter(cmd.OutOrStdout())
		if !logFollow {
			entries, err := a.controller.Logs(cmd.Context(), id, logAfter)
			if err != nil {
				return err
			}
			for _, e := range entries {
				p.PrintLogEntry(e)
			}
			return nil
		}

		entries, err := a.controller.StreamLog(cmd.Context(), id, logAfter)
		if err != nil {
			return err
		}
		for e := range entries {
			p.PrintLogEntry(e)
		}
		return cmd.Context().Err()
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		filter := types.TaskFilter{Limit: listLimit, Offset: listOffset}
		if listChannel != "" {
			ch, err := a.catalog.ResolveChannel(cmd.Context(), listChannel)
			if err != nil {
				return err
			}
			if ch == nil {
				return &types.RecordNotFoundError{Kind: "channel", Key: listChannel}
			}
			filter.ChannelID = &ch.ID
		}
		if listStatus != "" {
			status := types.TaskStatus(listStatus)
			filter.Status = &status
		}
		tasks, err := a.controller.ListTasks(cmd.Context(), filter)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintTaskList(tasks)
		return nil
	},
}

var taskRunCmd = &cobra.Command{
	Use:   "run [task-id]",
	Short: "Drive a task through the workflow, pausing at checkpoints",
	Long: `Run executes steps in order. At each checkpoint the output is shown and
the run asks for confirmation; with --yes every checkpoint is accepted as is.
Without a task ID a new task is created from --channel and --brief.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(executeParams)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var id uuid.UUID
		if len(args) == 1 {
			if id, err = parseTaskID(args[0]); err != nil {
				return err
			}
		} else {
			task, err := a.createTask(cmd)
			if err != nil {
				return err
			}
			id = task.ID
			fmt.Fprintf(cmd.OutOrStdout(), "created task %s\n", id)
		}

		p := observability.NewPrinter(cmd.OutOrStdout())
		confirm := pipeline.AlwaysConfirm
		if !runYes {
			confirm = promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout(), a.controller.Registry())
		}

		task, err := pipeline.Run(cmd.Context(), a.controller, id, pipeline.RunOptions{
			StopAfter:  runStopAfter,
			Params:     params,
			Confirm:    confirm,
			OnProgress: p.PrintProgress,
			StepName:   a.stepName,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "task %s is %s at step %d\n", task.ID, task.Status, task.CurrentStep)
		if task.Status == types.StatusCompleted && task.FinalText != "" {
			p.SetFull(true)
			p.PrintStepOutput("final article", types.StepOutput{Output: task.FinalText})
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{taskCreateCmd, taskRunCmd} {
		c.Flags().StringVar(&taskChannel, "channel", "", "Channel ID or slug")
		c.Flags().StringVar(&taskTitle, "title", "", "Working title")
		c.Flags().StringVar(&taskBrief, "brief", "", "Writing brief")
		c.Flags().StringVar(&taskBriefFile, "brief-file", "", "Read the brief from a file")
	}

	for _, c := range []*cobra.Command{taskExecuteCmd, taskRunCmd} {
		c.Flags().StringArrayVarP(&executeParams, "param", "p", nil, "Step parameter as key=value (repeatable)")
	}
	taskExecuteCmd.Flags().IntVar(&executeStep, "step", 0, "Step to execute (default: current step)")

	f := taskConfirmCmd.Flags()
	f.StringVar(&confirmTopic, "topic", "", "Selected topic (topic proposals checkpoint)")
	f.StringVar(&confirmSample, "sample", "", "Style sample ID (style plan checkpoint)")
	f.StringVar(&confirmSummary, "knowledge-summary", "", "Edited knowledge summary (knowledge checkpoint)")
	f.StringVar(&confirmMaterials, "materials", "", "Editor-supplied materials (materials checkpoint)")
	f.StringVar(&confirmMaterialFile, "materials-file", "", "Read editor-supplied materials from a file")
	f.StringVar(&confirmOverrideFile, "override-file", "", "JSON file with a style override (style plan checkpoint)")
	f.StringVar(&confirmNote, "note", "", "Note recorded with the confirmation")

	taskAbortCmd.Flags().StringVar(&abortReason, "reason", "", "Why the task is aborted")
	taskShowCmd.Flags().BoolVar(&showFull, "full", false, "Print full step outputs")

	taskLogCmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Keep streaming new entries")
	taskLogCmd.Flags().Int64Var(&logAfter, "after", 0, "Only entries after this sequence number")

	taskListCmd.Flags().StringVar(&listChannel, "channel", "", "Channel ID or slug")
	taskListCmd.Flags().StringVar(&listStatus, "status", "", "Task status")
	taskListCmd.Flags().IntVar(&listLimit, "limit", workflow.DefaultListLimit, "Maximum tasks to list")
	taskListCmd.Flags().IntVar(&listOffset, "offset", 0, "Tasks to skip")

	taskRunCmd.Flags().IntVar(&runStopAfter, "stop-after", 0, "Stop after this step (default: run to the end)")
	taskRunCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Accept every checkpoint without prompting")

	taskCmd.AddCommand(taskCreateCmd, taskExecuteCmd, taskConfirmCmd, taskAbortCmd,
		taskShowCmd, taskDeleteCmd, taskLogCmd, taskListCmd, taskRunCmd)
	rootCmd.AddCommand(taskCmd)
}

func (a *app) createTask(cmd *cobra.Command) (*types.WritingTask, error) {
	if taskChannel == "" {
		return nil, fmt.Errorf("--channel is required")
	}
	brief := taskBrief
	if taskBriefFile != "" {
		data, err := os.ReadFile(taskBriefFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read brief: %w", err)
		}
		brief = string(data)
	}

	ch, err := a.catalog.ResolveChannel(cmd.Context(), taskChannel)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, &types.RecordNotFoundError{Kind: "channel", Key: taskChannel}
	}
	return a.controller.CreateTask(cmd.Context(), workflow.CreateTaskInput{
		ChannelID: ch.ID,
		Title:     taskTitle,
		Brief:     brief,
	})
}

func parseTaskID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid task ID %q: %w", s, err)
	}
	return id, nil
}

func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		params[k] = v
	}
	return params, nil
}

// confirmationFromFlags builds the checkpoint input from the confirm flags.
func confirmationFromFlags() (types.Confirmation, error) {
	in := types.Confirmation{
		SelectedTopic: confirmTopic,
		UserMaterials: confirmMaterials,
		Note:          confirmNote,
	}
	if confirmSummarySet {
		summary := confirmSummary
		in.KnowledgeSummary = &summary
	}
	if confirmSample != "" {
		id, err := uuid.Parse(confirmSample)
		if err != nil {
			return in, fmt.Errorf("invalid sample ID %q: %w", confirmSample, err)
		}
		in.SelectedSampleID = &id
	}
	if confirmMaterialFile != "" {
		data, err := os.ReadFile(confirmMaterialFile)
		if err != nil {
			return in, fmt.Errorf("failed to read materials: %w", err)
		}
		in.UserMaterials = string(data)
	}
	if confirmOverrideFile != "" {
		data, err := os.ReadFile(confirmOverrideFile)
		if err != nil {
			return in, fmt.Errorf("failed to read style override: %w", err)
		}
		var override types.UserStyleOverride
		if err := json.Unmarshal(data, &override); err != nil {
			return in, fmt.Errorf("failed to parse style override: %w", err)
		}
		in.StyleOverride = &override
	}
	return in, nil
}

// promptConfirm asks on out for each checkpoint and reads one line from in.
// An empty line accepts, "q" stops the run, and other text becomes the
// checkpoint reply: the topic at topic proposals, the editor's materials at
// materials confirmation, a note elsewhere.
func promptConfirm(in io.Reader, out io.Writer, registry *steps.Registry) pipeline.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(task *types.WritingTask) (types.Confirmation, bool) {
		def, _ := registry.Definition(task.CurrentStep)
		fmt.Fprintf(out, "Confirm step %d (%s)? [enter] accept, text reply, q stop: ", task.CurrentStep, def.Name)

		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil && line == "" {
			return types.Confirmation{}, false
		}
		if strings.EqualFold(line, "q") {
			return types.Confirmation{}, false
		}

		var c types.Confirmation
		if line == "" {
			return c, true
		}
		switch def.Name {
		case steps.StepTopics:
			c.SelectedTopic = line
		case steps.StepMaterials:
			c.UserMaterials = line
		default:
			c.Note = line
		}
		return c, true
	}
}
