package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Strob0t/tasktimer/internal/domain/task"
	"github.com/Strob0t/tasktimer/internal/logger"
	"github.com/Strob0t/tasktimer/internal/service"
)

const (
	defaultTermWidth = 80
	minNameWidth     = 8
	// Width of the POS, ID, CLOCK, EST and STATE columns including padding.
	fixedColumnsWidth = 44
)

// nopBroadcaster drops change notifications; the CLI has no connected clients.
type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastEvent(context.Context, string, any) {}

type taskOptions struct {
	*rootOptions
	json bool
}

func newTaskCmd(root *rootOptions) *cobra.Command {
	opts := &taskOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks directly against the store",
	}
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of a table")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME MINUTES",
			Short: "Add a stopped task at the end of the list",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				minutes, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("minutes must be a whole number, got %q", args[1])
				}
				return opts.withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
					t, err := svc.Add(ctx, task.CreateRequest{Name: args[0], EstimatedMinutes: minutes})
					if err != nil {
						return err
					}
					return opts.printView(cmd.OutOrStdout(), svc.View(t))
				})
			},
		},
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List tasks in display order",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
					views, err := svc.Views(ctx)
					if err != nil {
						return err
					}
					return opts.printViews(cmd.OutOrStdout(), views)
				})
			},
		},
		opts.actionCmd("start", "Start the timer of a task", (*service.TaskService).Start),
		opts.actionCmd("stop", "Stop the timer of a task", (*service.TaskService).Stop),
		opts.actionCmd("reset", "Stop a task and zero its elapsed time", (*service.TaskService).Reset),
		opts.actionCmd("up", "Move a task one position up", (*service.TaskService).MoveUp),
		opts.actionCmd("down", "Move a task one position down", (*service.TaskService).MoveDown),
		&cobra.Command{
			Use:     "delete ID",
			Aliases: []string{"rm"},
			Short:   "Delete a task",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				return opts.withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
					if err := svc.Delete(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted task %d\n", id)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "summary",
			Short: "Print totals across all tasks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
					s, err := svc.Summary(ctx)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					if opts.json {
						return json.NewEncoder(out).Encode(s)
					}
					fmt.Fprintf(out, "tasks: %d  running: %d  over estimate: %d\n", s.Tasks, s.Running, s.OverEstimate)
					fmt.Fprintf(out, "tracked: %s  estimated: %s\n", task.FormatClock(s.TrackedSeconds), task.FormatClock(s.EstimatedSeconds))
					return nil
				})
			},
		},
	)
	return cmd
}

func (o *taskOptions) actionCmd(name, short string, fn func(*service.TaskService, context.Context, int64) (*task.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return o.withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
				t, err := fn(svc, ctx, id)
				if err != nil {
					return err
				}
				return o.printView(cmd.OutOrStdout(), svc.View(t))
			})
		},
	}
}

// withService opens and migrates the configured store and runs fn against
// a TaskService bound to it.
func (o *taskOptions) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.TaskService) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	closeLog := setupLogger(cmd.ErrOrStderr(), cfg.Logging)
	defer closeLog.Close()

	ctx := logger.WithOrigin(cmd.Context(), logger.OriginCLI)
	st, err := openMigratedStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.store.Close() }()

	return fn(ctx, service.NewTaskService(st.store, nopBroadcaster{}))
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("task id must be a positive integer, got %q", s)
	}
	return id, nil
}

func (o *taskOptions) printView(w io.Writer, v task.View) error {
	if o.json {
		return json.NewEncoder(w).Encode(v)
	}
	return o.printViews(w, []task.View{v})
}

func (o *taskOptions) printViews(w io.Writer, views []task.View) error {
	if o.json {
		return json.NewEncoder(w).Encode(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(w, "no tasks")
		return nil
	}

	nameWidth := max(terminalWidth(w)-fixedColumnsWidth, minNameWidth)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tID\tNAME\tCLOCK\tEST\tSTATE")
	for i := range views {
		v := &views[i]
		state := string(v.State)
		if v.OverEstimate {
			state += " (over)"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%dm\t%s\n",
			v.Position, v.ID, truncate(v.Name, nameWidth), v.Display, v.EstimatedMinutes, state)
	}
	return tw.Flush()
}

// terminalWidth reports the column count of w when it is a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultTermWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultTermWidth
	}
	return width
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}
