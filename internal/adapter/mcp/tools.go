package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/tasktimer/internal/domain/task"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listTasksTool(),
		s.addTaskTool(),
		s.timerTool("start_task", "Start the timer of a task. Starting a running task changes nothing.", s.deps.Tasks.Start),
		s.timerTool("stop_task", "Stop the timer of a task and keep the accrued whole seconds.", s.deps.Tasks.Stop),
		s.timerTool("reset_task", "Stop the timer of a task and zero its elapsed time.", s.deps.Tasks.Reset),
		s.moveTaskTool(),
		s.deleteTaskTool(),
		s.summaryTool(),
	)
}

func taskIDParam() mcplib.ToolOption {
	return mcplib.WithNumber("task_id",
		mcplib.Required(),
		mcplib.Description("The task ID"),
	)
}

func (s *Server) listTasksTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_tasks",
		mcplib.WithDescription("List all tasks in display order with their current timer values"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListTasks}
}

func (s *Server) addTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("add_task",
		mcplib.WithDescription("Add a stopped task at the end of the list"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("Task name"),
		),
		mcplib.WithNumber("estimated_minutes",
			mcplib.Required(),
			mcplib.Description("Estimated duration in whole minutes, at least 1"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleAddTask}
}

func (s *Server) timerTool(name, description string, fn func(context.Context, int64) (*task.Task, error)) mcpserver.ServerTool {
	tool := mcplib.NewTool(name,
		mcplib.WithDescription(description),
		taskIDParam(),
	)
	return mcpserver.ServerTool{
		Tool: tool,
		Handler: func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
			id, err := intArg(req.GetArguments(), "task_id")
			if err != nil {
				return mcplib.NewToolResultError(err.Error()), nil
			}
			t, err := fn(ctx, id)
			if err != nil {
				return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("%s %d failed", name, id), err), nil
			}
			return s.viewResult(t)
		},
	}
}

func (s *Server) moveTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("move_task",
		mcplib.WithDescription("Swap a task with its neighbour above or below. Moving the first task up or the last task down changes nothing."),
		taskIDParam(),
		mcplib.WithString("direction",
			mcplib.Required(),
			mcplib.Enum("up", "down"),
			mcplib.Description("Direction in display order"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleMoveTask}
}

func (s *Server) deleteTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("delete_task",
		mcplib.WithDescription("Delete a task; the tasks below it move up one position"),
		taskIDParam(),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleDeleteTask}
}

func (s *Server) summaryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("task_summary",
		mcplib.WithDescription("Totals across all tasks: count, running, tracked and estimated seconds"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleSummary}
}

func (s *Server) handleListTasks(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	views, err := s.deps.Tasks.Views(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list tasks", err), nil
	}
	return jsonResult(views)
}

func (s *Server) handleAddTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	name, _ := args["name"].(string)
	minutes, err := intArg(args, "estimated_minutes")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	t, err := s.deps.Tasks.Add(ctx, task.CreateRequest{Name: name, EstimatedMinutes: int(minutes)})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to add task", err), nil
	}
	return s.viewResult(t)
}

func (s *Server) handleMoveTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	id, err := intArg(args, "task_id")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	dir, _ := args["direction"].(string)
	d, err := task.ParseDirection(dir)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	t, err := s.deps.Tasks.Move(ctx, id, d)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to move task %d", id), err), nil
	}
	return s.viewResult(t)
}

func (s *Server) handleDeleteTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	id, err := intArg(req.GetArguments(), "task_id")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	if err := s.deps.Tasks.Delete(ctx, id); err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to delete task %d", id), err), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf(`{"deleted":%d}`, id)), nil
}

func (s *Server) handleSummary(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	sum, err := s.deps.Tasks.Summary(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to summarize tasks", err), nil
	}
	return jsonResult(sum)
}

func (s *Server) viewResult(t *task.Task) (*mcplib.CallToolResult, error) {
	return jsonResult(s.deps.Tasks.View(t))
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

// intArg reads a whole-number argument. JSON numbers arrive as float64.
func intArg(args map[string]any, key string) (int64, error) {
	switch v := args[key].(type) {
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return 0, fmt.Errorf("%s must be a whole number", key)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case nil:
		return 0, fmt.Errorf("%s is required", key)
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}
