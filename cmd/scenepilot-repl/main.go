// The scenepilot-repl binary drives the orchestration pipeline from a
// terminal, without the HTTP bridge. It is the quickest way to poke at
// classification, clarification, and planning against a real provider.
//
// All logging goes to stderr so stdout stays a clean conversation stream.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/engine"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/internal/session"
	"github.com/scenepilot/scenepilot/pkg/types"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := stderrLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	client, err := llm.NewChatClient(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create LLM client", zap.Error(err))
	}
	gateway := llm.NewGateway(client, cfg, logger)
	sessions := session.NewManager(gateway, cfg, logger)
	eng, err := sessions.Get(session.DefaultSession)
	if err != nil {
		logger.Fatal("failed to build session", zap.Error(err))
	}

	fmt.Println("ScenePilot REPL. Type /help for commands, /quit to exit.")
	runREPL(context.Background(), eng, os.Stdin, os.Stdout)
}

// stderrLogger builds a console logger pinned to stderr so the conversation
// stream on stdout stays clean.
func stderrLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if !cfg.Development {
		zc = zap.NewProductionConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
		zc.Level = level
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// runREPL reads lines until EOF or /quit. Lines starting with "/" are
// commands; anything else goes through the pipeline with the currently
// loaded scene snapshot.
func runREPL(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer) {
	var scene *types.SceneSnapshot

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, eng, &scene, line, out); quit {
				return
			}
			fmt.Fprint(out, "> ")
			continue
		}

		printResult(out, eng.Process(ctx, line, scene))
		fmt.Fprint(out, "> ")
	}
}

// runCommand dispatches one slash command. Returns true on /quit.
func runCommand(ctx context.Context, eng *engine.Engine, scene **types.SceneSnapshot, line string, out io.Writer) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		fmt.Fprintln(out, "bye")
		return true

	case "/help":
		fmt.Fprintln(out, `Commands:
  /scene <file>        load a scene snapshot from a JSON file
  /plan <id>           show a stored plan
  /step <id> <n>       execute one plan step
  /run <id>            execute every remaining plan step
  /clear               clear conversation memory
  /stats               show engine statistics
  /quit                exit`)

	case "/scene":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: /scene <file>")
			break
		}
		snapshot, err := loadSnapshot(fields[1])
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			break
		}
		*scene = snapshot
		fmt.Fprintf(out, "scene loaded: %d objects, mode %s\n", len(snapshot.Objects), snapshot.Mode)

	case "/plan":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: /plan <id>")
			break
		}
		plan, ok := eng.Plan(fields[1])
		if !ok {
			fmt.Fprintln(out, "plan not found or expired")
			break
		}
		fmt.Fprintf(out, "plan %s: %s\n", plan.ID, plan.PlanSummary)
		for _, step := range plan.Steps {
			fmt.Fprintf(out, "  %d. %s\n", step.StepNumber, step.Description)
		}

	case "/step":
		if len(fields) < 3 {
			fmt.Fprintln(out, "usage: /step <id> <n>")
			break
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil || n < 1 {
			fmt.Fprintln(out, "step number must be a positive integer")
			break
		}
		printResult(out, eng.ExecutePlanStep(ctx, fields[1], n))

	case "/run":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: /run <id>")
			break
		}
		printResult(out, eng.ExecutePlan(ctx, fields[1]))

	case "/clear":
		eng.ClearConversation()
		fmt.Fprintln(out, "conversation cleared")

	case "/stats":
		stats := eng.Stats()
		fmt.Fprintf(out, "turns=%d entities=%d plans=%d pending_clarifications=%d busy=%v\n",
			stats.Turns, stats.Entities, stats.StoredPlans, stats.PendingClarifications, stats.Busy)

	default:
		fmt.Fprintf(out, "unknown command %s (try /help)\n", fields[0])
	}
	return false
}

// loadSnapshot reads a scene snapshot from a JSON file on disk.
func loadSnapshot(path string) (*types.SceneSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snapshot types.SceneSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("invalid snapshot file: %w", err)
	}
	return &snapshot, nil
}

// printResult renders an engine result for the terminal, one shape per
// result type.
func printResult(out io.Writer, result *types.EngineResult) {
	if result.Failed() {
		fmt.Fprintf(out, "error: %s\n", result.Error)
		return
	}

	switch result.Type {
	case types.ResultClarification:
		fmt.Fprintf(out, "? %s\n", result.Question)

	case types.ResultPlanPreview:
		fmt.Fprintf(out, "plan %s: %s\n", result.PlanID, result.PlanSummary)
		for _, step := range result.Steps {
			fmt.Fprintf(out, "  %d. %s\n", step.StepNumber, step.Description)
		}
		fmt.Fprintf(out, "execute with: /run %s\n", result.PlanID)

	case types.ResultTask:
		if result.Content != "" {
			fmt.Fprintln(out, result.Content)
		}
		if result.Code != "" {
			fmt.Fprintln(out, result.Code)
		}

	case types.ResultMultiStep:
		fmt.Fprintf(out, "step %d/%d: %s\n", result.CurrentStep, result.TotalSteps, result.StepDescription)
		if result.Code != "" {
			fmt.Fprintln(out, result.Code)
		}
		if result.HasNextStep && result.NextStep != nil {
			fmt.Fprintf(out, "next: %d. %s\n", result.NextStep.StepNumber, result.NextStep.Description)
		}

	default:
		fmt.Fprintln(out, result.Content)
	}
}
