// Command scenepilot-setup prepares a machine to run the ScenePilot bridge:
// it creates the data layout, initializes the transcript database, and
// writes a starter .env. Run with --verify to health-check an existing
// installation instead.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/internal/transcript/sqlite"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--verify" {
			runVerify()
			return
		}
	}

	printBanner()

	fmt.Println("Welcome to ScenePilot Setup!")
	fmt.Println("ScenePilot is the AI sidecar for your 3D editor.")
	fmt.Println()

	dataPath := ask("Data directory", defaultDataPath())
	provider := prompt("Which LLM provider will you use?", []string{
		"OpenAI",
		"Anthropic",
		"Ollama (local, no API key needed)",
	})

	var apiKey string
	providerName := "openai"
	switch provider {
	case "1":
		providerName = "openai"
		apiKey = ask("OpenAI API key (leave empty to set later)", "")
	case "2":
		providerName = "anthropic"
		apiKey = ask("Anthropic API key (leave empty to set later)", "")
	case "3":
		providerName = "ollama"
	}

	if err := setup(dataPath, providerName, apiKey); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf(`
Setup complete!

Start the bridge:
  ./scenepilot-bridge

Then point your editor plugin at:
  http://127.0.0.1:6464

Try it from a terminal first:
  ./scenepilot-repl
`)
}

func printBanner() {
	fmt.Print(`
 ____                     ____  _ _       _
/ ___|  ___ ___ _ __   __|  _ \(_) | ___ | |_
\___ \ / __/ _ \ '_ \ / _ \ |_) | | |/ _ \| __|
 ___) | (_|  __/ | | |  __/  __/| | | (_) | |_
|____/ \___\___|_| |_|\___|_|   |_|_|\___/ \__|

AI Sidecar for 3D Editors
`)
}

// setup creates the data layout, initializes the database, and writes a
// starter .env when none exists.
func setup(dataPath, provider, apiKey string) error {
	for _, dir := range []string{dataPath, filepath.Join(dataPath, "scene"), filepath.Join(dataPath, "backups")} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		fmt.Printf("OK: %s\n", dir)
	}

	// Opening the store creates the schema.
	dbPath := filepath.Join(dataPath, "scenepilot.db")
	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := store.Close(); err != nil {
		return err
	}
	fmt.Printf("OK: database initialized at %s\n", dbPath)

	if _, err := os.Stat(".env"); err == nil {
		fmt.Println("OK: .env already exists, leaving it alone")
	} else {
		if err := writeEnvFile(".env", dataPath, provider, apiKey); err != nil {
			return fmt.Errorf("failed to write .env: %w", err)
		}
		fmt.Println("OK: starter .env written")
	}

	// A quick round trip confirms the provider is reachable when a key is
	// configured. Skipped otherwise so offline setup still succeeds.
	if apiKey != "" {
		testProvider(dataPath, provider, apiKey)
	}

	return nil
}

// writeEnvFile writes a starter environment file with the chosen provider.
func writeEnvFile(path, dataPath, provider, apiKey string) error {
	var sb strings.Builder
	sb.WriteString("# ScenePilot bridge configuration\n")
	sb.WriteString("SCENEPILOT_DATA_PATH=" + dataPath + "\n")
	sb.WriteString("SCENEPILOT_LLM_PROVIDER=" + provider + "\n")
	switch provider {
	case "openai":
		sb.WriteString("SCENEPILOT_OPENAI_API_KEY=" + apiKey + "\n")
	case "anthropic":
		sb.WriteString("SCENEPILOT_ANTHROPIC_API_KEY=" + apiKey + "\n")
	case "ollama":
		sb.WriteString("SCENEPILOT_OLLAMA_URL=http://localhost:11434\n")
	}
	sb.WriteString("SCENEPILOT_BACKUP_ENABLED=true\n")
	sb.WriteString("SCENEPILOT_BACKUP_PATH=" + filepath.Join(dataPath, "backups") + "\n")
	sb.WriteString("# SCENEPILOT_SECURITY_MODE=production\n")
	sb.WriteString("# SCENEPILOT_API_TOKEN=\n")
	return os.WriteFile(path, []byte(sb.String()), 0o600)
}

// testProvider runs one round trip through the gateway against the chosen
// provider. Failures are warnings; setup still succeeds.
func testProvider(dataPath, provider, apiKey string) {
	fmt.Print("Testing LLM connection... ")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("skipped (%v)\n", err)
		return
	}
	cfg.Storage.DataPath = dataPath
	cfg.LLM.Provider = provider
	switch provider {
	case "openai":
		cfg.LLM.OpenAIAPIKey = apiKey
	case "anthropic":
		cfg.LLM.AnthropicAPIKey = apiKey
	}

	client, err := llm.NewChatClient(cfg, nil)
	if err != nil {
		fmt.Printf("WARNING: %v\n", err)
		return
	}
	gateway := llm.NewGateway(client, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	result := gateway.TestConnection(ctx)
	if result.Success {
		fmt.Printf("OK (%s, %dms)\n", result.Model, result.LatencyMS)
	} else {
		fmt.Printf("WARNING: %s\n", result.Error)
		fmt.Println("   The bridge will start anyway; fix the key in .env and retry.")
	}
}

// runVerify performs a health check of an existing installation.
func runVerify() {
	fmt.Println("ScenePilot Setup Verification")
	fmt.Println("=============================")
	fmt.Println()

	statusOK := true

	dataDir := os.Getenv("SCENEPILOT_DATA_PATH")
	if dataDir == "" {
		dataDir = defaultDataPath()
	}

	if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
		testFile := filepath.Join(dataDir, ".scenepilot-write-test")
		if err := os.WriteFile(testFile, []byte("test"), 0o600); err == nil {
			os.Remove(testFile)
			fmt.Printf("Data path:    OK %s (writable)\n", dataDir)
		} else {
			fmt.Printf("Data path:    FAIL %s (not writable)\n", dataDir)
			statusOK = false
		}
	} else {
		fmt.Printf("Data path:    FAIL %s (does not exist)\n", dataDir)
		statusOK = false
	}

	dbPath := filepath.Join(dataDir, "scenepilot.db")
	if info, err := os.Stat(dbPath); err == nil && !info.IsDir() {
		fmt.Printf("Database:     OK %s (%d bytes)\n", dbPath, info.Size())
	} else {
		fmt.Printf("Database:     FAIL %s (missing; run scenepilot-setup)\n", dbPath)
		statusOK = false
	}

	sceneDir := filepath.Join(dataDir, "scene")
	if info, err := os.Stat(sceneDir); err == nil && info.IsDir() {
		fmt.Printf("Scene dir:    OK %s\n", sceneDir)
	} else {
		fmt.Printf("Scene dir:    FAIL %s (missing)\n", sceneDir)
		statusOK = false
	}

	fmt.Println()
	if statusOK {
		fmt.Println("Status:       READY")
		os.Exit(0)
	}
	fmt.Println("Status:       NOT READY")
	fmt.Println()
	fmt.Println("Run scenepilot-setup to install missing components.")
	os.Exit(1)
}

func defaultDataPath() string {
	return "./data"
}

// prompt shows a numbered menu and returns the selected number as string.
func prompt(question string, options []string) string {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("\n%s\n", question)
		for i, opt := range options {
			fmt.Printf("  [%d] %s\n", i+1, opt)
		}
		fmt.Print("\nEnter choice: ")
		scanner.Scan()
		choice := strings.TrimSpace(scanner.Text())
		for i := range options {
			if choice == fmt.Sprintf("%d", i+1) {
				return choice
			}
		}
		fmt.Printf("Please enter a number between 1 and %d\n", len(options))
	}
}

// ask asks a free-text question with an optional default.
func ask(question, defaultVal string) string {
	scanner := bufio.NewScanner(os.Stdin)
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	scanner.Scan()
	val := strings.TrimSpace(scanner.Text())
	if val == "" {
		return defaultVal
	}
	return val
}
