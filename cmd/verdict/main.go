// Verdict: an MCP judge server for AI coding workflows.
//
// Verdict gives AI coding assistants an external reviewer: plans, code
// changes, testing and completion all pass through LLM-backed judging
// tools, with a persistent task workflow tracked across the session.
//
// Usage:
//
//	verdict serve [-config path]   # Start MCP server (stdio transport)
//	verdict update                 # Self-update to the latest release
//	verdict version                # Print version
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/verdict-mcp/verdict/internal/config"
	verdictserver "github.com/verdict-mcp/verdict/internal/server"
	"github.com/verdict-mcp/verdict/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("verdict v%s\n", verdictserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := flags.String("config", "", "path to YAML config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Logs go to stderr: stdout belongs to the MCP stdio transport.
	setupLogging()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, cleanup, err := verdictserver.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Graceful shutdown on interrupt: ServeStdio exits when stdin
	// closes; a signal triggers cleanup via the deferred call.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cleanup()
		os.Exit(0)
	}()

	go notifyIfOutdated()

	slog.Info("verdict serving on stdio", "version", verdictserver.Version)
	return server.ServeStdio(s)
}

// notifyIfOutdated runs a best-effort version check in the background.
func notifyIfOutdated() {
	result := updater.CheckVersion(verdictserver.Version)
	if result.UpdateAvailable {
		slog.Info("update available",
			"current", result.CurrentVersion,
			"latest", result.LatestVersion,
			"release", result.ReleaseURL,
		)
	}
}

// runUpdate replaces the running binary with the latest release.
func runUpdate() {
	result := updater.CheckVersion(verdictserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "New version available: v%s -> v%s\nDownloading...\n",
		result.CurrentVersion, result.LatestVersion)

	if err := updater.SelfUpdate(verdictserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\nDownload manually from:\n  %s\n", err, result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Updated to v%s. Restart verdict to use the new version.\n", result.LatestVersion)
}

func setupLogging() {
	level := slog.LevelInfo
	if v := os.Getenv("VERDICT_LOG_LEVEL"); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			level = l
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Verdict v%s — MCP judge server for AI coding workflows

Usage:
  verdict serve [-config path]   Start the MCP server (stdio transport)
  verdict update                 Self-update to the latest release
  verdict version                Print version

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "verdict": {
        "command": "verdict",
        "args": ["serve"]
      }
    }
  }

Environment:
  VERDICT_CONFIG, VERDICT_DB_URL, VERDICT_MAX_SESSION_RECORDS,
  VERDICT_RETENTION_DAYS, VERDICT_CONTEXT_RECORDS, VERDICT_LLM_TIMEOUT,
  VERDICT_MAX_TOKENS, VERDICT_LOG_LEVEL
`, verdictserver.Version)
}
