package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ironsheep/pixel-profile-mcp/internal/config"
	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
	"github.com/ironsheep/pixel-profile-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := os.Getenv(config.EnvConfigPath)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v", "version":
			fmt.Printf("pixel-profile-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		case "--config", "-c":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a path")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q (see --help)\n", args[i])
			os.Exit(2)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Logging goes to stderr (stdout is for MCP protocol)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	logger.Debug("pixel profile MCP server",
		"version", Version,
		"built", BuildTime,
		"commit", GitCommit,
		"config", configPath)

	server.Version = Version
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("pixel-profile-mcp - MCP server for pixel profiles, transitions and corners")
	fmt.Println()
	fmt.Println("Usage: pixel-profile-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v        Print version information")
	fmt.Println("  --help, -h           Print this help message")
	fmt.Println("  --config, -c <path>  Load settings from a JSON file")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=<path>               Config file (overridden by --config)\n", config.EnvConfigPath)
	fmt.Printf("  %s=debug|info|warn|error\n", config.EnvLogLevel)
	fmt.Printf("  %s=%v\n", config.EnvCornerBackend, detection.CornerBackends())
	fmt.Printf("  %s=first-byte|luma|lightness\n", config.EnvExtractRule)
	fmt.Printf("  %s=%s|%s\n", config.EnvClassification, config.ClassifyLookAhead, config.ClassifyGradientSign)
	fmt.Printf("  %s=<n>                Detection results cached per kind (0 disables)\n", config.EnvCacheSize)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
