// Command chix provides an MCP server for the Nix toolchain.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix"
	"github.com/deixis/chix/internal/background"
	"github.com/deixis/chix/internal/config"
	"github.com/deixis/chix/internal/logstore"
	chixmcp "github.com/deixis/chix/internal/mcp"
	"github.com/deixis/chix/internal/nix"
	"github.com/deixis/chix/internal/runner"
)

func main() {
	// .env provides CACHIX_AUTH_TOKEN and friends during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "mcp":
		err = mcpMain(args)
	case "run":
		err = runMain(args)
	case "doctor":
		err = doctorMain(args)
	case "install-claude":
		err = installClaudeMain(args)
	case "version":
		fmt.Println(chix.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "chix: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "chix: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: chix <command> [flags]

Commands:
  mcp             Start the MCP server (stdio, or HTTP with -http)
  run             Run a flake app once and print the result as JSON
  doctor          Report which Nix toolchain programs are available
  install-claude  Register chix with the Claude Code CLI
  version         Print the version
  help            Show this help

Use "chix <command> -h" for command-specific flags.`)
}

// setupLogging routes slog through tint on stderr. Stdout belongs to
// the MCP stdio transport and must stay clean.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(chixmcp.Instructions)
		return nil
	}

	setupLogging(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	disk, err := logstore.NewDiskStore()
	if err != nil {
		return fmt.Errorf("creating log store: %w", err)
	}
	logs := logstore.NewLRUStore(16, disk)

	r := &runner.Runner{Timeout: cfg.Timeout()}

	tasks := background.NewManager(0)
	defer tasks.Shutdown()

	opts := []chixmcp.ServerOption{chixmcp.WithBackgroundManager(tasks)}
	if nilPath, err := exec.LookPath("nil"); err == nil {
		slog.Debug("nil language server found", "path", nilPath)
		opts = append(opts, chixmcp.WithNilServer(nilPath))
	} else {
		slog.Debug("nil language server not found; nil_* tools degraded")
	}

	server := chixmcp.NewServer(cfg, r, logs, loaded.FlakeRoot, opts...)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	slog.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	timeoutFlag := fs.Duration("timeout", 0, "override configured timeout (e.g. 5m)")
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	setupLogging(*verbose)

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: chix run <installable> [args...]")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(*timeoutFlag)
	if err != nil {
		return err
	}

	res, err := eng.Run(ctx, nix.RunParams{
		Installable: rest[0],
		Args:        rest[1:],
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		os.Exit(1)
	}
	return nil
}

// --- doctor ---

// toolchain lists the external programs chix drives and how to get them.
var toolchain = []struct {
	name     string
	required bool
	install  string
}{
	{"nix", true, "https://nixos.org/download"},
	{"cachix", false, "nix profile install nixpkgs#cachix"},
	{"fh", false, "nix profile install nixpkgs#fh"},
	{"nil", false, "nix profile install nixpkgs#nil"},
}

func doctorMain(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	r := &runner.Runner{Timeout: 10 * time.Second}

	missing := false
	for _, tool := range toolchain {
		if _, err := exec.LookPath(tool.name); err != nil {
			if tool.required {
				missing = true
				fmt.Printf("  %-8s %s\n", tool.name, red("missing (required)"))
			} else {
				fmt.Printf("  %-8s %s\n", tool.name, yellow("missing"))
			}
			fmt.Printf("           install: %s\n", tool.install)
			continue
		}

		version := probeVersion(ctx, r, tool.name)
		fmt.Printf("  %-8s %s  %s\n", tool.name, green("ok"), version)
	}

	if missing {
		return fmt.Errorf("required tools are missing")
	}
	return nil
}

// probeVersion asks a tool for its version, returning the first output
// line or an empty string.
func probeVersion(ctx context.Context, r *runner.Runner, name string) string {
	out, err := r.Run(ctx, runner.Command{Program: name, Args: []string{"--version"}})
	if err != nil || !out.Succeeded {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out.Stdout), "\n")
	return line
}

// --- install-claude ---

func installClaudeMain(args []string) error {
	fs := flag.NewFlagSet("install-claude", flag.ExitOnError)
	scope := fs.String("scope", "user", "registration scope: user or project")
	_ = fs.Parse(args)

	claude, err := exec.LookPath("claude")
	if err != nil {
		return fmt.Errorf("claude CLI not found on PATH")
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}

	cmd := exec.Command(claude, "mcp", "add", "--scope", *scope, "chix", "--", exe, "mcp")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("registering with claude: %w", err)
	}

	fmt.Println("chix registered. Restart Claude Code to pick it up.")
	return nil
}

// --- shared ---

func newEngine(timeoutOverride time.Duration) (*nix.Engine, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	timeout := cfg.Timeout()
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	return &nix.Engine{
		Config:    cfg,
		Runner:    &runner.Runner{Timeout: timeout},
		FlakeRoot: loaded.FlakeRoot,
	}, nil
}
