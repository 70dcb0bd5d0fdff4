// Command mcp-gas-daemon wires together the Lock Manager, Git Operation
// Manager, Rsync Engine and the status Inspectors that back the tool
// surface described in spec §6. Actually framing tool calls over stdio and
// dispatching them to these components is out of scope (spec §1a) - this
// binary exists so an operator can drive the same core directly from a
// shell, mirroring cmd/git-sync/git-sync.go's cmdflag-based CLI shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	isatty "github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tebeka/atexit"

	"github.com/msolo/cmdflag"
	"github.com/msolo/mcp-gas/internal/config"
	"github.com/msolo/mcp-gas/internal/gitops"
	"github.com/msolo/mcp-gas/internal/lock"
	"github.com/msolo/mcp-gas/internal/logging"
	"github.com/msolo/mcp-gas/internal/remote"
	"github.com/msolo/mcp-gas/internal/rsync"
	"github.com/msolo/mcp-gas/internal/status"
	"github.com/msolo/mcp-gas/internal/worktree"
)

const defaultMetricsAddr = "127.0.0.1:9090"

// daemon holds the core components, built once in main and read (never
// mutated) by the subcommands below.
type daemon struct {
	cfg      *config.Config
	locks    *lock.Manager
	resolver worktree.Resolver
	client   remote.Client
	git      *gitops.Manager
	sync     *rsync.Engine
}

var d *daemon

func exitOnError(err error) {
	if err != nil {
		atexit.Fatal(err)
	}
}

func mustInitDaemon() *daemon {
	home, err := os.UserHomeDir()
	exitOnError(err)

	cfg, err := config.Load(config.DefaultPath(home), home)
	exitOnError(err)

	reg := prometheus.NewRegistry()
	locks, err := lock.New(cfg.LockDir, reg)
	exitOnError(err)

	resolver := worktree.NewFS(cfg.WorktreeRoot)

	// The Remote's real HTTP SDK is a named out-of-scope collaborator (spec
	// §1a); remote.Fake is the only Client this repo builds, and is what a
	// local operator run exercises against.
	client := remote.NewFake()

	return &daemon{
		cfg:      cfg,
		locks:    locks,
		resolver: resolver,
		client:   client,
		git:      gitops.New(locks, resolver, client),
		sync:     rsync.New(locks, resolver, client),
	}
}

var (
	statusSections string
	statusJSON     bool
)

var cmdStatus = &cmdflag.Command{
	Name:      "status",
	Run:       runStatus,
	UsageLine: "status [--sections=git,locks,sync] [--json] <scriptId>",
	UsageLong: `Report aggregated health for scriptId: git, locks and sync.`,
	Flags: []cmdflag.Flag{
		{"sections", cmdflag.FlagTypeString, "", "comma-separated list of sections to report (default: all)", nil},
		{"json", cmdflag.FlagTypeBool, false, "emit machine-readable JSON instead of a human-readable report", nil},
	},
	Args: cmdflag.PredictNothing,
}

func runStatus(ctx context.Context, cmd *cmdflag.Command, args []string) {
	if len(args) != 1 {
		exitOnError(errors.New("status: expected exactly one scriptId argument"))
	}
	scriptID := args[0]

	inspectors := []status.Inspector{d.locks, d.git, d.sync}
	var sections []string
	if statusSections != "" {
		sections = strings.Split(statusSections, ",")
	}
	report := status.Aggregate(ctx, inspectors, scriptID, sections)

	if statusJSON || !isatty.IsTerminal(os.Stdout.Fd()) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		exitOnError(enc.Encode(report))
		return
	}

	for _, sec := range report {
		state := "ok"
		if !sec.Healthy {
			state = "unhealthy"
		}
		if sec.Error != "" {
			fmt.Printf("%-8s %-10s %s\n", sec.Name, state, sec.Error)
		} else {
			fmt.Printf("%-8s %-10s\n", sec.Name, state)
		}
		for k, v := range sec.Detail {
			fmt.Printf("    %s: %v\n", k, v)
		}
	}
}

var cmdMetrics = &cmdflag.Command{
	Name:      "metrics",
	Run:       runMetrics,
	UsageLine: "metrics",
	UsageLong: `Serve the lock manager's Prometheus metrics over HTTP until interrupted (spec §4.7).`,
}

func runMetrics(ctx context.Context, cmd *cmdflag.Command, args []string) {
	if !d.cfg.MetricsEnabled {
		exitOnError(errors.New("metrics: metricsEnabled is false in config"))
	}
	handler := d.locks.MetricsHandler()
	if handler == nil {
		exitOnError(errors.New("metrics: lock manager has no registered gatherer"))
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: defaultMetricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logging.Infof("serving metrics on %s", defaultMetricsAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		exitOnError(err)
	}
}

var cmdMain = &cmdflag.Command{
	Name: "mcp-gas-daemon",
	UsageLong: `mcp-gas-daemon - operator entrypoint for the mcp-gas core

mcp-gas-daemon wires together the Lock Manager, Git Operation Manager,
Rsync Engine and status Inspectors against a local worktree root and an
in-memory Remote stand-in, so the core can be exercised directly from a
shell rather than only through the (out-of-scope) stdio tool-call
transport.

Config is read from ~/.mcp-gas/config.jsonc if present, falling back to
defaults rooted at the user's home directory.
`,
	Args: cmdflag.PredictNothing,
}

var subcommands = []*cmdflag.Command{
	cmdStatus,
	cmdMetrics,
}

func main() {
	defer atexit.Exit(0)

	logging.Bootstrap("WARNING")
	logging.SetLevelFromEnv("MCP_GAS_TRACE", "WARNING")
	logging.RegisterFlags(flag.CommandLine)

	cmdStatus.BindFlagSet(map[string]interface{}{
		"sections": &statusSections,
		"json":     &statusJSON,
	})

	cmd, args := cmdflag.Parse(cmdMain, subcommands)

	d = mustInitDaemon()

	ctx, cancel := context.WithTimeout(context.Background(), 24*time.Hour)
	defer cancel()

	cmd.Run(ctx, cmd, args)
}
