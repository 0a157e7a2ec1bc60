// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// corral launches a command inside a fresh network-fenced container.
//
// The working directory is bind-mounted into the container at the same
// path, outbound traffic is restricted to an allowlist of domains, and
// the container is destroyed when the command exits. Each invocation
// gets a clean environment; nothing persists between runs except the
// working directory itself.
//
//	corral "claude"
//	corral --work_dir ~/project "npm test"
//	CORRAL_ALLOWED_DOMAINS="api.openai.com pypi.org" corral "pip install requests"
//
// The trailing arguments after the command string are passed to it as
// additional tokens, preserved verbatim:
//
//	corral "grep -r" "it's a match" .
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/corralhq/corral/launch"
	"github.com/corralhq/corral/lib/config"
	"github.com/corralhq/corral/lib/docker"
	"github.com/corralhq/corral/lib/version"
)

// Environment variables corral reads. The credential is forwarded into
// the container by name only; its value never appears in any argument
// vector corral constructs.
const (
	envWorkDir        = "CORRAL_WORK_DIR"
	envAllowedDomains = "CORRAL_ALLOWED_DOMAINS"
	envCredential     = "CORRAL_API_KEY"
	envDebug          = "CORRAL_DEBUG"
)

// defaultAllowedDomains is the egress allowlist when
// CORRAL_ALLOWED_DOMAINS is unset.
const defaultAllowedDomains = "api.openai.com"

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// exitCode signals a specific process exit status without printing an
// extra error message; whoever returns it has already written its own
// output.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit code %d", int(e))
}

func (e exitCode) ExitCode() int {
	return int(e)
}

func run() error {
	var (
		workDirFlag string
		imageFlag   string
		configPath  string
		dryRun      bool
		listMode    bool
		stopMode    bool
		doctorMode  bool
	)

	flagSet := pflag.NewFlagSet("corral", pflag.ContinueOnError)
	// Stop flag parsing at the command string: everything after it
	// belongs to the command, flag-shaped or not.
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&workDirFlag, "work_dir", "", "directory to mount and fence (default: $CORRAL_WORK_DIR, then the current directory)")
	flagSet.StringVar(&imageFlag, "image", "", "container image (overrides the config file)")
	flagSet.StringVar(&configPath, "config", "", "config file path (default: $CORRAL_CONFIG)")
	flagSet.BoolVar(&dryRun, "dry-run", false, "print the container commands a launch would run, without running them")
	flagSet.BoolVar(&listMode, "list", false, "list running corral sessions and exit")
	flagSet.BoolVar(&stopMode, "stop", false, "remove the session for the working directory and exit")
	flagSet.BoolVar(&doctorMode, "doctor", false, "check that the environment can launch and exit")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other corral tooling.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("corral")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	logger := newCommandLogger()
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if imageFlag != "" {
		cfg.Image = imageFlag
	}

	workDir, err := resolveWorkDir(workDirFlag)
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	domains := resolveDomains()

	ctx, stopSignals := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stopSignals()

	client := docker.New(docker.Config{Binary: cfg.Docker})

	if listMode {
		sessions, err := launch.List(ctx, client)
		if err != nil {
			return err
		}
		launch.PrintSessions(os.Stdout, sessions)
		return nil
	}

	if doctorMode {
		doctor := launch.NewDoctor(cfg, client)
		doctor.CheckAll(ctx, workDir, domains, configSource(configPath))
		doctor.PrintResults(os.Stdout)
		if doctor.HasErrors() {
			return exitCode(1)
		}
		return nil
	}

	if stopMode {
		// An optional positional names the directory to stop; otherwise
		// the usual working-directory defaulting applies.
		target := workDir
		if args := flagSet.Args(); len(args) > 0 {
			target = args[0]
		}
		launcher := launch.New(launch.Options{Config: cfg, Docker: client, Logger: logger})
		stopped, err := launcher.Stop(ctx, target)
		if err != nil {
			return err
		}
		if stopped {
			fmt.Printf("stopped session for %s\n", target)
		} else {
			fmt.Printf("no session running for %s\n", target)
		}
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return exitCode(1)
	}

	request := launch.Request{
		WorkDir:    workDir,
		Command:    args[0],
		Args:       args[1:],
		RawDomains: domains,
		EnvNames:   forwardedEnvNames(cfg),
	}

	if dryRun {
		lines, err := launch.Plan(cfg, request)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	}

	launcher := launch.New(launch.Options{Config: cfg, Docker: client, Logger: logger})
	return launcher.Run(ctx, request)
}

// loadConfig loads the config file named by the flag, falling back to
// $CORRAL_CONFIG and then built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// configSource names the config file loadConfig used, empty when the
// built-in defaults are in effect.
func configSource(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(config.EnvConfigPath)
}

// resolveWorkDir picks the directory to fence: the flag, then
// $CORRAL_WORK_DIR, then the current directory.
func resolveWorkDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if fromEnv := os.Getenv(envWorkDir); fromEnv != "" {
		return fromEnv, nil
	}
	return os.Getwd()
}

// resolveDomains picks the raw egress allowlist.
func resolveDomains() string {
	if fromEnv := os.Getenv(envAllowedDomains); fromEnv != "" {
		return fromEnv
	}
	return defaultAllowedDomains
}

// forwardedEnvNames lists the environment variables forwarded into the
// container by name: the API credential plus any configured
// passthrough.
func forwardedEnvNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.EnvPassthrough)+1)
	names = append(names, envCredential)
	return append(names, cfg.EnvPassthrough...)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `corral — run a command in a fresh network-fenced container.

The working directory is mounted into the container at the same path
and outbound traffic is limited to the domains in
$CORRAL_ALLOWED_DOMAINS (default: %s). The container is
removed when the command exits, and corral exits with the command's
own status.

Usage:
  corral [flags] "<command>" [args...]

Examples:
  # Run an agent in the current directory
  corral "claude"

  # Fence a different directory
  corral --work_dir ~/project "npm test"

  # Extra tokens are passed to the command verbatim
  corral "grep -r" "it's a match" .

  # Show what a launch would do
  corral --dry-run "make release"

  # Housekeeping
  corral --list
  corral --stop
  corral --doctor

Flags:
`, defaultAllowedDomains)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
