// Package main is the entry point for the relayops backup tool.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"

	"github.com/relayx/relayops/internal/app"
	"github.com/relayx/relayops/internal/config"
	"github.com/relayx/relayops/internal/journal"
	"github.com/relayx/relayops/internal/site"
	"github.com/relayx/relayops/internal/stack"
	"github.com/relayx/relayops/internal/version"
)

func main() {
	if len(os.Args) > 2 {
		usage()
	}

	if len(os.Args) == 2 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("relayops %s\n", version.Version)
			fmt.Printf("Build Time: %s\n", version.BuildTime)
			fmt.Printf("Git Commit: %s\n", version.GitCommit)
			os.Exit(0)
		case "full-backup", "data-backup":
			a := setup()
			if err := a.RunMode(context.Background(), os.Args[1]); err != nil {
				log.Fatalf("%s failed: %v", os.Args[1], err)
			}
			os.Exit(0)
		default:
			usage()
		}
	}

	a := setup()
	if err := a.RunMenu(context.Background()); err != nil {
		log.Fatalf("menu failed: %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "unknown mode: %v\nusage: relayops [full-backup|data-backup|version]\n", os.Args[1:])
	os.Exit(1)
}

// setup loads configuration, checks prerequisites, resolves the working
// directory, and wires the application. Any failure here is fatal; nothing
// destructive has happened yet.
func setup() *app.App {
	configPath := os.Getenv("RELAYOPS_CONFIG")
	if configPath == "" {
		configPath = "/etc/relayops/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config from %s: %v", configPath, err)
	}

	if _, err := exec.LookPath("docker"); err != nil {
		log.Fatalf("missing prerequisite: docker not found on PATH")
	}
	docker := stack.NewDocker(cfg.Stack.HelperImage)
	if !docker.Available(context.Background()) {
		log.Fatalf("missing prerequisite: docker daemon is not reachable")
	}

	startDir, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to determine current directory: %v", err)
	}
	resolver := &site.Resolver{
		EnvVar:  config.EnvWorkdir,
		Marker:  cfg.Stack.ComposeFile,
		Default: cfg.Stack.DefaultDir,
	}
	workdir, err := resolver.Resolve(startDir)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("using stack directory %s", workdir)

	jdb, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		log.Printf("warning: operation journal unavailable at %s: %v", cfg.Journal.Path, err)
		jdb = nil
	}

	a, err := app.New(cfg, workdir, jdb, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	return a
}
