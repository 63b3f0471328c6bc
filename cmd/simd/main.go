// Package main is the entry point for the tradesim daemon.
package main

import (
	"flag"
	"fmt"
	"os"

	"tradesim/internal/app"
	"tradesim/internal/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file with TRADESIM_* overrides")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := app.New(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tradesim: %v\n", err)
		os.Exit(1)
	}
}
