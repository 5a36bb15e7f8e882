package main

import (
	"fmt"
	"os"

	"codescribe/config"
	"codescribe/internal/adapters/primary/cli"
	"codescribe/pkg/validator"

	"github.com/joho/godotenv"
)

var version = "1.0.0"

func main() {
	// .env is optional
	_ = godotenv.Load()

	manager := config.NewManager("")
	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = manager.LoadFromFile(path)
	} else {
		err = manager.LoadFromEnv()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	validator.Init(manager.GetConfig().ValidatorConfig())

	rootCmd := cli.NewCLI(manager, version).GetRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}
