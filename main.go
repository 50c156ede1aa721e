package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tenauth/tenauth/internal/bootstrap"
	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "server":
		runServer()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Multi-tenant OAuth 2.0 / OIDC authorization server")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the authorization server")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	log.Printf("Authorization server starting on %s", cfg.ServerAddr)
	log.Printf("Issuer: %s", cfg.BaseURL)
	log.Printf("Default user: admin@localhost (check logs for password if first run)")

	app.Run()
}
