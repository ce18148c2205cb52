package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adfharrison1/mongochange/pkg/server"
)

func main() {
	// Command line flags
	var (
		configFile   = flag.String("config", "", "Path to TOML config file")
		port         = flag.String("port", "", "Server port (overrides config)")
		auditURI     = flag.String("audit-uri", "", "MongoDB URI for the audit store (overrides config)")
		auditDB      = flag.String("audit-db", "", "Database name for the audit store (overrides config)")
		allowPattern = flag.String("allow-pattern", "", "Regexp restricting target connection URIs (overrides config)")
		showHelp     = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nmongochange applies idempotent, audited, revertible schema changes to MongoDB.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -audit-uri mongodb://localhost:27017          # Start with defaults\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config mongochange.toml -port 9090           # Config file plus override\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -allow-pattern '^mongodb://internal\\.'        # Restrict targets\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSafety Note:\n")
		fmt.Fprintf(os.Stderr, "  Without -allow-pattern, any reachable MongoDB deployment can be targeted.\n")
		fmt.Fprintf(os.Stderr, "  Configure one in production.\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := server.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the config file
	if *port != "" {
		cfg.Port = *port
	}
	if *auditURI != "" {
		cfg.AuditURI = *auditURI
	}
	if *auditDB != "" {
		cfg.AuditDatabase = *auditDB
	}
	if *allowPattern != "" {
		cfg.AllowPattern = *allowPattern
		log.Printf("INFO: Target URIs restricted to pattern: %s", cfg.AllowPattern)
	} else if cfg.AllowPattern == "" {
		log.Printf("WARN: No allow pattern configured - any reachable deployment can be targeted")
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting mongochange server on :%s", cfg.Port)
		log.Printf("API endpoints available at http://localhost:%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	srv.Close(ctx)
	log.Println("Server exited")
}
