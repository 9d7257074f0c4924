// Package main is the entry point for the rvkernel-mcp server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rvkernel/rvkernel-mcp/internal/config"
	"github.com/rvkernel/rvkernel-mcp/internal/device"
	"github.com/rvkernel/rvkernel-mcp/internal/httpapi"
	"github.com/rvkernel/rvkernel-mcp/internal/safety"
	"github.com/rvkernel/rvkernel-mcp/internal/tools"
)

func main() {
	cfg := loadConfig()
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		log.Printf("warning: ignoring environment override: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	tokenBefore := cfg.Server.AuthToken
	token, err := config.EnsureAuthToken(cfg)
	if err != nil {
		log.Printf("warning: could not generate auth token: %v; running without authentication", err)
	} else if tokenBefore == "" {
		log.Printf("generated auth token (set RVKERNEL_AUTH_TOKEN to persist): %s", token)
	}

	// Open audit log writer if enabled.
	var auditLogger *safety.AuditLogger
	if cfg.Audit.Enabled {
		f, err := safety.OpenAuditFile(cfg.Audit.LogPath, cfg.Audit.MaxSizeMB)
		if err != nil {
			log.Printf("warning: %v; audit logging disabled", err)
		} else {
			auditLogger = safety.NewAuditLogger(f)
			defer f.Close()
		}
	}

	// Live settings: the polling interval follows the settings file unless
	// pinned by config or environment.
	settings, err := config.NewSettingsWatcher(cfg.SettingsPath, 0)
	if err != nil {
		log.Fatalf("failed to watch settings: %v", err)
	}
	defer settings.Stop()
	if cfg.PollInterval > 0 {
		settings.SetOverride(cfg.PollInterval.Std())
	}
	settings.OnChange(func(s config.Settings) {
		log.Printf("settings reloaded: poll interval %v", s.PollInterval.Std())
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One root shell for the whole process.
	session, fs, err := device.OpenShell(ctx, cfg.Shell)
	if err != nil {
		log.Fatalf("failed to open %s shell: %v", cfg.Shell.Backend, err)
	}
	defer session.Close()

	filter := safety.NewFilter(cfg.Safety.Tunables.Allowlist, cfg.Safety.Tunables.Denylist)
	dev := device.New(fs.WithGuard(filter.AllowsPath), settings.PollInterval)
	confirm := safety.NewConfirmationTracker(device.DestructiveTools())

	// Build MCP server.
	mcpServer := server.NewMCPServer(
		"rvkernel-mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	registrations := dev.Registrations(confirm, auditLogger)
	tools.RegisterAll(mcpServer, registrations)
	log.Printf("registered %d tools: %s", len(registrations), strings.Join(tools.Names(registrations), ", "))

	dev.Start(ctx)
	defer dev.Stop()

	router := httpapi.NewRouter(httpapi.Options{
		MCP:       server.NewStreamableHTTPServer(mcpServer),
		Screens:   dev.Screens(),
		AuthToken: cfg.Server.AuthToken,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("rvkernel-mcp listening on %s (%s shell)", addr, cfg.Shell.Backend)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
	log.Println("server stopped")
}

// loadConfig attempts to read the config file from the path specified by
// RVKERNEL_CONFIG_PATH or config.DefaultConfigPath. If the file cannot be
// read, DefaultConfig is returned.
func loadConfig() *config.Config {
	path := os.Getenv("RVKERNEL_CONFIG_PATH")
	if path == "" {
		path = config.DefaultConfigPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Printf("could not load config from %q (%v), using defaults", path, err)
		return config.DefaultConfig()
	}

	log.Printf("loaded config from %q", path)
	return cfg
}
