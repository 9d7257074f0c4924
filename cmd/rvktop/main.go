// Command rvktop is a terminal dashboard for the device's CPU, GPU, battery
// and kernel state.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rvkernel/rvkernel-mcp/internal/config"
	"github.com/rvkernel/rvkernel-mcp/internal/device"
	"github.com/rvkernel/rvkernel-mcp/internal/ui"
)

func main() {
	configPath := flag.String("config", envOr("RVKERNEL_CONFIG_PATH", config.DefaultConfigPath), "config file")
	themeName := flag.String("theme", "", "colour theme ("+strings.Join(ui.Themes(), ", ")+"); defaults to the settings file")
	interval := flag.Duration("interval", 0, "polling interval; defaults to the settings file")
	logPath := flag.String("log", "", "write log output to this file")
	flag.Parse()

	if *logPath != "" {
		f, err := tea.LogToFile(*logPath, "rvktop")
		if err != nil {
			fmt.Fprintf(os.Stderr, "rvktop: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		log.Printf("ignoring environment override: %v", err)
	}
	if *interval > 0 {
		cfg.PollInterval = config.Duration(*interval)
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	settings, err := config.NewSettingsWatcher(cfg.SettingsPath, 0)
	if err != nil {
		fatal(err)
	}
	defer settings.Stop()
	if cfg.PollInterval > 0 {
		settings.SetOverride(cfg.PollInterval.Std())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, fs, err := device.OpenShell(ctx, cfg.Shell)
	if err != nil {
		fatal(fmt.Errorf("open %s shell: %w", cfg.Shell.Backend, err))
	}
	defer session.Close()

	// Read-only: writes go through the MCP server.
	dev := device.New(fs, settings.PollInterval)
	dev.Start(ctx)
	defer dev.Stop()

	screens := dev.Screens()
	src := ui.Sources{
		System:  dev.SystemMonitor.Store(),
		SoC:     dev.SoCMonitor.Store(),
		Battery: dev.BatteryMonitor.Store(),
		Kernel:  dev.KernelMonitor.Store(),
		Refresh: func(ctx context.Context, screen string) error {
			s, ok := screens[screen]
			if !ok {
				return fmt.Errorf("unknown screen %q", screen)
			}
			return s.Refresh(ctx)
		},
	}

	theme := *themeName
	if theme == "" {
		theme = settings.Current().Theme
	}
	err = ui.Run(src, theme, func(p *tea.Program) {
		if *themeName != "" {
			return
		}
		settings.OnChange(func(s config.Settings) {
			p.Send(ui.ThemeMsg(s.Theme))
		})
	})
	if err != nil {
		fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "rvktop: %v\n", err)
	os.Exit(1)
}
