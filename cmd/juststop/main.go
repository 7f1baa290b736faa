// cmd/juststop/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/AlverezYari/juststop/internal/config"
	"github.com/AlverezYari/juststop/internal/logging"
	"github.com/AlverezYari/juststop/internal/stream"
	"github.com/AlverezYari/juststop/internal/tui"
	"github.com/AlverezYari/juststop/pkg/camera"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	configPath = flag.String("config", "", "config file (default $XDG_CONFIG_HOME/juststop/config.json)")
	backend    = flag.String("backend", "", "camera backend, overrides the config file")
	mirror     = flag.Bool("mirror", false, "mirror the picture horizontally")
	serve      = flag.Bool("serve", false, "start the web preview on launch")
	list       = flag.Bool("list", false, "list cameras and exit")
	save       = flag.Bool("save", false, "write the config, flags included, to the config file and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: juststop [flags]\n\nBackends: %v\n\n", camera.Available())
		flag.PrintDefaults()
	}
	flag.Parse()

	// Determine the config path
	path := *configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			fmt.Printf("Error getting config path: %v\n", err)
			os.Exit(1)
		}
	}

	// Load existing config or fall back to the defaults
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *mirror {
		cfg.Capture.Mirror = true
	}
	if *serve {
		cfg.Server.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error in config: %v\n", err)
		os.Exit(1)
	}
	if *save {
		if err := config.Save(path, cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved config to %s\n", path)
		return
	}

	configDir, err := config.Dir()
	if err != nil {
		fmt.Printf("Error getting config directory: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Path, cfg.Log.Level, configDir)
	if err != nil {
		fmt.Printf("Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Infof("starting with config %s, backend %s", path, cfg.Backend)

	// A backend that fails to start is reported inside the UI.
	cams, err := camera.New(cfg.Backend, camera.Options{Logger: logger, Synthetic: cfg.Synthetic})
	if err != nil {
		logger.Errorf("camera backend: %v", err)
		cams = nil
	}

	if *list {
		os.Exit(listCameras(cams))
	}

	mode, err := stream.ParseMode(cfg.Capture.Mode)
	if err != nil {
		fmt.Printf("Error in config: %v\n", err)
		os.Exit(1)
	}
	manager := stream.New(cams, stream.Config{
		Mode:         mode,
		Request:      cfg.Capture.FormatRequest(),
		Frame:        cfg.Capture.FrameOptions(),
		TickInterval: cfg.Capture.TickInterval(),
		OpenTimeout:  cfg.Capture.OpenTimeout(),
	}, logger)
	defer manager.Close()

	p := tea.NewProgram(
		tui.New(cfg, manager, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		logger.Errorf("running program: %v", err)
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

func listCameras(b camera.Backend) int {
	devices, err := camera.ListDevices(b)
	if err != nil {
		fmt.Printf("Error listing cameras: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("No cameras found")
		return 0
	}
	for _, d := range devices {
		fmt.Printf("%d: %s (%s, %s)\n", d.Index, d.Name, d.DeviceType, d.Backend)
	}
	return 0
}
