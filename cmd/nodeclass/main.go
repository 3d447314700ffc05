package main

import (
	"fmt"
	"os"

	"nodeclass/internal/config"
	"nodeclass/internal/logging"
	"nodeclass/internal/repository/sqlstore"
	"nodeclass/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "nodeclass",
	Short: "Node classification service and external node classifier",
	Long: `nodeclass stores nodes, node groups, classes and parameters and
resolves the effective classification of every node.

Examples:
  nodeclass serve
  nodeclass classify web01.example.com
  nodeclass import seed.yaml --strategy replace
  nodeclass check`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search $NODECLASS_CONFIG, ./nodeclass.yaml, user and system dirs)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(serveCmd, classifyCmd, importCmd, checkCmd, inventoryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds everything a command needs, built from the loaded config
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *sqlstore.Store
	bus   *service.EventBus
	svc   *service.Services
}

func (a *app) Close() error {
	return a.store.Close()
}

// bootstrap loads configuration, configures logging and opens the store.
// Log output goes to stderr so command output on stdout stays clean.
func bootstrap() (*app, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if configPath != "" {
		cfg, path, err = config.LoadFromPath(configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.WithField("path", path).Debug("loaded config")
	}

	store, err := sqlstore.Open(sqlstore.Options{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		LockTimeout: cfg.Store.LockTimeout.Duration(),
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	bus := service.NewEventBus()
	svc := service.New(service.Deps{
		Repo:     store,
		Features: cfg.Features,
		Events:   bus,
		Log:      log,
	})

	return &app{cfg: cfg, log: log, store: store, bus: bus, svc: svc}, nil
}
