package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/dlnad/internal/config"
	"github.com/jmylchreest/dlnad/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dlnad server",
	Long: `Start the DLNA media server.

The server provides:
- SSDP discovery announcements on the local network
- UPnP ContentDirectory and ConnectionManager services
- HTTP media streaming with DLNA range and transfer-mode handling
- Admin REST API with OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8200, "Port to listen on")
	serveCmd.Flags().String("interface", "", "Network interface to advertise on")
	serveCmd.Flags().String("data-dir", "./data", "Data directory for the catalog database and art cache")
	serveCmd.Flags().StringSlice("media-root", nil, "Media directory to serve (repeatable)")

	// Bind flags to viper
	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("server.interface", serveCmd.Flags().Lookup("interface"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// media.roots is a list of structs, which flags cannot express through
	// viper binding, so an explicit flag replaces the configured list.
	if cmd.Flags().Changed("media-root") {
		paths, _ := cmd.Flags().GetStringSlice("media-root")
		roots := make([]config.MediaRoot, 0, len(paths))
		for _, p := range paths {
			roots = append(roots, config.MediaRoot{Path: p})
		}
		cfg.Media.Roots = roots
	}

	logger := slog.Default()
	if len(cfg.Media.Roots) == 0 {
		logger.Warn("no media roots configured, the catalog will stay empty")
	}

	return server.New(cfg, logger).Run(cmd.Context())
}
