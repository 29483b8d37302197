// Package server wires the dlnad components together and supervises
// their lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jmylchreest/dlnad/internal/cds"
	"github.com/jmylchreest/dlnad/internal/config"
	"github.com/jmylchreest/dlnad/internal/database"
	"github.com/jmylchreest/dlnad/internal/database/migrations"
	"github.com/jmylchreest/dlnad/internal/httpapi"
	"github.com/jmylchreest/dlnad/internal/models"
	"github.com/jmylchreest/dlnad/internal/monitor"
	"github.com/jmylchreest/dlnad/internal/probe"
	"github.com/jmylchreest/dlnad/internal/repository"
	"github.com/jmylchreest/dlnad/internal/scanner"
	"github.com/jmylchreest/dlnad/internal/scheduler"
	"github.com/jmylchreest/dlnad/internal/soap"
	"github.com/jmylchreest/dlnad/internal/ssdp"
	"github.com/jmylchreest/dlnad/internal/upnp"
)

// Server is the top-level supervisor.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	updateID atomic.Uint32

	mu         sync.Mutex
	advertiser *ssdp.Advertiser
}

// New creates a Server for the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// SystemUpdateID returns the current ContentDirectory SystemUpdateID.
func (s *Server) SystemUpdateID() uint32 {
	return s.updateID.Load()
}

// Run starts every component and blocks until the context is cancelled
// or a fatal error occurs.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := os.MkdirAll(s.cfg.Storage.BaseDir, 0o755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	dbCfg := s.cfg.Database
	if dbCfg.Driver == "sqlite" {
		dbCfg.DSN = s.cfg.DatabasePath()
	}
	db, err := database.New(dbCfg, s.logger, nil)
	if err != nil {
		return fmt.Errorf("opening catalog database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, s.logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Init(runCtx); err != nil {
		return fmt.Errorf("initializing migrations: %w", err)
	}
	if err := migrator.Up(runCtx); err != nil {
		return fmt.Errorf("migrating catalog database: %w", err)
	}

	objects := repository.NewObjectRepository(db.DB)
	details := repository.NewDetailRepository(db.DB)
	captions := repository.NewCaptionRepository(db.DB)
	settings := repository.NewSettingRepository(db.DB)
	changes, err := repository.NewChangeCounter(db.DB)
	if err != nil {
		return fmt.Errorf("installing change counter: %w", err)
	}

	needScan, err := s.checkSchema(runCtx, db, settings)
	if err != nil {
		return err
	}

	prober := probe.NewProber(s.logger)
	sc := scanner.New(objects, details, captions, settings, prober, s.cfg.Media.Roots, s.logger)

	if (s.cfg.Scanner.ScanOnStart || needScan) && len(s.cfg.Media.Roots) > 0 {
		go func() {
			if err := sc.ScanAll(runCtx); err != nil && runCtx.Err() == nil {
				s.logger.Error("media scan failed", "error", err)
			}
		}()
	}

	dispatcher := soap.NewDispatcher(s.logger)
	service := cds.New(objects, captions, s.cfg.Server.Port, int(s.cfg.DLNA.MaxResponseSize),
		s.updateID.Load, s.logger)
	service.Register(dispatcher)

	udn := upnp.DeviceUDN(s.cfg.Device.UUID)

	httpServer := httpapi.NewServer(s.cfg.Server, s.logger)
	descriptors, err := httpapi.NewDescriptors(s.cfg.Device, udn)
	if err != nil {
		return fmt.Errorf("rendering device descriptor: %w", err)
	}
	descriptors.Register(httpServer.Router())

	roots := make([]string, 0, len(s.cfg.Media.Roots))
	for _, root := range s.cfg.Media.Roots {
		roots = append(roots, root.Path)
	}
	streamer := httpapi.NewStreamer(details, captions, roots,
		filepath.Dir(s.cfg.DatabasePath()), s.cfg.DLNA.StrictDLNA, s.logger)
	streamer.Register(httpServer.Router())

	admin := httpapi.NewAdmin(objects, details, s.updateID.Load, sc, s.logger)
	admin.Register(httpServer.API())

	httpServer.Router().Post(upnp.ControlPath, dispatcher.ServeHTTP)

	if s.cfg.SSDP.Enabled {
		if err := s.startSSDP(udn); err != nil {
			s.logger.Warn("ssdp disabled", "error", err)
		}
		defer s.stopSSDP()
	}

	if s.cfg.Scanner.Monitor && len(roots) > 0 {
		mon, err := monitor.New(sc, roots, s.logger)
		if err != nil {
			s.logger.Warn("filesystem monitor disabled", "error", err)
		} else {
			defer mon.Close()
		}
	}

	if schedule := s.cfg.Scanner.RescanSchedule; schedule != "" {
		sched, err := scheduler.New(schedule, sc.ScanAll, s.logger)
		if err != nil {
			return err
		}
		if err := sched.Start(runCtx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	go s.handleSignals(runCtx, cancel, sc, udn)
	go s.pollUpdates(runCtx, httpServer, changes)

	return httpServer.ListenAndServe(runCtx)
}

// checkSchema compares the stored catalog schema version with the
// current one. On mismatch the catalog content is dropped so the next
// scan rebuilds it. Returns whether a scan is required.
func (s *Server) checkSchema(ctx context.Context, db *database.DB, settings repository.SettingRepository) (bool, error) {
	stored, err := settings.Get(ctx, models.SettingSchemaVersion)
	if err != nil {
		return false, fmt.Errorf("reading schema version: %w", err)
	}
	if stored == models.SchemaVersion {
		return false, nil
	}
	if stored == "" {
		// Fresh or interrupted catalog; a scan fills it in.
		return true, nil
	}

	s.logger.Warn("catalog schema changed, rebuilding",
		"stored", stored, "current", models.SchemaVersion)
	if err := s.wipeCatalog(ctx, db); err != nil {
		return false, err
	}
	return true, nil
}

// wipeCatalog removes every scanned row while keeping the well-known
// root containers seeded by the migrations.
func (s *Server) wipeCatalog(ctx context.Context, db *database.DB) error {
	gdb := db.WithContext(ctx)
	for _, stmt := range []string{
		"DELETE FROM objects WHERE object_id NOT IN ('" + models.RootID + "', '" +
			models.AllVideoID + "', '" + models.BrowseDirID + "')",
		"DELETE FROM captions",
		"DELETE FROM details",
		"DELETE FROM settings WHERE key = '" + models.SettingSchemaVersion + "'",
	} {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("rebuilding catalog: %w", err)
		}
	}
	return nil
}

// startSSDP resolves the advertised address and starts the advertiser.
func (s *Server) startSSDP(udn string) error {
	ip, err := s.advertiseIP()
	if err != nil {
		return err
	}
	adv := ssdp.New(udn, ip, s.cfg.Server.Port,
		time.Duration(s.cfg.SSDP.NotifyInterval), s.logger)
	if err := adv.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	s.advertiser = adv
	s.mu.Unlock()
	return nil
}

// stopSSDP stops the running advertiser, if any.
func (s *Server) stopSSDP() {
	s.mu.Lock()
	adv := s.advertiser
	s.advertiser = nil
	s.mu.Unlock()
	if adv != nil {
		adv.Stop()
	}
}

// advertiseIP picks the address announced in SSDP LOCATION headers: the
// configured interface's address, the configured bind host, or the first
// non-loopback IPv4 address.
func (s *Server) advertiseIP() (string, error) {
	if name := s.cfg.Server.Interface; name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return "", fmt.Errorf("resolving interface %s: %w", name, err)
		}
		if ip := firstIPv4(iface); ip != "" {
			return ip, nil
		}
		return "", fmt.Errorf("interface %s has no IPv4 address", name)
	}
	if host := s.cfg.Server.Host; host != "" && host != "0.0.0.0" {
		return host, nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("listing interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if ip := firstIPv4(&iface); ip != "" {
			return ip, nil
		}
	}
	return "", fmt.Errorf("no usable interface address found")
}

func firstIPv4(iface *net.Interface) string {
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if v4 := ipnet.IP.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return ""
}

// handleSignals converts process signals into lifecycle actions:
// SIGTERM/SIGINT stop the server, SIGHUP re-resolves the advertised
// address and restarts SSDP, SIGUSR1 clears the art cache and triggers
// a rescan.
func (s *Server) handleSignals(
	ctx context.Context,
	cancel context.CancelFunc,
	sc *scanner.Scanner,
	udn string,
) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				s.logger.Info("shutting down", "signal", sig.String())
				cancel()
				return
			case syscall.SIGHUP:
				s.logger.Info("reloading interface addresses")
				s.stopSSDP()
				if s.cfg.SSDP.Enabled {
					if err := s.startSSDP(udn); err != nil {
						s.logger.Warn("ssdp restart failed", "error", err)
					}
				}
			case syscall.SIGUSR1:
				s.logger.Info("clearing caches and rescanning")
				if err := os.RemoveAll(s.cfg.Storage.ArtCachePath()); err != nil {
					s.logger.Warn("cannot clear art cache", "error", err)
				}
				go func() {
					if err := sc.ScanAll(ctx); err != nil && ctx.Err() == nil {
						s.logger.Error("rescan failed", "error", err)
					}
				}()
			}
		}
	}
}

// pollUpdates advances SystemUpdateID when the catalog changed since the
// last tick. Polling only runs while at least one client is connected,
// mirroring how renderers are told about changes only when they care.
func (s *Server) pollUpdates(ctx context.Context, httpServer *httpapi.Server, changes *repository.ChangeCounter) {
	interval := s.cfg.DLNA.UpdatePollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := changes.Total()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if httpServer.Connections() == 0 {
				continue
			}
			if total := changes.Total(); total != last {
				last = total
				s.updateID.Add(1)
				s.logger.Debug("catalog changed", "update_id", s.updateID.Load())
			}
		}
	}
}
