package service

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/kardianos/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/purchase-export/config"
	"github.com/purchase-export/export"
	"github.com/purchase-export/extract"
	"github.com/purchase-export/logger"
	"github.com/purchase-export/scrapers"
	"github.com/purchase-export/server"
	"github.com/purchase-export/updater"
)

// Program implements service.Interface. It hosts the exporter behind the
// gRPC server and the WebSocket bridge until stopped.
type Program struct {
	Config  *config.Config
	Logger  *zap.SugaredLogger
	Version string
	// ConfigFile is passed on to the installed service.
	ConfigFile string

	// NewDocument overrides the browser; used by tests.
	NewDocument func() LiveDocument
	// Listen overrides the gRPC listener; used by tests.
	Listen func() (net.Listener, error)

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	extractor *BrowserExtractor
	updater   *updater.Updater
	logClose  func()
	ready     chan struct{}
	runErr    error
}

// Start is called when the service starts. It must not block.
func (p *Program) Start(s service.Service) error {
	if !service.Interactive() {
		if err := p.setupFileLogger(); err != nil {
			if svcLogger, _ := s.Logger(nil); svcLogger != nil {
				svcLogger.Error("Failed to setup file logger: " + err.Error())
			}
		}
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop().Sugar()
	}
	p.Logger.Infof("Service starting (version %s)", p.Version)

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.ready = make(chan struct{})
	p.wg.Add(1)
	go p.run()
	return nil
}

// Stop is called when the service stops.
func (p *Program) Stop(s service.Service) error {
	p.Logger.Info("Service stopping...")
	p.cancel()
	p.wg.Wait()
	if p.extractor != nil {
		p.extractor.Close()
	}
	p.Logger.Info("Service stopped")
	if p.logClose != nil {
		p.logClose()
	}
	return nil
}

// setupFileLogger sends the log to logs/purchase-export.log next to the
// executable, since a service has no console.
func (p *Program) setupFileLogger() error {
	file, err := logger.ServiceLogFile(ServiceName)
	if err != nil {
		return err
	}
	log, closeFn, err := logger.New(logger.Options{
		JSON:  p.Config.Log.JSON,
		Level: p.Config.Log.Level,
		File:  file,
	})
	if err != nil {
		return err
	}
	p.Logger = log
	p.logClose = closeFn
	return nil
}

// run is the main service loop.
func (p *Program) run() {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.Logger.Errorf("run() panic recovered: %v", r)
		}
	}()

	if err := p.serve(); err != nil {
		p.runErr = err
		p.Logger.Errorf("Service stopped with error: %v", err)
	}
}

func (p *Program) serve() error {
	cfg := p.Config
	schema, err := cfg.Schema()
	if err != nil {
		return err
	}

	downloadPath := cfg.DownloadPath
	if !filepath.IsAbs(downloadPath) && !service.Interactive() {
		exePath, _ := os.Executable()
		downloadPath = filepath.Join(filepath.Dir(exePath), downloadPath)
	}
	store := export.NewStore(downloadPath, cfg.FilePrefix, p.Logger)

	var bridge *server.WSBridge
	newDoc := p.NewDocument
	if newDoc == nil {
		newDoc = func() LiveDocument { return scrapers.NewBrowser(cfg.Browser(), p.Logger) }
	}
	p.extractor = NewBrowserExtractor(newDoc, schema, extract.Options{
		Loader:     cfg.ExtractLoader(),
		Pacing:     cfg.ExtractPacing(),
		Logger:     p.Logger,
		MaxRequest: cfg.MaxAllowed,
		Progress:   func(pr extract.Progress) { bridge.Publish(pr) },
	})
	runner := export.NewRunner(p.extractor, store, p.Logger)

	bridge = server.NewWSBridge(server.WSConfig{
		Exporter:     runner,
		Logger:       p.Logger.Named("ws"),
		Version:      p.Version,
		DefaultCount: cfg.MaxPurchases,
	})
	gs := server.NewGRPCServer(&server.GRPCServer{
		Exporter:     runner,
		Logger:       p.Logger.Named("grpc"),
		Version:      p.Version,
		DefaultCount: cfg.MaxPurchases,
	})

	listen := p.Listen
	if listen == nil {
		listen = func() (net.Listener, error) { return net.Listen("tcp", ":"+cfg.GRPCPort) }
	}
	lis, err := listen()
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %s", cfg.GRPCPort)
	}

	p.Logger.Infof("Download path: %s", downloadPath)
	p.Logger.Infof("Headless mode: %v", cfg.Headless)

	if cfg.AutoUpdate {
		p.startAutoUpdate()
	}

	g, ctx := errgroup.WithContext(p.ctx)
	g.Go(func() error { return server.RunGRPCServer(ctx, gs, lis, p.Logger) })
	if cfg.WSAddr != "" {
		g.Go(func() error { return server.RunWSServer(ctx, cfg.WSAddr, bridge, p.Logger) })
	}
	close(p.ready)
	return g.Wait()
}

// startAutoUpdate checks for a release at startup and then periodically.
// An applied update restarts the service, or the process when running in
// the foreground.
func (p *Program) startAutoUpdate() {
	if updater.IsDevBuild(p.Version) {
		p.Logger.Info("Auto-update disabled for development builds")
		return
	}
	cfg := updater.DefaultConfig(p.Version)
	if p.Config.UpdateInterval > 0 {
		cfg.CheckInterval = p.Config.UpdateInterval
	}
	p.updater = updater.New(cfg, p.Logger)

	apply := func() {
		defer func() {
			if r := recover(); r != nil {
				p.Logger.Errorf("Auto-update panic recovered: %v", r)
			}
		}()
		updated, err := p.updater.CheckAndUpdate(p.ctx)
		if err != nil {
			p.Logger.Warnf("Update check failed: %v", err)
			return
		}
		if !updated {
			return
		}
		p.Logger.Info("Update applied, restarting...")
		if service.Interactive() {
			err = updater.RestartSelf(p.Logger)
		} else {
			err = updater.RestartService(ServiceName, p.Logger)
		}
		if err != nil {
			p.Logger.Errorf("Failed to restart: %v", err)
		}
	}

	go apply()
	p.updater.StartPeriodicCheck(p.ctx, apply)
}
