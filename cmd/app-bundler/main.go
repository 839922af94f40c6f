package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/adapter/controlplane"
	"github.com/chiwei-platform/app-bundler/internal/adapter/docker"
	httpadapter "github.com/chiwei-platform/app-bundler/internal/adapter/http"
	"github.com/chiwei-platform/app-bundler/internal/adapter/kubectl"
	"github.com/chiwei-platform/app-bundler/internal/adapter/kubernetes"
	"github.com/chiwei-platform/app-bundler/internal/adapter/oci"
	"github.com/chiwei-platform/app-bundler/internal/adapter/repository"
	"github.com/chiwei-platform/app-bundler/internal/adapter/shell"
	"github.com/chiwei-platform/app-bundler/internal/adapter/storage"
	"github.com/chiwei-platform/app-bundler/internal/config"
	"github.com/chiwei-platform/app-bundler/internal/metrics"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/chiwei-platform/app-bundler/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)

	// 操作历史（可选，未配置数据库时只记指标）
	var opRepo port.OperationRepository
	if cfg.DatabaseURL != "" {
		db, err := repository.OpenDB(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to open db", "error", err)
			os.Exit(1)
		}
		opRepo = repository.NewOperationRepo(db)
	} else {
		slog.Warn("DATABASE_URL not set, operation history disabled")
	}

	// bundle 存储
	store, err := storage.NewStore(afero.NewOsFs(), cfg.SavePath)
	if err != nil {
		slog.Error("failed to init bundle storage", "path", cfg.SavePath, "error", err)
		os.Exit(1)
	}

	runner := shell.NewRunner()

	engine, err := newImageEngine(cfg, runner)
	if err != nil {
		slog.Error("failed to init image engine", "engine", cfg.ImageEngine, "error", err)
		os.Exit(1)
	}

	// 集群后端（可选，无集群时降级运行：导出可用，重新部署与压力监控不可用）
	applier, inspector := newClusterBackend(cfg, runner)

	target := port.RegistryCredentials{Registry: cfg.Registry.URL, Username: cfg.Registry.User, Password: cfg.Registry.Password}
	source := port.RegistryCredentials{Registry: cfg.SourceRegistry.URL, Username: cfg.SourceRegistry.User, Password: cfg.SourceRegistry.Password}

	// 服务层
	locks := service.NewBundleLocks()
	history := service.NewOperationService(opRepo, recorder)
	exportSvc := service.NewExportService(store, engine, source, cfg.PublicURL, locks, history)
	redeploySvc := service.NewRedeployService(store, service.NewImageTransfer(engine, target), applier, service.RedeployConfig{
		Placeholder:   cfg.DomainPlaceholder,
		ClusterDomain: cfg.ClusterDomain,
		ConsoleURL:    cfg.ConsoleURL,
	}, locks, history)
	imageSvc := service.NewImageService(store, engine, target, history)

	// HTTP 路由
	handler := httpadapter.NewRouter(
		httpadapter.NewBundleHandler(exportSvc, redeploySvc),
		httpadapter.NewImageHandler(imageSvc),
		httpadapter.NewOperationHandler(history),
		httpadapter.NewHealthHandler(inspector),
		httpadapter.RouterConfig{MaxUploadBytes: cfg.MaxUploadBytes, Metrics: recorder.Handler()},
	)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if inspector != nil {
		monitor := service.NewPressureMonitor(inspector, controlplane.NewClient(cfg.ConsoleURL, cfg.PauseTimeout), service.PressureMonitorConfig{
			Threshold:     cfg.ResourceThreshold,
			Interval:      cfg.ResourceCheckInterval,
			PriorityLabel: cfg.PriorityLabel,
			PriorityMin:   cfg.PriorityMin,
		}, recorder)
		g.Go(func() error { return monitor.Run(gctx) })
	} else {
		slog.Warn("no cluster backend, resource pressure monitor disabled")
	}

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newImageEngine(cfg *config.Config, runner port.CommandRunner) (port.ImageEngine, error) {
	switch cfg.ImageEngine {
	case config.ImageEngineDockerAPI:
		cli, err := docker.NewEnvClient()
		if err != nil {
			return nil, err
		}
		return docker.NewAPIEngine(cli), nil
	case config.ImageEngineOCI:
		return oci.NewEngine(cfg.InsecureRegistries), nil
	default:
		if cfg.ImageEngine != config.ImageEngineDocker {
			slog.Warn("unknown IMAGE_ENGINE, using docker CLI", "engine", cfg.ImageEngine)
		}
		return docker.NewCLIEngine(runner, cfg.DockerPath), nil
	}
}

func newClusterBackend(cfg *config.Config, runner port.CommandRunner) (port.ClusterApplier, port.ClusterInspector) {
	if cfg.ClusterBackend == config.ClusterBackendKubectl {
		c := kubectl.NewClient(runner, cfg.KubectlPath, cfg.KubeconfigPath)
		return c, c
	}

	cs, restCfg, err := kubernetes.NewClientset(cfg.KubeconfigPath)
	if err != nil {
		slog.Warn("k8s client unavailable, running without cluster integration", "error", err)
		return nil, nil
	}
	dyn, mapper, err := kubernetes.NewDynamic(restCfg)
	if err != nil {
		slog.Warn("k8s dynamic client unavailable, running without cluster integration", "error", err)
		return nil, nil
	}
	return kubernetes.NewApplier(cs, dyn, mapper), kubernetes.NewInspector(cs)
}
