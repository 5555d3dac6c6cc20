package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lemonberrylabs/loxwalk/pkg/api"
	grpcapi "github.com/lemonberrylabs/loxwalk/pkg/api/grpc"
	"github.com/lemonberrylabs/loxwalk/pkg/config"
	"github.com/lemonberrylabs/loxwalk/pkg/logging"
	"github.com/lemonberrylabs/loxwalk/pkg/service"
	"github.com/lemonberrylabs/loxwalk/pkg/store"
	"github.com/lemonberrylabs/loxwalk/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Lox playground HTTP and gRPC servers",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default 8787, env LOX_PORT)")
	serveCmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env LOX_GRPC_PORT)")
	serveCmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env LOX_HOST)")
	serveCmd.Flags().String("scripts-dir", "", "Directory of .lox files to load as scripts (env LOX_SCRIPTS_DIR)")
	serveCmd.Flags().Duration("run-timeout", 0, "Wall-clock limit per run (default 5s, env LOX_RUN_TIMEOUT)")
	serveCmd.Flags().String("data-file", "", "bbolt file that persists scripts and runs (env LOX_DATA_FILE)")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg.Server)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	st, err := openStore(cfg.Server.DataFile)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	svc := service.New(st, service.Limits{
		Timeout:        cfg.Server.RunTimeout,
		MaxSourceBytes: cfg.Server.MaxSourceBytes,
		MaxSteps:       cfg.Server.MaxSteps,
		MaxCallDepth:   cfg.MaxCallDepth,
	}, logger)
	server := api.New(svc, logger)
	web.New(svc.Store()).Register(server.App())

	if dir := cfg.Server.ScriptsDir; dir != "" {
		if _, err := server.LoadDir(dir); err != nil {
			logger.Warn("failed to load scripts directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	grpcServer := grpcapi.New(svc, logger)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr()))
		if err := grpcServer.Serve(cfg.Server.GRPCAddr()); err != nil {
			logger.Fatal("gRPC server error", zap.Error(err))
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	logger.Info("lox playground listening",
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("run_timeout", cfg.Server.RunTimeout),
		zap.Int("max_steps", cfg.Server.MaxSteps),
		zap.String("data_file", cfg.Server.DataFile),
	)
	return server.Listen(cfg.Server.Addr())
}

func applyServeFlags(cmd *cobra.Command, s *config.ServerConfig) {
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		s.Port = v
	}
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		s.GRPCPort = v
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		s.Host = v
	}
	if v, _ := cmd.Flags().GetString("scripts-dir"); v != "" {
		s.ScriptsDir = v
	}
	if v, _ := cmd.Flags().GetDuration("run-timeout"); v != 0 {
		s.RunTimeout = v
	}
	if v, _ := cmd.Flags().GetString("data-file"); v != "" {
		s.DataFile = v
	}
}

// openStore keeps everything in memory unless a data file is configured.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return store.New(), nil
	}
	return store.Open(path)
}
