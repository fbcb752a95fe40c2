package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blogdesk/auth"
	"blogdesk/config"
	"blogdesk/controllers"
	"blogdesk/database"
	grpcserver "blogdesk/grpc_server"
	"blogdesk/registry"
	"blogdesk/repositories"
	"blogdesk/services"
	"blogdesk/storage"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthWatchInterval = 15 * time.Second
)

func newServeCommand(a *app) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	cfg, log := a.cfg, a.log
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer database.Close(db)
	if migrate {
		if _, err := database.Migrate(ctx, db, log); err != nil {
			return err
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	revoked, closeRevoked, err := revocationStore(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeRevoked()
	authn, err := auth.NewAuthenticator(cfg.JwtSecret, cfg.JwtTTL, revoked)
	if err != nil {
		return err
	}

	health := pingDB(db)
	v := services.NewValidator()
	deps := controllers.Deps{
		Auth:       authn,
		Users:      services.NewUserService(repositories.NewUserRepository(db), v, log),
		Posts:      services.NewPostService(db, store, v, log),
		Categories: services.NewCategoryService(db, v, log),
		Tags:       services.NewTagService(db, v, log),
		Tasks:      services.NewTaskService(db, v, log),
		Comments:   services.NewCommentService(db, v, log),
		Health:     health,
		Log:        log,
	}
	if local, ok := store.(*storage.LocalStore); ok {
		deps.Files = local.FileServer()
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           controllers.NewContainer(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcSrv *grpcserver.Server
	deregister := func(context.Context) {}
	// Startup failures from here on share the signal shutdown path.
	serveErr := func() error {
		if cfg.GRPC.Enabled {
			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
			if err != nil {
				return fmt.Errorf("listen on grpc port %d: %w", cfg.GRPCPort, err)
			}
			grpcSrv = grpcserver.New(authn, health, log)
			go grpcSrv.WatchHealth(ctx, healthWatchInterval)
			go func() {
				if err := grpcSrv.Serve(lis); err != nil {
					errs <- fmt.Errorf("grpc server: %w", err)
				}
			}()
		}

		dereg, err := registerWithConsul(ctx, cfg, log)
		if err != nil {
			return err
		}
		deregister = dereg

		select {
		case <-ctx.Done():
			log.Info("Shutdown signal received")
			return nil
		case err := <-errs:
			return err
		}
	}()
	if serveErr != nil {
		log.Error("Server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	deregister(shutdownCtx)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.Stop(shutdownCtx)
	}
	log.Info("Stopped")
	return serveErr
}

func pingDB(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// revocationStore shares logouts across instances through Redis when it is
// enabled and keeps them in process memory otherwise.
func revocationStore(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (auth.RevocationStore, func(), error) {
	if !cfg.Enabled {
		log.Info("Token revocation kept in memory")
		return auth.NewMemoryRevocationStore(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	log.Info("Token revocation kept in Redis", zap.String("addr", cfg.Addr))
	return auth.NewRedisRevocationStore(client), func() { _ = client.Close() }, nil
}

// registerWithConsul announces the HTTP API, and the gRPC server when it
// runs, and returns the matching deregistration.
func registerWithConsul(ctx context.Context, cfg *config.Config, log *zap.Logger) (func(context.Context), error) {
	if !cfg.Consul.Enabled {
		return func(context.Context) {}, nil
	}
	reg, err := registry.NewConsulRegistry(cfg.Consul, log)
	if err != nil {
		return nil, err
	}

	host := cfg.Consul.AdvertiseHost
	httpName := cfg.ServiceName + "-http"
	httpID := registry.InstanceID(httpName, host, cfg.HTTPPort)
	instances := []registry.Instance{{
		ID:      httpID,
		Name:    httpName,
		Address: host,
		Port:    cfg.HTTPPort,
		Tags:    []string{"http", "api"},
		Meta:    map[string]string{"protocol": "http"},
		Check:   registry.HTTPCheck(httpID, host, cfg.HTTPPort, "/health", "10s", "2s"),
	}}
	if cfg.GRPC.Enabled {
		grpcName := cfg.ServiceName + "-grpc"
		grpcID := registry.InstanceID(grpcName, host, cfg.GRPCPort)
		target := fmt.Sprintf("%s:%d/%s", host, cfg.GRPCPort, grpcserver.ServiceName)
		instances = append(instances, registry.Instance{
			ID:      grpcID,
			Name:    grpcName,
			Address: host,
			Port:    cfg.GRPCPort,
			Tags:    []string{"grpc"},
			Meta:    map[string]string{"protocol": "grpc"},
			Check:   registry.GRPCCheck(grpcID, target, "10s", "2s", false),
		})
	}

	var registered []string
	deregister := func(ctx context.Context) {
		for _, id := range registered {
			if err := reg.Deregister(ctx, id); err != nil {
				log.Warn("Consul deregistration failed", zap.String("service_id", id), zap.Error(err))
			}
		}
	}
	for _, inst := range instances {
		if err := reg.Register(ctx, inst); err != nil {
			deregister(ctx)
			return nil, err
		}
		registered = append(registered, inst.ID)
	}
	return deregister, nil
}
