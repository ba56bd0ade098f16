package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/lcalzada-xor/connd/internal/adapters/driver"
	"github.com/lcalzada-xor/connd/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/connd/internal/adapters/web/server"
	"github.com/lcalzada-xor/connd/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/connd/internal/config"
	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/services/audit"
	"github.com/lcalzada-xor/connd/internal/core/services/auth"
	"github.com/lcalzada-xor/connd/internal/core/services/dispatch"
	grpcserver "github.com/lcalzada-xor/connd/internal/core/services/grpc"
	"github.com/lcalzada-xor/connd/internal/core/services/persistence"
	"github.com/lcalzada-xor/connd/internal/core/services/profile"
	"github.com/lcalzada-xor/connd/internal/core/services/registry"
	"github.com/lcalzada-xor/connd/internal/core/services/security"
	"github.com/lcalzada-xor/connd/internal/telemetry"
)

const (
	sessionSweepInterval = 10 * time.Minute
	grpcStopTimeout      = 5 * time.Second
	mockAccessPoints     = 6
)

// Application holds the core components of the application and orchestrates
// their lifecycle.
type Application struct {
	Config *config.Config

	Store       *storage.SQLiteAdapter
	Persistence *persistence.Registry
	Profile     *profile.Manager
	Registry    *registry.Registry
	Security    *security.ModuleRegistry
	Manager     *registry.Manager
	Dispatcher  *dispatch.Dispatcher
	Simulator   *driver.Simulator

	AuthService  *auth.AuthService
	AuditService *audit.AuditService

	WSManager  *websocket.WSManager
	WebServer  *webserver.Server
	GrpcServer *grpc.Server
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	if err := app.initStorage(); err != nil {
		return err
	}

	// 2. Domain Services
	app.Profile = profile.NewManager(app.Config.ProfilePath)
	app.Registry = registry.NewRegistry(app.Persistence, app.Profile)

	app.Security = security.NewModuleRegistry()
	app.Security.Register(security.NewRoleModule(security.RolePriority))

	app.AuditService = audit.NewAuditService(app.Store)
	app.AuthService = auth.NewAuthService(app.Store)
	if err := app.ensureDefaultAdmin(); err != nil {
		log.Printf("Warning: could not ensure default admin: %v", err)
	}

	app.Manager = registry.NewManager(app.Registry, app.Security, app.AuditService)

	var opts []dispatch.Option
	if app.Config.ConnectTimeout > 0 {
		opts = append(opts, dispatch.WithConnectTimeout(app.Config.ConnectTimeout))
	}
	app.Dispatcher = dispatch.New(app.Registry, opts...)

	// 3. Driver
	if app.Config.MockMode {
		app.initSimulator()
	}

	// 4. Servers
	app.initServers()
	return nil
}

func (app *Application) initStorage() error {
	app.Persistence = persistence.NewRegistry()

	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create DB directory: %w", err)
	}

	var opts []storage.Option
	if app.Config.SecretKey != "" {
		opts = append(opts, storage.WithSecretKey(app.Config.SecretKey))
	}
	store, err := storage.NewSQLiteAdapter(app.Config.DBPath, opts...)
	if err != nil {
		return fmt.Errorf("failed to init system storage: %w", err)
	}
	app.Store = store
	app.Persistence.Register(store)
	return nil
}

func (app *Application) ensureDefaultAdmin() error {
	if app.Config.AdminPassword == "" {
		if _, err := app.Store.GetByUsername(context.Background(), "admin"); errors.Is(err, domain.ErrNotFound) {
			log.Println("No admin account and no admin password configured; boundary writes stay denied")
		}
		return nil
	}
	return app.AuthService.EnsureUser(context.Background(), "admin", app.Config.AdminPassword, domain.RoleAdmin)
}

func (app *Application) initSimulator() {
	cfg := driver.DefaultConfig()
	app.Simulator = driver.NewSimulator(app.Dispatcher, cfg)

	app.Simulator.AddDevice(driver.NewDevice("00:16:3e:00:00:01", domain.DeviceTypeEthernet))
	for _, ap := range app.Simulator.Generator().GenerateAPs(mockAccessPoints) {
		app.Simulator.AddAccessPoint(ap)
	}
	log.Println("Mock Mode Active: simulated ethernet device and access points")
}

func (app *Application) initServers() {
	app.WSManager = websocket.NewWSManager()
	app.Registry.AddObserver(app.WSManager)
	app.Profile.AddObserver(app.WSManager)

	app.WebServer = webserver.NewServer(app.Config.Addr, app.Manager, app.AuthService, app.AuditService, app.WSManager)
	app.GrpcServer = grpcserver.NewGrpcServer(app.Manager, app.Registry, app.AuthService)
}

// Run starts the application components and manages their execution lifecycle.
// Storage is closed only after every component has returned.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting connd components...", "profile", app.Profile.ActivePath())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var workers sync.WaitGroup
	errChan := make(chan error, 2)

	workers.Add(1)
	go func() {
		defer workers.Done()
		app.Dispatcher.Run(ctx)
	}()

	workers.Add(1)
	go func() {
		defer workers.Done()
		app.sweepSessions(ctx)
	}()

	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := app.serveGRPC(ctx); err != nil {
			errChan <- err
		}
	}()

	if app.Simulator != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			app.Simulator.Run(ctx)
		}()
	}

	slog.Info("connd ready. Press Ctrl+C to terminate.")

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Termination signal received")
	case runErr = <-errChan:
	}

	cancel()
	workers.Wait()
	return errors.Join(runErr, app.cleanup())
}

func (app *Application) serveGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", app.Config.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen error: %w", err)
	}
	log.Printf("gRPC Server listening on %s", lis.Addr())

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		stopGRPC(app.GrpcServer, grpcStopTimeout)
	}()

	if err := app.GrpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc server error: %w", err)
	}
	<-stopped
	return nil
}

// stopGRPC waits up to timeout for in-flight calls, then cancels what is
// left, such as open watch streams.
func stopGRPC(srv *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("gRPC graceful stop timed out after %s, forcing", timeout)
		srv.Stop()
		<-done
	}
}

func (app *Application) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.AuthService.PurgeExpired(); n > 0 {
				slog.Debug("expired sessions purged", "count", n)
			}
		}
	}
}

func (app *Application) cleanup() error {
	slog.Info("Cleaning up resources...")

	app.Registry.Close(context.Background())
	if app.Store != nil {
		return app.Store.Close()
	}
	return nil
}
