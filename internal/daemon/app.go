// Package daemon runs activityd: the dashboard service exposed over the
// gRPC bridge until the process receives SIGINT or SIGTERM.
package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/bridge"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/bridge/auth"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/config"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/dashboard"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/shared"
)

const secretBytes = 32

type App struct {
	config  *config.Config
	logger  logging.Logger
	closer  io.Closer
	service *dashboard.Service
	secret  []byte
	out     io.Writer
}

// NewApp builds the service from c. When no bridge secret is configured a
// random one is generated, so tokens do not outlive the process.
func NewApp(c *config.Config, out io.Writer) (*App, error) {
	logger, closer, err := logging.New(logging.Options{Dir: c.LogDir(), Level: c.LogLevel, Stderr: c.LogStderr})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	secret := c.BridgeSecret
	if secret == "" {
		secret, err = shared.MakeRandHexString(secretBytes)
		if err != nil {
			_ = closer.Close()
			return nil, fmt.Errorf("generate bridge secret: %w", err)
		}
	}

	return &App{
		config:  c,
		logger:  logger,
		closer:  closer,
		service: dashboard.New(c, logger, dashboard.Options{}),
		secret:  []byte(secret),
		out:     out,
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run prints a session token and serves the bridge until ctx ends or a
// termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	defer app.closer.Close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(ctx, cancelFunc)

	token, err := auth.GenerateToken("activityd", app.secret, app.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	fmt.Fprintf(app.out, "ACTIVITY_TOKEN=%s\n", token)

	app.logger.Info(ctx, "Starting app...", "mode", app.service.Mode(), "data_dir", app.config.DataDir)

	s := bridge.NewServer(app.config.BridgeAddr, app.service, app.secret, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "bridge server failed", "error", err)
		return err
	}

	// An export still running belongs to no caller any more.
	app.service.Cancel()
	return nil
}
