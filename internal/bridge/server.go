package bridge

import (
	"context"
	"net"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/analysis"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/dashboard"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/settings"
	"google.golang.org/grpc"
)

// Core is the part of dashboard.Service the bridge serves.
type Core interface {
	DiscoverSource(ctx context.Context) (dashboard.SourceInfo, error)
	ExportAll(ctx context.Context, onProgress func(export.Progress)) (export.Result, error)
	Cancel() bool
	ListAvailableDates(ctx context.Context) ([]string, error)
	ListAvailableDatesFor(ctx context.Context, identifier string) ([]string, error)
	AnalyzeSingleDate(ctx context.Context, date string) (analysis.DailyAnalysis, error)
	AnalyzeMultiDate(ctx context.Context, dates []string) (analysis.MultiDayAnalysis, error)
	GetConfig(ctx context.Context) settings.Settings
	SetConfig(ctx context.Context, p settings.Patch) (settings.Settings, error)
	InitializeConfig(ctx context.Context) (settings.Settings, error)
	Refresh(ctx context.Context, onProgress func(export.Progress)) (dashboard.RefreshResult, error)
	SnapshotTable(ctx context.Context, table string) ([]map[string]any, error)
	SnapshotTables(ctx context.Context) ([]string, error)
}

var _ Core = (*dashboard.Service)(nil)

type Server struct {
	address   string
	core      Core
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(address string, core Core, secretKey []byte, l logging.Logger) *Server {
	return &Server{
		address:   address,
		core:      core,
		logger:    l.With("module", "bridge_server"),
		jwtSecret: secretKey,
	}
}

// Run listens on the configured address and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves the bridge on lis until ctx ends, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	srv.RegisterService(&ServiceDesc, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping bridge server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting bridge server", "address", lis.Addr().String())

	return srv.Serve(lis)
}
