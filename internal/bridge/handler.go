package bridge

import (
	"context"
	"errors"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/settings"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// reply wraps the result of a core call into an envelope. Failures travel
// inside the envelope; only encoding problems become gRPC errors.
func (s *Server) reply(ctx context.Context, method string, data any, err error) (*structpb.Struct, error) {
	if err != nil {
		s.logFailure(ctx, method, err)
		return failure(err), nil
	}
	out, err := success(data)
	if err != nil {
		s.logger.Error(ctx, "encode response", "method", method, "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) logFailure(ctx context.Context, method string, err error) {
	code := errorCode(err)
	switch {
	case errors.Is(err, common.ErrOperationCancelled):
		s.logger.Info(ctx, "operation cancelled", "method", method)
	case code == "INTERNAL_ERROR":
		s.logger.Error(ctx, "bridge call failed", "method", method, "error", err)
	default:
		s.logger.Warn(ctx, "bridge call failed", "method", method, "code", code, "error", err)
	}
}

func (s *Server) DiscoverSource(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	info, err := s.core.DiscoverSource(ctx)
	return s.reply(ctx, MethodDiscoverSource, info, err)
}

func (s *Server) Cancel(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	cancelled := s.core.Cancel()
	return s.reply(ctx, MethodCancel, map[string]bool{"cancelled": cancelled}, nil)
}

// ListAvailableDates lists dates for the "identifier" field, or for the
// configured employee when the field is absent.
func (s *Server) ListAvailableDates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, ok := req.GetFields()["identifier"]; !ok {
		dates, err := s.core.ListAvailableDates(ctx)
		return s.reply(ctx, MethodListAvailableDates, dates, err)
	}

	id, err := stringField(req, "identifier")
	if err != nil {
		return s.reply(ctx, MethodListAvailableDates, nil, err)
	}
	dates, err := s.core.ListAvailableDatesFor(ctx, id)
	return s.reply(ctx, MethodListAvailableDates, dates, err)
}

func (s *Server) AnalyzeSingleDate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date, err := stringField(req, "date")
	if err != nil {
		return s.reply(ctx, MethodAnalyzeSingleDate, nil, err)
	}
	res, err := s.core.AnalyzeSingleDate(ctx, date)
	return s.reply(ctx, MethodAnalyzeSingleDate, res, err)
}

func (s *Server) AnalyzeMultiDate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	dates, err := stringsField(req, "dates")
	if err != nil {
		return s.reply(ctx, MethodAnalyzeMultiDate, nil, err)
	}
	res, err := s.core.AnalyzeMultiDate(ctx, dates)
	return s.reply(ctx, MethodAnalyzeMultiDate, res, err)
}

func (s *Server) GetConfig(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(ctx, MethodGetConfig, s.core.GetConfig(ctx), nil)
}

// SetConfig applies the fields present in the request; absent fields keep
// their stored values.
func (s *Server) SetConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var p settings.Patch
	if err := decodeStruct(req, &p); err != nil {
		return s.reply(ctx, MethodSetConfig, nil, err)
	}
	res, err := s.core.SetConfig(ctx, p)
	return s.reply(ctx, MethodSetConfig, res, err)
}

func (s *Server) InitializeConfig(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.core.InitializeConfig(ctx)
	return s.reply(ctx, MethodInitializeConfig, res, err)
}

func (s *Server) Refresh(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.core.Refresh(ctx, nil)
	return s.reply(ctx, MethodRefresh, res, err)
}

func (s *Server) SnapshotTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := stringField(req, "table")
	if err != nil {
		return s.reply(ctx, MethodSnapshotTable, nil, err)
	}
	rows, err := s.core.SnapshotTable(ctx, name)
	return s.reply(ctx, MethodSnapshotTable, rows, err)
}

func (s *Server) SnapshotTables(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	names, err := s.core.SnapshotTables(ctx)
	return s.reply(ctx, MethodSnapshotTables, names, err)
}

// ExportAll streams progress messages while the export runs and finishes
// with one result message carrying the envelope. A slow stream only sees
// fewer progress messages; it never holds up the export.
func (s *Server) ExportAll(_ *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()

	relay := newProgressRelay(func(p export.Progress) {
		msg, err := progressMessage(p)
		if err != nil {
			s.logger.Warn(ctx, "encode progress", "error", err)
			return
		}
		if err := stream.SendMsg(msg); err != nil {
			s.logger.Debug(ctx, "send progress", "error", err)
		}
	})

	res, err := s.core.ExportAll(ctx, relay.push)
	relay.close()

	final, rerr := s.reply(ctx, MethodExportAll, res, err)
	if rerr != nil {
		return rerr
	}
	final.Fields["type"] = structpb.NewStringValue(TypeResult)
	return stream.SendMsg(final)
}

func progressMessage(p export.Progress) (*structpb.Struct, error) {
	v, err := toValue(p)
	if err != nil {
		return nil, err
	}
	msg := v.GetStructValue()
	msg.Fields["type"] = structpb.NewStringValue(TypeProgress)
	return msg, nil
}
