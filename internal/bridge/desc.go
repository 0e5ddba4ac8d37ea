// Package bridge exposes the dashboard core to the UI shell over gRPC.
//
// Requests and responses are google.protobuf.Struct messages, so the
// service is declared by hand instead of generated from a .proto file.
// Every unary response is an envelope {success, data} or
// {success: false, error, code}; ExportAll streams progress messages and
// ends with one result message.
package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "activity.bridge.Bridge"

// Method names.
const (
	MethodDiscoverSource     = "DiscoverSource"
	MethodExportAll          = "ExportAll"
	MethodCancel             = "Cancel"
	MethodListAvailableDates = "ListAvailableDates"
	MethodAnalyzeSingleDate  = "AnalyzeSingleDate"
	MethodAnalyzeMultiDate   = "AnalyzeMultiDate"
	MethodGetConfig          = "GetConfig"
	MethodSetConfig          = "SetConfig"
	MethodInitializeConfig   = "InitializeConfig"
	MethodRefresh            = "Refresh"
	MethodSnapshotTable      = "SnapshotTable"
	MethodSnapshotTables     = "SnapshotTables"
)

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// BridgeServer is implemented by Server.
type BridgeServer interface {
	DiscoverSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListAvailableDates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AnalyzeSingleDate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AnalyzeMultiDate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	InitializeConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SnapshotTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SnapshotTables(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ExportAll(req *structpb.Struct, stream grpc.ServerStream) error
}

type unaryCall func(s BridgeServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BridgeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(BridgeServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

func exportAllHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BridgeServer).ExportAll(in, stream)
}

// ServiceDesc describes the bridge service for grpc.Server.RegisterService
// and for client-side streams.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodDiscoverSource, BridgeServer.DiscoverSource),
		unary(MethodCancel, BridgeServer.Cancel),
		unary(MethodListAvailableDates, BridgeServer.ListAvailableDates),
		unary(MethodAnalyzeSingleDate, BridgeServer.AnalyzeSingleDate),
		unary(MethodAnalyzeMultiDate, BridgeServer.AnalyzeMultiDate),
		unary(MethodGetConfig, BridgeServer.GetConfig),
		unary(MethodSetConfig, BridgeServer.SetConfig),
		unary(MethodInitializeConfig, BridgeServer.InitializeConfig),
		unary(MethodRefresh, BridgeServer.Refresh),
		unary(MethodSnapshotTable, BridgeServer.SnapshotTable),
		unary(MethodSnapshotTables, BridgeServer.SnapshotTables),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodExportAll,
			Handler:       exportAllHandler,
			ServerStreams: true,
		},
	},
}
