package bridge

import (
	"context"
	"errors"
	"io"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/analysis"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/dashboard"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/settings"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a running bridge server.
type Client struct {
	conn        *grpc.ClientConn
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (c *Client) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withAccessToken(ctx, c.accessToken), method, req, reply, cc, opts...)
}

func (c *Client) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(withAccessToken(ctx, c.accessToken), desc, cc, method, opts...)
}

// NewClient connects to target without TLS; the bridge only listens on
// loopback. Extra dial options are appended, which tests use to dial an
// in-memory listener.
func NewClient(target, accessToken string, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{accessToken: accessToken}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithStreamInterceptor(c.streamAccessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Call invokes a unary method with req and decodes the envelope data into
// out. A failed envelope is returned as *RemoteError.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, out any) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, resp); err != nil {
		return err
	}

	env := parseEnvelope(resp)
	if err := env.Err(); err != nil {
		return err
	}
	return fromValue(env.Data, out)
}

func (c *Client) DiscoverSource(ctx context.Context) (dashboard.SourceInfo, error) {
	var out dashboard.SourceInfo
	err := c.Call(ctx, MethodDiscoverSource, nil, &out)
	return out, err
}

// ExportAll runs an export on the server, passing progress reports to
// onProgress as they arrive.
func (c *Client) ExportAll(ctx context.Context, onProgress func(export.Progress)) (export.Result, error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod(MethodExportAll))
	if err != nil {
		return export.Result{}, err
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return export.Result{}, err
	}
	if err := stream.CloseSend(); err != nil {
		return export.Result{}, err
	}

	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if errors.Is(err, io.EOF) {
			return export.Result{}, errors.New("export stream ended without a result")
		}
		if err != nil {
			return export.Result{}, err
		}

		switch msg.GetFields()["type"].GetStringValue() {
		case TypeProgress:
			if onProgress == nil {
				continue
			}
			var p export.Progress
			if err := fromValue(structpb.NewStructValue(msg), &p); err != nil {
				return export.Result{}, err
			}
			onProgress(p)
		case TypeResult:
			env := parseEnvelope(msg)
			if err := env.Err(); err != nil {
				return export.Result{}, err
			}
			var res export.Result
			err := fromValue(env.Data, &res)
			return res, err
		}
	}
}

// Cancel asks the server to stop its export and reports whether one was
// running.
func (c *Client) Cancel(ctx context.Context) (bool, error) {
	var out struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.Call(ctx, MethodCancel, nil, &out)
	return out.Cancelled, err
}

// ListAvailableDates lists dates for identifier, or for the server's
// configured employee when identifier is nil.
func (c *Client) ListAvailableDates(ctx context.Context, identifier *string) ([]string, error) {
	req := map[string]any{}
	if identifier != nil {
		req["identifier"] = *identifier
	}
	out := []string{}
	err := c.Call(ctx, MethodListAvailableDates, req, &out)
	return out, err
}

func (c *Client) AnalyzeSingleDate(ctx context.Context, date string) (analysis.DailyAnalysis, error) {
	var out analysis.DailyAnalysis
	err := c.Call(ctx, MethodAnalyzeSingleDate, map[string]any{"date": date}, &out)
	return out, err
}

func (c *Client) AnalyzeMultiDate(ctx context.Context, dates []string) (analysis.MultiDayAnalysis, error) {
	list := make([]any, len(dates))
	for i, d := range dates {
		list[i] = d
	}
	var out analysis.MultiDayAnalysis
	err := c.Call(ctx, MethodAnalyzeMultiDate, map[string]any{"dates": list}, &out)
	return out, err
}

func (c *Client) GetConfig(ctx context.Context) (settings.Settings, error) {
	var out settings.Settings
	err := c.Call(ctx, MethodGetConfig, nil, &out)
	return out, err
}

func (c *Client) SetConfig(ctx context.Context, p settings.Patch) (settings.Settings, error) {
	req := map[string]any{}
	if p.DecryptionKey != nil {
		req["decryptionKey"] = *p.DecryptionKey
	}
	if p.EmployeeID != nil {
		req["employeeId"] = *p.EmployeeID
	}
	if p.DBPath != nil {
		req["dbPath"] = *p.DBPath
	}
	var out settings.Settings
	err := c.Call(ctx, MethodSetConfig, req, &out)
	return out, err
}

func (c *Client) InitializeConfig(ctx context.Context) (settings.Settings, error) {
	var out settings.Settings
	err := c.Call(ctx, MethodInitializeConfig, nil, &out)
	return out, err
}

func (c *Client) Refresh(ctx context.Context) (dashboard.RefreshResult, error) {
	var out dashboard.RefreshResult
	err := c.Call(ctx, MethodRefresh, nil, &out)
	return out, err
}

func (c *Client) SnapshotTable(ctx context.Context, table string) ([]map[string]any, error) {
	out := []map[string]any{}
	err := c.Call(ctx, MethodSnapshotTable, map[string]any{"table": table}, &out)
	return out, err
}

func (c *Client) SnapshotTables(ctx context.Context) ([]string, error) {
	out := []string{}
	err := c.Call(ctx, MethodSnapshotTables, nil, &out)
	return out, err
}
