package bridge

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"google.golang.org/protobuf/types/known/structpb"
)

// CodeInvalidRequest marks requests whose fields have the wrong shape.
const CodeInvalidRequest = "INVALID_REQUEST"

var errInvalidRequest = errors.New("invalid request")

// Message types on the ExportAll stream.
const (
	TypeProgress = "progress"
	TypeResult   = "result"
)

// Envelope is a decoded response.
type Envelope struct {
	Success bool
	Data    *structpb.Value
	Error   string
	Code    string
}

// RemoteError is a failure reported by the daemon. It unwraps to the
// matching sentinel from package common when the code is known.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return common.FromCode(e.Code) }

func errorCode(err error) string {
	if errors.Is(err, errInvalidRequest) {
		return CodeInvalidRequest
	}
	return common.Code(err)
}

// toValue converts v through its JSON form so struct tags decide the field
// names on the wire.
func toValue(v any) (*structpb.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

// fromValue decodes v into out through its JSON form.
func fromValue(v *structpb.Value, out any) error {
	if v == nil || out == nil {
		return nil
	}
	b, err := json.Marshal(v.AsInterface())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func success(data any) (*structpb.Struct, error) {
	v, err := toValue(data)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success": structpb.NewBoolValue(true),
		"data":    v,
	}}, nil
}

func failure(err error) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success": structpb.NewBoolValue(false),
		"error":   structpb.NewStringValue(err.Error()),
		"code":    structpb.NewStringValue(errorCode(err)),
	}}
}

// parseEnvelope reads an envelope from a unary response or stream result.
func parseEnvelope(s *structpb.Struct) Envelope {
	f := s.GetFields()
	return Envelope{
		Success: f["success"].GetBoolValue(),
		Data:    f["data"],
		Error:   f["error"].GetStringValue(),
		Code:    f["code"].GetStringValue(),
	}
}

// Err returns nil for a successful envelope and a *RemoteError otherwise.
func (e Envelope) Err() error {
	if e.Success {
		return nil
	}
	return &RemoteError{Code: e.Code, Message: e.Error}
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", nil
	}
	if _, isString := v.GetKind().(*structpb.Value_StringValue); !isString {
		return "", fmt.Errorf("%w: %s must be a string", errInvalidRequest, name)
	}
	return v.GetStringValue(), nil
}

func stringsField(req *structpb.Struct, name string) ([]string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %s must be a list of strings", errInvalidRequest, name)
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		if _, isString := item.GetKind().(*structpb.Value_StringValue); !isString {
			return nil, fmt.Errorf("%w: %s must be a list of strings", errInvalidRequest, name)
		}
		out = append(out, item.GetStringValue())
	}
	return out, nil
}

// decodeStruct decodes the whole request into out.
func decodeStruct(req *structpb.Struct, out any) error {
	b, err := json.Marshal(req.AsMap())
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}
