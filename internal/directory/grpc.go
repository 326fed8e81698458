package directory

import (
	"context"
	"encoding/json"

	"modkit/internal/apperror"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// jsonCodecName selects the JSON wire codec registered below in place of
// protobuf binary encoding. The directory's three messages are small and
// diagnostic-friendly in JSON; a hand-built grpc.ServiceDesc plus a
// registered codec keeps the wire definition in one file with no
// generated-code build step.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Wire message types for the three DirectoryClient RPCs.
type registerRequest struct {
	ModuleName string            `json:"module_name"`
	InstanceID string            `json:"instance_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
type registerResponse struct{}

type heartbeatRequest struct {
	ModuleName string `json:"module_name"`
	InstanceID string `json:"instance_id"`
}
type heartbeatResponse struct{}

type deregisterRequest struct {
	ModuleName string `json:"module_name"`
	InstanceID string `json:"instance_id"`
}
type deregisterResponse struct{}

const (
	serviceName      = "modkit.directory.Directory"
	methodRegister   = "Register"
	methodHeartbeat  = "Heartbeat"
	methodDeregister = "Deregister"
)

func registerHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	var req registerRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		r := req.(*registerRequest)
		id, err := uuid.Parse(r.InstanceID)
		if err != nil {
			return nil, err
		}
		return &registerResponse{}, srv.(Client).Register(ctx, r.ModuleName, id, r.Metadata)
	}
	if interceptor == nil {
		return handler(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + methodRegister}
	return interceptor(ctx, &req, info, handler)
}

func heartbeatHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	var req heartbeatRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		r := req.(*heartbeatRequest)
		id, err := uuid.Parse(r.InstanceID)
		if err != nil {
			return nil, err
		}
		return &heartbeatResponse{}, srv.(Client).Heartbeat(ctx, r.ModuleName, id)
	}
	if interceptor == nil {
		return handler(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + methodHeartbeat}
	return interceptor(ctx, &req, info, handler)
}

func deregisterHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	var req deregisterRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		r := req.(*deregisterRequest)
		id, err := uuid.Parse(r.InstanceID)
		if err != nil {
			return nil, err
		}
		return &deregisterResponse{}, srv.(Client).Deregister(ctx, r.ModuleName, id)
	}
	if interceptor == nil {
		return handler(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + methodDeregister}
	return interceptor(ctx, &req, info, handler)
}

// serviceDesc is the hand-built equivalent of what protoc-gen-go-grpc
// would emit for a three-RPC unary service.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Client)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodRegister, Handler: registerHandler},
		{MethodName: methodHeartbeat, Handler: heartbeatHandler},
		{MethodName: methodDeregister, Handler: deregisterHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "modkit/directory.proto",
}

// RegisterServer exposes impl (typically a *Service) as the directory's
// gRPC endpoint. Called once by the bootstrap layer before the host's
// phase machine runs, so OoP children spawned after Start can dial
// MODKIT_DIRECTORY_ENDPOINT.
func RegisterServer(s *grpc.Server, impl Client) {
	s.RegisterService(&serviceDesc, impl)
}

// grpcClient adapts a grpc.ClientConnInterface to the Client interface,
// using the JSON codec registered above via CallContentSubtype.
type grpcClient struct {
	cc grpc.ClientConnInterface
}

// NewGRPCClient returns a Client bound to cc. This is the transport OoP
// children use to reach the parent's directory endpoint.
func NewGRPCClient(cc grpc.ClientConnInterface) Client {
	return &grpcClient{cc: cc}
}

func (c *grpcClient) Register(ctx context.Context, moduleName string, instanceID uuid.UUID, metadata map[string]string) error {
	req := &registerRequest{ModuleName: moduleName, InstanceID: instanceID.String(), Metadata: metadata}
	resp := &registerResponse{}
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+methodRegister, req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return apperror.Wrap(apperror.KindDirectoryRPCFailed, "register "+moduleName, err)
	}
	return nil
}

func (c *grpcClient) Heartbeat(ctx context.Context, moduleName string, instanceID uuid.UUID) error {
	req := &heartbeatRequest{ModuleName: moduleName, InstanceID: instanceID.String()}
	resp := &heartbeatResponse{}
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+methodHeartbeat, req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return apperror.Wrap(apperror.KindDirectoryRPCFailed, "heartbeat "+moduleName, err)
	}
	return nil
}

func (c *grpcClient) Deregister(ctx context.Context, moduleName string, instanceID uuid.UUID) error {
	req := &deregisterRequest{ModuleName: moduleName, InstanceID: instanceID.String()}
	resp := &deregisterResponse{}
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+methodDeregister, req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return apperror.Wrap(apperror.KindDirectoryRPCFailed, "deregister "+moduleName, err)
	}
	return nil
}
