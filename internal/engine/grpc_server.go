package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/infra/auth"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	GatewayServiceName = "dlp.gateway.v1.Gateway"
	GatewayDetectRPC   = "/" + GatewayServiceName + "/Detect"
)

// GatewayServer - то, что регистрируется в GatewayServiceDesc.
type GatewayServer interface {
	Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// GatewayServiceDesc описан вручную: запрос {text} и ответ передаются как google.protobuf.Struct.
var GatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: GatewayServiceName,
	HandlerType: (*GatewayServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Detect",
		Handler:    detectHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dlp/gateway/v1/gateway.proto",
}

func detectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServer).Detect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GatewayDetectRPC}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GatewayServer).Detect(ctx, req.(*structpb.Struct))
	})
}

type GRPCGatewayServer struct {
	core   *DetectionCore
	logger *zap.Logger
}

func NewGRPCGatewayServer(core *DetectionCore, logger *zap.Logger) *GRPCGatewayServer {
	return &GRPCGatewayServer{core: core, logger: logger.Named("grpc-gateway")}
}

func (s *GRPCGatewayServer) Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// 1. Сведения о клиенте из peer и метаданных
	info := RequestInfo{Path: GatewayDetectRPC}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		info.ClientIP = p.Addr.String()
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("x-request-id"); len(v) > 0 {
			info.RequestID = v[0]
		}
		if v := md.Get("user-agent"); len(v) > 0 {
			info.UserAgent = v[0]
		}
	}
	if info.RequestID == "" {
		info.RequestID = uuid.New().String()
	}
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		info.Username = claims.Subject
	}

	// 2. Тот же пайплайн, что и для HTTP
	resp, err := s.core.Detect(WithRequestID(ctx, info.RequestID), req.GetFields()["text"].GetStringValue(), info)
	if err != nil {
		return nil, s.toStatus(err)
	}

	// 3. Ответ обратно в Protobuf Struct
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func (s *GRPCGatewayServer) toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrMaintenance), errors.Is(err, ErrDetectorUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error("grpc detect failed", zap.Error(err))
		return status.Error(codes.Internal, "pii detection failed")
	}
}
