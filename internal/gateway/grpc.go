package gateway

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

// SendMeasurementsRequest is the gRPC ingest request, per the
// TelemetryGateway.SendMeasurements wire contract.
type SendMeasurementsRequest struct {
	Version        string                       `json:"version"`
	DeviceID       string                       `json:"device_id"`
	DeviceType     string                       `json:"device_type,omitempty"`
	Timestamp      string                       `json:"timestamp"`
	Measurements   []pipelineevents.Measurement `json:"measurements"`
	DeviceMetadata map[string]string            `json:"device_metadata,omitempty"`
}

// sendMeasurementsStatus is the application-level outcome of a
// SendMeasurements call. Unlike a transport-level gRPC status, this is
// carried as a field on the response itself: the RPC succeeds (no gRPC
// error) for validation_error and device_not_found just as it does for
// success, since these are expected, recoverable outcomes the caller is
// meant to branch on.
type sendMeasurementsStatus int32

const (
	statusSuccess         sendMeasurementsStatus = 1
	statusValidationError sendMeasurementsStatus = 2
	statusDeviceNotFound  sendMeasurementsStatus = 3
	statusInternalError   sendMeasurementsStatus = 4
)

// SendMeasurementsResponse reports the outcome of a SendMeasurements call.
type SendMeasurementsResponse struct {
	Version   string                 `json:"version"`
	Status    sendMeasurementsStatus `json:"status"`
	Message   string                 `json:"message,omitempty"`
	EventID   string                 `json:"event_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

const serviceName = "gateway.v1.TelemetryGateway"

const methodSendMeasurements = "/" + serviceName + "/SendMeasurements"

// GRPCServer implements the TelemetryGateway gRPC service by delegating to
// the same Ingestor the HTTP handler uses.
type GRPCServer struct {
	ingest *Ingestor
}

// NewGRPCServer returns a GRPCServer backed by ingest.
func NewGRPCServer(ingest *Ingestor) *GRPCServer {
	return &GRPCServer{ingest: ingest}
}

// SendMeasurements validates and publishes req, per the shared Ingestor
// contract, reporting the outcome via the response's status field rather
// than a gRPC-level error.
func (s *GRPCServer) SendMeasurements(ctx context.Context, req *SendMeasurementsRequest) (*SendMeasurementsResponse, error) {
	metadata := make(map[string]string, len(req.DeviceMetadata)+2)
	for k, v := range req.DeviceMetadata {
		metadata[k] = v
	}
	if req.Timestamp != "" {
		metadata["timestamp"] = req.Timestamp
	}
	if req.DeviceType != "" {
		metadata["device_type"] = req.DeviceType
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	env, err := s.ingest.Accept(ctx, req.DeviceID, "", req.Measurements, metadata)
	if err != nil {
		var verr *ValidationError
		var nferr *DeviceNotFoundError
		switch {
		case errors.As(err, &verr):
			return &SendMeasurementsResponse{Version: req.Version, Status: statusValidationError, Message: verr.Error(), Timestamp: now}, nil
		case errors.As(err, &nferr):
			return &SendMeasurementsResponse{Version: req.Version, Status: statusDeviceNotFound, Message: nferr.Error(), Timestamp: now}, nil
		default:
			return &SendMeasurementsResponse{Version: req.Version, Status: statusInternalError, Message: "accept measurements failed", Timestamp: now}, nil
		}
	}

	return &SendMeasurementsResponse{
		Version:   req.Version,
		Status:    statusSuccess,
		EventID:   env.EventID,
		Timestamp: now,
	}, nil
}

// ServiceDesc is the hand-written equivalent of a protoc-gen-go-grpc
// generated _ServiceDesc; see registryrpc.ServiceDesc for the pattern.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*gatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMeasurements", Handler: sendMeasurementsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gateway.proto",
}

type gatewayServer interface {
	SendMeasurements(context.Context, *SendMeasurementsRequest) (*SendMeasurementsResponse, error)
}

var _ gatewayServer = (*GRPCServer)(nil)

// Register registers srv's TelemetryGateway service implementation on
// grpcServer.
func Register(grpcServer *grpc.Server, srv *GRPCServer) {
	grpcServer.RegisterService(&ServiceDesc, srv)
}

func sendMeasurementsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(SendMeasurementsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(gatewayServer).SendMeasurements(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSendMeasurements}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(gatewayServer).SendMeasurements(ctx, req.(*SendMeasurementsRequest))
	}
	return interceptor(ctx, req, info, handler)
}
