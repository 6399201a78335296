package registryrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
	"github.com/caretrace-health/telemetry-pipeline/internal/registrystore"
)

// Store is the read-side dependency registryrpc.Server needs; satisfied by
// *registrystore.Store.
type Store interface {
	GetDevice(ctx context.Context, deviceID string) (*pipelineevents.Device, error)
	GetPatient(ctx context.Context, patientID string) (*pipelineevents.Patient, error)
	GetThresholdProfile(ctx context.Context, patientID, deviceID string) (*pipelineevents.ThresholdProfile, error)
}

// Server implements the Registry gRPC service.
type Server struct {
	store Store
}

// NewServer returns a Server backed by store.
func NewServer(store Store) *Server {
	return &Server{store: store}
}

// GetDevice returns the device with the given device_id, or codes.NotFound.
func (s *Server) GetDevice(ctx context.Context, req *GetDeviceRequest) (*GetDeviceResponse, error) {
	if req.DeviceID == "" {
		return nil, status.Error(codes.InvalidArgument, "device_id is required")
	}

	d, err := s.store.GetDevice(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, registrystore.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "device %s not found", req.DeviceID)
		}
		return nil, status.Errorf(codes.Internal, "get device: %v", err)
	}
	return &GetDeviceResponse{Device: d}, nil
}

// GetPatient returns the patient with the given patient_id, or
// codes.NotFound.
func (s *Server) GetPatient(ctx context.Context, req *GetPatientRequest) (*GetPatientResponse, error) {
	if req.PatientID == "" {
		return nil, status.Error(codes.InvalidArgument, "patient_id is required")
	}

	p, err := s.store.GetPatient(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, registrystore.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "patient %s not found", req.PatientID)
		}
		return nil, status.Errorf(codes.Internal, "get patient: %v", err)
	}
	return &GetPatientResponse{Patient: p}, nil
}

// GetThresholdProfile resolves the effective threshold profile for a
// patient, optionally narrowed by device_id, or codes.NotFound.
func (s *Server) GetThresholdProfile(ctx context.Context, req *GetThresholdProfileRequest) (*GetThresholdProfileResponse, error) {
	if req.PatientID == "" {
		return nil, status.Error(codes.InvalidArgument, "patient_id is required")
	}

	t, err := s.store.GetThresholdProfile(ctx, req.PatientID, req.DeviceID)
	if err != nil {
		if errors.Is(err, registrystore.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "threshold profile for patient %s not found", req.PatientID)
		}
		return nil, status.Errorf(codes.Internal, "get threshold profile: %v", err)
	}
	return &GetThresholdProfileResponse{ThresholdProfile: t}, nil
}

// ServiceDesc is the hand-written equivalent of a protoc-gen-go-grpc
// generated _ServiceDesc: it registers this service's three methods on a
// *grpc.Server so the rpcjson codec can dispatch to them by name, without a
// protoc toolchain available to generate the usual .pb.go stub.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*registryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDevice", Handler: getDeviceHandler},
		{MethodName: "GetPatient", Handler: getPatientHandler},
		{MethodName: "GetThresholdProfile", Handler: getThresholdProfileHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "registry.proto",
}

// registryServer is the interface grpc.ServiceDesc dispatches against.
type registryServer interface {
	GetDevice(context.Context, *GetDeviceRequest) (*GetDeviceResponse, error)
	GetPatient(context.Context, *GetPatientRequest) (*GetPatientResponse, error)
	GetThresholdProfile(context.Context, *GetThresholdProfileRequest) (*GetThresholdProfileResponse, error)
}

var _ registryServer = (*Server)(nil)

// Register registers srv's Registry service implementation on grpcServer.
func Register(grpcServer *grpc.Server, srv *Server) {
	grpcServer.RegisterService(&ServiceDesc, srv)
}

func getDeviceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(GetDeviceRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(registryServer).GetDevice(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetDevice}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(registryServer).GetDevice(ctx, req.(*GetDeviceRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func getPatientHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(GetPatientRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(registryServer).GetPatient(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetPatient}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(registryServer).GetPatient(ctx, req.(*GetPatientRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func getThresholdProfileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(GetThresholdProfileRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(registryServer).GetThresholdProfile(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetThresholdProfile}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(registryServer).GetThresholdProfile(ctx, req.(*GetThresholdProfileRequest))
	}
	return interceptor(ctx, req, info, handler)
}
