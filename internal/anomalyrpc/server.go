package anomalyrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
	"github.com/caretrace-health/telemetry-pipeline/internal/scoring"
)

// Scorer is the scoring dependency Server needs; satisfied by
// *scoring.Scorer.
type Scorer interface {
	ScoreMetric(ctx context.Context, patientID, metric string, value float64) (scoring.MetricScore, error)
}

// Server implements the Anomaly Scorer gRPC service.
type Server struct {
	scorer Scorer
}

// NewServer returns a Server backed by scorer.
func NewServer(scorer Scorer) *Server {
	return &Server{scorer: scorer}
}

// ScoreVitals scores every metric in req.Vitals against patient_id's
// rolling baseline and returns both the per-metric scores and the
// weighted overall risk score.
func (s *Server) ScoreVitals(ctx context.Context, req *ScoreVitalsRequest) (*ScoreVitalsResponse, error) {
	if req.PatientID == "" {
		return nil, status.Error(codes.InvalidArgument, "patient_id is required")
	}
	if len(req.Vitals) == 0 {
		return nil, status.Error(codes.InvalidArgument, "vitals must not be empty")
	}

	metricScores := make(map[string]scoring.MetricScore, len(req.Vitals))
	scores := make(map[string]pipelineevents.AnomalyScore, len(req.Vitals))
	for metric, value := range req.Vitals {
		ms, err := s.scorer.ScoreMetric(ctx, req.PatientID, metric, value)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "score %s: %v", metric, err)
		}
		metricScores[metric] = ms
		scores[metric] = pipelineevents.AnomalyScore{
			Score:    ms.Score,
			Severity: scoring.Severity(ms.Score),
		}
	}

	return &ScoreVitalsResponse{
		Scores:           scores,
		OverallRiskScore: scoring.OverallRisk(metricScores),
	}, nil
}

// ServiceDesc is the hand-written equivalent of a protoc-gen-go-grpc
// generated _ServiceDesc for this single-method service; see
// registryrpc.ServiceDesc for the pattern this follows.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*anomalyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScoreVitals", Handler: scoreVitalsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "anomaly.proto",
}

type anomalyServer interface {
	ScoreVitals(context.Context, *ScoreVitalsRequest) (*ScoreVitalsResponse, error)
}

var _ anomalyServer = (*Server)(nil)

// Register registers srv's Anomaly Scorer service implementation on
// grpcServer.
func Register(grpcServer *grpc.Server, srv *Server) {
	grpcServer.RegisterService(&ServiceDesc, srv)
}

func scoreVitalsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ScoreVitalsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(anomalyServer).ScoreVitals(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodScoreVitals}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(anomalyServer).ScoreVitals(ctx, req.(*ScoreVitalsRequest))
	}
	return interceptor(ctx, req, info, handler)
}
