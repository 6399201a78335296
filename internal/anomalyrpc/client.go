package anomalyrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/caretrace-health/telemetry-pipeline/internal/rpcjson"
)

// Client is an Anomaly Scorer gRPC client used by the Rules Engine.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to an Anomaly Scorer instance at addr.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("anomalyrpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ScoreVitals calls the Anomaly Scorer's ScoreVitals RPC.
func (c *Client) ScoreVitals(ctx context.Context, patientID string, vitals map[string]float64) (*ScoreVitalsResponse, error) {
	req := &ScoreVitalsRequest{PatientID: patientID, Vitals: vitals}
	resp := new(ScoreVitalsResponse)
	if err := c.conn.Invoke(ctx, methodScoreVitals, req, resp, rpcjson.CallOption()); err != nil {
		return nil, err
	}
	return resp, nil
}
