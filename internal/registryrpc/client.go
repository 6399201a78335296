package registryrpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/caretrace-health/telemetry-pipeline/internal/rpcjson"
)

// Client is a Registry gRPC client used by the Gateway and the Enricher.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a Registry instance at addr.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("registryrpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetDevice calls the Registry's GetDevice RPC.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*GetDeviceResponse, error) {
	req := &GetDeviceRequest{DeviceID: deviceID}
	resp := new(GetDeviceResponse)
	if err := c.conn.Invoke(ctx, methodGetDevice, req, resp, rpcjson.CallOption()); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetPatient calls the Registry's GetPatient RPC.
func (c *Client) GetPatient(ctx context.Context, patientID string) (*GetPatientResponse, error) {
	req := &GetPatientRequest{PatientID: patientID}
	resp := new(GetPatientResponse)
	if err := c.conn.Invoke(ctx, methodGetPatient, req, resp, rpcjson.CallOption()); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetThresholdProfile calls the Registry's GetThresholdProfile RPC.
func (c *Client) GetThresholdProfile(ctx context.Context, patientID, deviceID string) (*GetThresholdProfileResponse, error) {
	req := &GetThresholdProfileRequest{PatientID: patientID, DeviceID: deviceID}
	resp := new(GetThresholdProfileResponse)
	if err := c.conn.Invoke(ctx, methodGetThresholdProfile, req, resp, rpcjson.CallOption()); err != nil {
		return nil, err
	}
	return resp, nil
}

// CallWithTimeout wraps ctx with timeout, a convenience for the per-call
// deadline pattern every RPC caller in this pipeline uses.
func CallWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}
