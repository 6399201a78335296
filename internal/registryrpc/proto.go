// Package registryrpc implements the Registry's gRPC surface: GetDevice,
// GetPatient, and GetThresholdProfile, used synchronously by the Gateway
// (device verification) and the Enricher (profile lookups). Requests and
// responses are plain structs carried by the rpcjson codec rather than
// generated protobuf messages.
package registryrpc

import "github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"

// GetDeviceRequest is the GetDevice RPC's request message.
type GetDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

// GetDeviceResponse is the GetDevice RPC's response message.
type GetDeviceResponse struct {
	Device *pipelineevents.Device `json:"device"`
}

// GetPatientRequest is the GetPatient RPC's request message.
type GetPatientRequest struct {
	PatientID string `json:"patient_id"`
}

// GetPatientResponse is the GetPatient RPC's response message.
type GetPatientResponse struct {
	Patient *pipelineevents.Patient `json:"patient"`
}

// GetThresholdProfileRequest is the GetThresholdProfile RPC's request
// message. DeviceID is optional; when set, a device-specific override
// takes precedence over the patient's default profile.
type GetThresholdProfileRequest struct {
	PatientID string `json:"patient_id"`
	DeviceID  string `json:"device_id,omitempty"`
}

// GetThresholdProfileResponse is the GetThresholdProfile RPC's response
// message.
type GetThresholdProfileResponse struct {
	ThresholdProfile *pipelineevents.ThresholdProfile `json:"threshold_profile"`
}

// serviceName is this service's gRPC full-method prefix, mirroring the
// path a generated protobuf stub would use.
const serviceName = "registry.v1.Registry"

const (
	methodGetDevice           = "/" + serviceName + "/GetDevice"
	methodGetPatient          = "/" + serviceName + "/GetPatient"
	methodGetThresholdProfile = "/" + serviceName + "/GetThresholdProfile"
)
