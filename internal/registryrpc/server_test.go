package registryrpc

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
	"github.com/caretrace-health/telemetry-pipeline/internal/registrystore"
)

type fakeStore struct {
	devices    map[string]*pipelineevents.Device
	patients   map[string]*pipelineevents.Patient
	thresholds map[string]*pipelineevents.ThresholdProfile
}

func (f *fakeStore) GetDevice(_ context.Context, deviceID string) (*pipelineevents.Device, error) {
	d, ok := f.devices[deviceID]
	if !ok {
		return nil, registrystore.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) GetPatient(_ context.Context, patientID string) (*pipelineevents.Patient, error) {
	p, ok := f.patients[patientID]
	if !ok {
		return nil, registrystore.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetThresholdProfile(_ context.Context, patientID, deviceID string) (*pipelineevents.ThresholdProfile, error) {
	key := patientID + "/" + deviceID
	if t, ok := f.thresholds[key]; ok {
		return t, nil
	}
	if t, ok := f.thresholds[patientID+"/"]; ok {
		return t, nil
	}
	return nil, registrystore.ErrNotFound
}

func TestServer_GetDevice_NotFound(t *testing.T) {
	srv := NewServer(&fakeStore{devices: map[string]*pipelineevents.Device{}})

	_, err := srv.GetDevice(context.Background(), &GetDeviceRequest{DeviceID: "missing"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want NotFound", status.Code(err))
	}
}

func TestServer_GetDevice_MissingID(t *testing.T) {
	srv := NewServer(&fakeStore{})

	_, err := srv.GetDevice(context.Background(), &GetDeviceRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestServer_GetDevice_Found(t *testing.T) {
	srv := NewServer(&fakeStore{devices: map[string]*pipelineevents.Device{
		"device-001": {DeviceID: "device-001", PatientID: "patient-001"},
	}})

	resp, err := srv.GetDevice(context.Background(), &GetDeviceRequest{DeviceID: "device-001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Device.PatientID != "patient-001" {
		t.Errorf("PatientID = %q, want patient-001", resp.Device.PatientID)
	}
}

func TestServer_GetThresholdProfile_FallsBackToDefault(t *testing.T) {
	srv := NewServer(&fakeStore{thresholds: map[string]*pipelineevents.ThresholdProfile{
		"patient-001/": {PatientID: "patient-001", HeartRate: pipelineevents.Range{Min: 60, Max: 100}},
	}})

	resp, err := srv.GetThresholdProfile(context.Background(), &GetThresholdProfileRequest{PatientID: "patient-001", DeviceID: "device-999"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ThresholdProfile.HeartRate.Min != 60 {
		t.Errorf("HeartRate.Min = %v, want 60", resp.ThresholdProfile.HeartRate.Min)
	}
}
