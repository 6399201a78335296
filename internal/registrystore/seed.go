package registrystore

import (
	"context"
	"fmt"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

// demoPatient is one row of the fixed five-patient demo fixture, grounded
// on the original registry service's seed script.
type demoPatient struct {
	patientID  string
	age        int
	sex        pipelineevents.Sex
	deviceID   string
	deviceType string
	thresholds pipelineevents.ThresholdProfile
}

var demoPatients = []demoPatient{
	{
		patientID: "patient-001", age: 45, sex: pipelineevents.SexMale,
		deviceID: "device-001", deviceType: "wearable-vitals-monitor",
		thresholds: pipelineevents.ThresholdProfile{
			HeartRate: pipelineevents.Range{Min: 60, Max: 100},
			BloodPressure: pipelineevents.BloodPressureThresholds{
				Systolic:  pipelineevents.Range{Min: 90, Max: 140},
				Diastolic: pipelineevents.Range{Min: 60, Max: 90},
			},
			Temperature:      pipelineevents.Range{Min: 36.1, Max: 37.2},
			OxygenSaturation: pipelineevents.Range{Min: 95, Max: 100},
			RespiratoryRate:  pipelineevents.Range{Min: 12, Max: 20},
		},
	},
	{
		patientID: "patient-002", age: 32, sex: pipelineevents.SexFemale,
		deviceID: "device-002", deviceType: "wearable-vitals-monitor",
		thresholds: pipelineevents.ThresholdProfile{
			HeartRate: pipelineevents.Range{Min: 65, Max: 105},
			BloodPressure: pipelineevents.BloodPressureThresholds{
				Systolic:  pipelineevents.Range{Min: 90, Max: 140},
				Diastolic: pipelineevents.Range{Min: 60, Max: 90},
			},
			Temperature:      pipelineevents.Range{Min: 36.0, Max: 37.0},
			OxygenSaturation: pipelineevents.Range{Min: 96, Max: 100},
			RespiratoryRate:  pipelineevents.Range{Min: 12, Max: 20},
		},
	},
	{
		patientID: "patient-003", age: 58, sex: pipelineevents.SexMale,
		deviceID: "device-003", deviceType: "bedside-monitor",
		thresholds: pipelineevents.ThresholdProfile{
			HeartRate: pipelineevents.Range{Min: 55, Max: 95},
			BloodPressure: pipelineevents.BloodPressureThresholds{
				Systolic:  pipelineevents.Range{Min: 90, Max: 145},
				Diastolic: pipelineevents.Range{Min: 60, Max: 92},
			},
			Temperature:      pipelineevents.Range{Min: 35.8, Max: 37.5},
			OxygenSaturation: pipelineevents.Range{Min: 94, Max: 100},
			RespiratoryRate:  pipelineevents.Range{Min: 12, Max: 22},
		},
	},
	{
		patientID: "patient-004", age: 28, sex: pipelineevents.SexFemale,
		deviceID: "device-004", deviceType: "wearable-vitals-monitor",
		thresholds: pipelineevents.ThresholdProfile{
			HeartRate: pipelineevents.Range{Min: 70, Max: 110},
			BloodPressure: pipelineevents.BloodPressureThresholds{
				Systolic:  pipelineevents.Range{Min: 90, Max: 135},
				Diastolic: pipelineevents.Range{Min: 60, Max: 88},
			},
			Temperature:      pipelineevents.Range{Min: 36.2, Max: 37.1},
			OxygenSaturation: pipelineevents.Range{Min: 97, Max: 100},
			RespiratoryRate:  pipelineevents.Range{Min: 12, Max: 20},
		},
	},
	{
		patientID: "patient-005", age: 67, sex: pipelineevents.SexMale,
		deviceID: "device-005", deviceType: "bedside-monitor",
		thresholds: pipelineevents.ThresholdProfile{
			HeartRate: pipelineevents.Range{Min: 50, Max: 90},
			BloodPressure: pipelineevents.BloodPressureThresholds{
				Systolic:  pipelineevents.Range{Min: 90, Max: 150},
				Diastolic: pipelineevents.Range{Min: 60, Max: 95},
			},
			Temperature:      pipelineevents.Range{Min: 35.5, Max: 37.8},
			OxygenSaturation: pipelineevents.Range{Min: 93, Max: 100},
			RespiratoryRate:  pipelineevents.Range{Min: 12, Max: 24},
		},
	},
}

// Seed populates the store with a fixed five-patient, five-device demo
// fixture, for local development and the exercise's sample data set. It is
// idempotent: re-running it upserts the same rows rather than duplicating
// them.
func (s *Store) Seed(ctx context.Context) error {
	for _, dp := range demoPatients {
		patient := &pipelineevents.Patient{
			PatientID: dp.patientID,
			Age:       dp.age,
			Sex:       dp.sex,
		}
		if err := s.UpsertPatient(ctx, patient); err != nil {
			return fmt.Errorf("seed patient %s: %w", dp.patientID, err)
		}

		device := &pipelineevents.Device{
			DeviceID:   dp.deviceID,
			DeviceType: dp.deviceType,
			PatientID:  dp.patientID,
			Status:     pipelineevents.DeviceStatusActive,
		}
		if err := s.UpsertDevice(ctx, device); err != nil {
			return fmt.Errorf("seed device %s: %w", dp.deviceID, err)
		}

		thresholds := dp.thresholds
		thresholds.PatientID = dp.patientID
		if err := s.UpsertThresholdProfile(ctx, &thresholds); err != nil {
			return fmt.Errorf("seed thresholds for patient %s: %w", dp.patientID, err)
		}
	}
	return nil
}
