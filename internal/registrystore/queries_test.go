package registrystore

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}

func TestGetDevice_Found(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"device_id", "device_type", "patient_id", "status", "metadata"}).
		AddRow("device-001", "wearable-vitals-monitor", "patient-001", "active", []byte(`{"location":"icu-3"}`))
	mock.ExpectQuery("SELECT device_id, device_type").WithArgs("device-001").WillReturnRows(rows)

	d, err := store.GetDevice(context.Background(), "device-001")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if d.DeviceID != "device-001" || d.PatientID != "patient-001" {
		t.Errorf("GetDevice = %+v", d)
	}
	if d.Metadata["location"] != "icu-3" {
		t.Errorf("Metadata[location] = %q, want icu-3", d.Metadata["location"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT device_id, device_type").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"device_id", "device_type", "patient_id", "status", "metadata"}))

	_, err := store.GetDevice(context.Background(), "missing")
	if err != ErrNotFound {
		t.Errorf("GetDevice error = %v, want ErrNotFound", err)
	}
}

func TestGetThresholdProfile_FallsBackToPatientDefault(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT patient_id, device_id.*patient_id = \\$1 AND device_id = \\$2").
		WithArgs("patient-001", "device-999").
		WillReturnRows(sqlmock.NewRows([]string{
			"patient_id", "device_id", "hr_min", "hr_max",
			"bp_systolic_min", "bp_systolic_max", "bp_diastolic_min", "bp_diastolic_max",
			"temp_min", "temp_max", "spo2_min", "spo2_max", "resp_rate_min", "resp_rate_max",
		}))

	mock.ExpectQuery("SELECT patient_id, device_id.*device_id IS NULL").
		WithArgs("patient-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"patient_id", "device_id", "hr_min", "hr_max",
			"bp_systolic_min", "bp_systolic_max", "bp_diastolic_min", "bp_diastolic_max",
			"temp_min", "temp_max", "spo2_min", "spo2_max", "resp_rate_min", "resp_rate_max",
		}).AddRow("patient-001", nil, 60.0, 100.0, 90.0, 140.0, 60.0, 90.0, 36.1, 37.2, 95.0, 100.0, 12.0, 20.0))

	t_, err := store.GetThresholdProfile(context.Background(), "patient-001", "device-999")
	if err != nil {
		t.Fatalf("GetThresholdProfile: %v", err)
	}
	if t_.DeviceID != "" {
		t.Errorf("DeviceID = %q, want empty (patient default)", t_.DeviceID)
	}
	if t_.HeartRate.Min != 60 || t_.HeartRate.Max != 100 {
		t.Errorf("HeartRate = %+v", t_.HeartRate)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
