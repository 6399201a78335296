package registrystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

func queryGetDevice(ctx context.Context, db *sql.DB, deviceID string) (*pipelineevents.Device, error) {
	row := db.QueryRowContext(ctx, `
		SELECT device_id, device_type, COALESCE(patient_id, ''), status, metadata
		FROM devices WHERE device_id = $1`, deviceID)

	var d pipelineevents.Device
	var metadataRaw []byte
	if err := row.Scan(&d.DeviceID, &d.DeviceType, &d.PatientID, &d.Status, &metadataRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device %s: %w", deviceID, err)
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &d.Metadata); err != nil {
			return nil, fmt.Errorf("get device %s: decode metadata: %w", deviceID, err)
		}
	}
	return &d, nil
}

func queryGetPatient(ctx context.Context, db *sql.DB, patientID string) (*pipelineevents.Patient, error) {
	row := db.QueryRowContext(ctx, `
		SELECT patient_id, age, sex, medical_conditions, medications, allergies
		FROM patients WHERE patient_id = $1`, patientID)

	var p pipelineevents.Patient
	var sex string
	if err := row.Scan(&p.PatientID, &p.Age, &sex,
		pq.Array(&p.MedicalConditions), pq.Array(&p.Medications), pq.Array(&p.Allergies)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get patient %s: %w", patientID, err)
	}
	p.Sex = pipelineevents.Sex(sex)
	return &p, nil
}

func queryGetThresholdProfile(ctx context.Context, db *sql.DB, patientID, deviceID string) (*pipelineevents.ThresholdProfile, error) {
	if deviceID != "" {
		t, err := scanThresholdProfile(ctx, db, `
			SELECT patient_id, device_id, hr_min, hr_max,
			       bp_systolic_min, bp_systolic_max, bp_diastolic_min, bp_diastolic_max,
			       temp_min, temp_max, spo2_min, spo2_max, resp_rate_min, resp_rate_max
			FROM threshold_profiles WHERE patient_id = $1 AND device_id = $2`, patientID, deviceID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	t, err := scanThresholdProfile(ctx, db, `
		SELECT patient_id, device_id, hr_min, hr_max,
		       bp_systolic_min, bp_systolic_max, bp_diastolic_min, bp_diastolic_max,
		       temp_min, temp_max, spo2_min, spo2_max, resp_rate_min, resp_rate_max
		FROM threshold_profiles WHERE patient_id = $1 AND device_id IS NULL`, patientID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanThresholdProfile(ctx context.Context, db *sql.DB, query string, args ...any) (*pipelineevents.ThresholdProfile, error) {
	row := db.QueryRowContext(ctx, query, args...)

	var t pipelineevents.ThresholdProfile
	var deviceID sql.NullString
	if err := row.Scan(&t.PatientID, &deviceID,
		&t.HeartRate.Min, &t.HeartRate.Max,
		&t.BloodPressure.Systolic.Min, &t.BloodPressure.Systolic.Max,
		&t.BloodPressure.Diastolic.Min, &t.BloodPressure.Diastolic.Max,
		&t.Temperature.Min, &t.Temperature.Max,
		&t.OxygenSaturation.Min, &t.OxygenSaturation.Max,
		&t.RespiratoryRate.Min, &t.RespiratoryRate.Max,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get threshold profile: %w", err)
	}
	t.DeviceID = deviceID.String
	return &t, nil
}

func queryUpsertDevice(ctx context.Context, db *sql.DB, d *pipelineevents.Device) error {
	metadataRaw, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("upsert device %s: encode metadata: %w", d.DeviceID, err)
	}

	var patientID any
	if d.PatientID != "" {
		patientID = d.PatientID
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO devices (device_id, device_type, patient_id, status, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id) DO UPDATE SET
			device_type = EXCLUDED.device_type,
			patient_id = EXCLUDED.patient_id,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata`,
		d.DeviceID, d.DeviceType, patientID, d.Status, metadataRaw)
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", d.DeviceID, err)
	}
	return nil
}

func queryUpsertPatient(ctx context.Context, db *sql.DB, p *pipelineevents.Patient) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO patients (patient_id, age, sex, medical_conditions, medications, allergies)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (patient_id) DO UPDATE SET
			age = EXCLUDED.age,
			sex = EXCLUDED.sex,
			medical_conditions = EXCLUDED.medical_conditions,
			medications = EXCLUDED.medications,
			allergies = EXCLUDED.allergies`,
		p.PatientID, p.Age, string(p.Sex),
		pq.Array(p.MedicalConditions), pq.Array(p.Medications), pq.Array(p.Allergies))
	if err != nil {
		return fmt.Errorf("upsert patient %s: %w", p.PatientID, err)
	}
	return nil
}

func queryUpsertThresholdProfile(ctx context.Context, db *sql.DB, t *pipelineevents.ThresholdProfile) error {
	var deviceID any
	conflictTarget := "(patient_id) WHERE device_id IS NULL"
	if t.DeviceID != "" {
		deviceID = t.DeviceID
		conflictTarget = "(patient_id, device_id) WHERE device_id IS NOT NULL"
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO threshold_profiles (
			patient_id, device_id, hr_min, hr_max,
			bp_systolic_min, bp_systolic_max, bp_diastolic_min, bp_diastolic_max,
			temp_min, temp_max, spo2_min, spo2_max, resp_rate_min, resp_rate_max
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT %s DO UPDATE SET
			hr_min = EXCLUDED.hr_min, hr_max = EXCLUDED.hr_max,
			bp_systolic_min = EXCLUDED.bp_systolic_min, bp_systolic_max = EXCLUDED.bp_systolic_max,
			bp_diastolic_min = EXCLUDED.bp_diastolic_min, bp_diastolic_max = EXCLUDED.bp_diastolic_max,
			temp_min = EXCLUDED.temp_min, temp_max = EXCLUDED.temp_max,
			spo2_min = EXCLUDED.spo2_min, spo2_max = EXCLUDED.spo2_max,
			resp_rate_min = EXCLUDED.resp_rate_min, resp_rate_max = EXCLUDED.resp_rate_max`, conflictTarget),
		t.PatientID, deviceID, t.HeartRate.Min, t.HeartRate.Max,
		t.BloodPressure.Systolic.Min, t.BloodPressure.Systolic.Max,
		t.BloodPressure.Diastolic.Min, t.BloodPressure.Diastolic.Max,
		t.Temperature.Min, t.Temperature.Max,
		t.OxygenSaturation.Min, t.OxygenSaturation.Max,
		t.RespiratoryRate.Min, t.RespiratoryRate.Max,
	)
	if err != nil {
		return fmt.Errorf("upsert threshold profile for patient %s: %w", t.PatientID, err)
	}
	return nil
}
