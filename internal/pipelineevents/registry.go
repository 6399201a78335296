package pipelineevents

// Sex is the patient sex enumeration.
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexOther   Sex = "other"
	SexUnknown Sex = "unknown"
)

// DeviceStatus describes a device's registration state.
type DeviceStatus string

const (
	DeviceStatusActive       DeviceStatus = "active"
	DeviceStatusInactive     DeviceStatus = "inactive"
	DeviceStatusDecommissioned DeviceStatus = "decommissioned"
)

// Device is owned by the Registry; the pipeline only reads it.
type Device struct {
	DeviceID   string            `json:"device_id"`
	DeviceType string            `json:"device_type"`
	PatientID  string            `json:"patient_id,omitempty"`
	Status     DeviceStatus      `json:"status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Patient is owned by the Registry; the pipeline only reads it.
type Patient struct {
	PatientID         string   `json:"patient_id"`
	Age               int      `json:"age"`
	Sex               Sex      `json:"sex"`
	MedicalConditions []string `json:"medical_conditions,omitempty"`
	Medications       []string `json:"medications,omitempty"`
	Allergies         []string `json:"allergies,omitempty"`
}

// ThresholdProfile is owned by the Registry. A profile with a non-empty
// DeviceID is device-specific and takes precedence over the patient's
// default (DeviceID == "") profile when both exist for a lookup.
type ThresholdProfile struct {
	PatientID        string                  `json:"patient_id"`
	DeviceID         string                  `json:"device_id,omitempty"`
	HeartRate        Range                   `json:"heart_rate"`
	BloodPressure    BloodPressureThresholds `json:"blood_pressure"`
	Temperature      Range                   `json:"temperature"`
	OxygenSaturation Range                   `json:"oxygen_saturation"`
	RespiratoryRate  Range                   `json:"respiratory_rate"`
}
