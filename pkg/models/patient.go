package models

// Gender is the patient gender as selected on the intake form.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Genders lists the accepted values in form order.
var Genders = []Gender{GenderMale, GenderFemale, GenderOther}

// Valid reports whether g is one of the accepted values.
func (g Gender) Valid() bool {
	for _, v := range Genders {
		if g == v {
			return true
		}
	}
	return false
}

// PatientInfo holds the patient fragment of a report
type PatientInfo struct {
	Name            string `json:"name"`
	Age             int    `json:"age"`
	Gender          Gender `json:"gender"`
	ClinicalHistory string `json:"clinicalHistory"`
}
