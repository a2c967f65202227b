// Package intake collects patient details for a report.
package intake

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/ulle78/DeepMSI/pkg/models"
)

// Form field names, shared with the web UI.
const (
	FieldName            = "name"
	FieldAge             = "age"
	FieldGender          = "gender"
	FieldClinicalHistory = "clinicalHistory"
)

// ErrClosed is returned when submitting a form that is not open.
var ErrClosed = errors.New("patient form is not open")

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned by Parse when one or more fields are invalid.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Field + ": " + e.Message
	}
	return "invalid patient details: " + strings.Join(parts, "; ")
}

// Parse validates the four required fields and returns the patient.
func Parse(values url.Values) (models.PatientInfo, error) {
	var errs ValidationErrors
	get := func(field string) string {
		v := strings.TrimSpace(values.Get(field))
		if v == "" {
			errs = append(errs, FieldError{Field: field, Message: "is required"})
		}
		return v
	}

	name := get(FieldName)
	ageStr := get(FieldAge)
	genderStr := get(FieldGender)
	history := get(FieldClinicalHistory)

	var age int
	if ageStr != "" {
		n, err := strconv.Atoi(ageStr)
		if err != nil || n <= 0 {
			errs = append(errs, FieldError{Field: FieldAge, Message: "must be a positive whole number"})
		}
		age = n
	}

	gender := models.Gender(genderStr)
	if genderStr != "" && !gender.Valid() {
		errs = append(errs, FieldError{Field: FieldGender, Message: "must be Male, Female or Other"})
	}

	if len(errs) > 0 {
		return models.PatientInfo{}, errs
	}

	return models.PatientInfo{
		Name:            name,
		Age:             age,
		Gender:          gender,
		ClinicalHistory: history,
	}, nil
}

// Form is the patient details dialog. A successful Submit invokes the
// callback exactly once and closes the form.
type Form struct {
	onSubmit func(models.PatientInfo) error
	open     bool
}

// New creates a closed form that hands submitted patients to onSubmit.
func New(onSubmit func(models.PatientInfo) error) *Form {
	return &Form{onSubmit: onSubmit}
}

// Open shows the form.
func (f *Form) Open() { f.open = true }

// Cancel closes the form without submitting.
func (f *Form) Cancel() { f.open = false }

// IsOpen reports whether the form is shown.
func (f *Form) IsOpen() bool { return f.open }

// Submit validates values and passes the patient to the callback. The form
// stays open when validation or the callback fails.
func (f *Form) Submit(values url.Values) (models.PatientInfo, error) {
	if !f.open {
		return models.PatientInfo{}, ErrClosed
	}

	patient, err := Parse(values)
	if err != nil {
		return models.PatientInfo{}, err
	}

	if f.onSubmit != nil {
		if err := f.onSubmit(patient); err != nil {
			return models.PatientInfo{}, err
		}
	}

	f.open = false
	return patient, nil
}
