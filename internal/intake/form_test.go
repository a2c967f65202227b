package intake

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulle78/DeepMSI/pkg/models"
)

func validValues() url.Values {
	return url.Values{
		FieldName:            {"Jane Doe"},
		FieldAge:             {"54"},
		FieldGender:          {"Female"},
		FieldClinicalHistory: {"none"},
	}
}

func TestParse_Valid(t *testing.T) {
	p, err := Parse(validValues())
	require.NoError(t, err)
	assert.Equal(t, models.PatientInfo{
		Name:            "Jane Doe",
		Age:             54,
		Gender:          models.GenderFemale,
		ClinicalHistory: "none",
	}, p)
}

func TestParse_TrimsWhitespace(t *testing.T) {
	v := validValues()
	v.Set(FieldName, "  Jane Doe \n")
	v.Set(FieldAge, " 54 ")

	p, err := Parse(v)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, 54, p.Age)
}

func TestParse_MissingFields(t *testing.T) {
	_, err := Parse(url.Values{FieldName: {"   "}})

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 4)
	fields := []string{verrs[0].Field, verrs[1].Field, verrs[2].Field, verrs[3].Field}
	assert.Equal(t, []string{FieldName, FieldAge, FieldGender, FieldClinicalHistory}, fields)
	assert.Contains(t, err.Error(), "name: is required")
}

func TestParse_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
	}{
		{"age zero", FieldAge, "0"},
		{"age negative", FieldAge, "-3"},
		{"age fraction", FieldAge, "54.5"},
		{"age text", FieldAge, "fifty"},
		{"gender lowercase", FieldGender, "female"},
		{"gender unknown", FieldGender, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validValues()
			v.Set(tt.field, tt.value)

			_, err := Parse(v)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestForm_SubmitInvokesCallbackOnceAndCloses(t *testing.T) {
	var calls []models.PatientInfo
	f := New(func(p models.PatientInfo) error {
		calls = append(calls, p)
		return nil
	})
	f.Open()

	p, err := f.Submit(validValues())
	require.NoError(t, err)
	assert.False(t, f.IsOpen())
	require.Len(t, calls, 1)
	assert.Equal(t, p, calls[0])

	// A closed form does not submit again.
	_, err = f.Submit(validValues())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Len(t, calls, 1)
}

func TestForm_InvalidSubmitKeepsFormOpen(t *testing.T) {
	called := false
	f := New(func(models.PatientInfo) error {
		called = true
		return nil
	})
	f.Open()

	_, err := f.Submit(url.Values{})
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, f.IsOpen())
}

func TestForm_CallbackErrorKeepsFormOpen(t *testing.T) {
	boom := errors.New("no prediction yet")
	f := New(func(models.PatientInfo) error { return boom })
	f.Open()

	_, err := f.Submit(validValues())
	assert.ErrorIs(t, err, boom)
	assert.True(t, f.IsOpen())
}

func TestForm_Cancel(t *testing.T) {
	f := New(nil)
	f.Open()
	f.Cancel()
	assert.False(t, f.IsOpen())
}
