package models

import "time"

// ReportData is the composed value behind a displayed or exported report.
// It is replaced wholesale on each composition, never mutated.
type ReportData struct {
	ID         string           `json:"id"`
	Patient    PatientInfo      `json:"patient"`
	Image      ImageRef         `json:"-"`
	Prediction PredictionResult `json:"prediction"`
	CreatedAt  time.Time        `json:"createdAt"`
	Date       string           `json:"date"`
}
