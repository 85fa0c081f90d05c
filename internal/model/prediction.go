package model

import "errors"

// ErrInvalidImage is returned when uploaded bytes cannot be decoded as an image.
var ErrInvalidImage = errors.New("invalid image file")

type Status string

const (
	StatusSuccess Status = "success"
	StatusNotXray Status = "not_xray"
	StatusError   Status = "error"
)

const (
	LabelNormal   = "Normal"
	LabelFracture = "Fracture"
	LabelNotXray  = "Not an X-ray Image"
	LabelUnknown  = "Unknown"
)

// Prediction is the outcome of a completed inference.
type Prediction struct {
	Status     Status
	Label      string
	Confidence float64
}

// LabelForClass maps a classifier class value onto its medical label.
func LabelForClass(class int) string {
	labels := map[int]string{
		0: LabelNormal,
		1: LabelFracture,
	}

	if label, exists := labels[class]; exists {
		return label
	}
	return LabelUnknown
}
