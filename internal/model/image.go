package model

import "time"

// Image is one uploaded file waiting for classification.
type Image struct {
	RequestID  string
	Filename   string
	Data       []byte
	ReceivedAt time.Time
}
