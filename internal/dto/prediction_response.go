package dto

import "fractureapi/internal/model"

// PredictResponse is the body of every POST /predict answer.
type PredictResponse struct {
	Status     string   `json:"status"`
	Prediction string   `json:"prediction,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// NewPredictResponse converts a finished prediction.
func NewPredictResponse(p model.Prediction) PredictResponse {
	confidence := p.Confidence
	return PredictResponse{
		Status:     string(p.Status),
		Prediction: p.Label,
		Confidence: &confidence,
	}
}

// NewErrorResponse builds the error body.
func NewErrorResponse(message string) PredictResponse {
	return PredictResponse{
		Status:  string(model.StatusError),
		Message: message,
	}
}
