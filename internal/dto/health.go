package dto

type MessageResponse struct {
	Message string `json:"message"`
}

// ReadinessResponse lists each artifact as "loaded" or its load error.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Artifacts map[string]string `json:"artifacts"`
}
