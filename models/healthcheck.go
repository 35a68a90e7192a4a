package models

// HealthCheckResponse returns the health check response struct, exciting
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
