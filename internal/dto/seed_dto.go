package dto

import "github.com/casecamp/casecamp-api/internal/models"

// SeedRequest bulk-loads reference data. Guarded by a token; disabled
// outside development environments.
type SeedRequest struct {
	Token    string           `json:"token"`
	Weeks    []models.Week    `json:"weeks"`
	Cases    []models.Case    `json:"cases"`
	Students []models.Student `json:"students"`
}

// SeedResponse reports how many rows each collection touched.
type SeedResponse struct {
	Weeks    int64 `json:"weeks"`
	Cases    int64 `json:"cases"`
	Students int64 `json:"students"`
}

// UploadResponse describes a stored video upload.
type UploadResponse struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	FileName  string `json:"file_name"`
}
