package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Rendered quote/invoice PDFs are written to GCS by the document renderer.
// This side only hands out short-lived signed GET URLs for the stored objects.

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

func loadSignerFromEnv() (accessID string, privateKey []byte, err error) {
	raw := strings.TrimSpace(os.Getenv("GCS_SA_JSON"))
	if raw == "" {
		return "", nil, errors.New("GCS_SA_JSON is required for signed urls")
	}
	// Accept either raw JSON or base64-encoded JSON.
	if !strings.HasPrefix(raw, "{") {
		decoded, derr := base64.StdEncoding.DecodeString(raw)
		if derr != nil {
			return "", nil, fmt.Errorf("GCS_SA_JSON is neither JSON nor base64: %w", derr)
		}
		raw = string(decoded)
	}
	var sa serviceAccountJSON
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		return "", nil, err
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return "", nil, errors.New("GCS_SA_JSON missing client_email/private_key")
	}
	return sa.ClientEmail, []byte(sa.PrivateKey), nil
}

// SignDocumentURL returns a time-limited GET URL for a rendered document
// object.
func SignDocumentURL(objectKey string, expires time.Duration) (string, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	accessID, privateKey, err := loadSignerFromEnv()
	if err != nil {
		return "", err
	}

	return storage.SignedURL(bucket, objectKey, &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(expires),
		GoogleAccessID: accessID,
		PrivateKey:     privateKey,
	})
}
