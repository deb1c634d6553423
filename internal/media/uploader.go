// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

/*
Package media uploads registration images (company logos, profile photos) to
the hosted media service and returns their public URLs.

The media host is an external collaborator; this client only knows the upload
contract. Failures surface as UPLOAD_FAILED and abort the registration step
that needed the image.
*/
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
)

// uploadError wraps any failure in the UPLOAD_FAILED taxonomy entry.
func uploadError(cause error) error {
	return apperr.UploadFailed(cause)
}

// uploadTimeout bounds an upload. Larger than the profile API timeout because
// image payloads are orders of magnitude bigger than JSON bodies.
const uploadTimeout = 30 * time.Second

// Uploader posts multipart image uploads to the media host.
type Uploader struct {
	uploadURL  string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewUploader constructs an Uploader for the given upload endpoint.
func NewUploader(uploadURL, apiKey string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		uploadURL:  uploadURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: uploadTimeout},
		logger:     logger,
	}
}

// WithHTTPClient overrides the transport, used by tests.
func (uploader *Uploader) WithHTTPClient(httpClient *http.Client) *Uploader {
	uploader.httpClient = httpClient
	return uploader
}

type uploadResponse struct {
	URL string `json:"url"`
}

/*
Upload sends one image and returns its hosted URL.

Parameters:
  - context: context.Context
  - filename: string (original name, used by the host for content sniffing)
  - content: io.Reader (image bytes)

Returns:
  - string: Public URL of the stored image
  - error: UPLOAD_FAILED wrapping the transport or host failure
*/
func (uploader *Uploader) Upload(context context.Context, filename string, content io.Reader) (string, error) {
	// Build the multipart body in memory; registration images are small.
	buffer := &bytes.Buffer{}
	writer := multipart.NewWriter(buffer)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", uploadError(fmt.Errorf("failed to create form file: %w", err))
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", uploadError(fmt.Errorf("failed to read image content: %w", err))
	}
	if err := writer.Close(); err != nil {
		return "", uploadError(fmt.Errorf("failed to finalize multipart body: %w", err))
	}

	request, err := http.NewRequestWithContext(context, http.MethodPost, uploader.uploadURL, buffer)
	if err != nil {
		return "", uploadError(err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	if uploader.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+uploader.apiKey)
	}

	response, err := uploader.httpClient.Do(request)
	if err != nil {
		return "", uploadError(err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return "", uploadError(fmt.Errorf("media host returned status %d: %s", response.StatusCode, string(body)))
	}

	result := &uploadResponse{}
	if err := json.NewDecoder(response.Body).Decode(result); err != nil {
		return "", uploadError(fmt.Errorf("failed to parse upload response: %w", err))
	}
	if result.URL == "" {
		return "", uploadError(fmt.Errorf("empty URL in upload response"))
	}

	return result.URL, nil
}
