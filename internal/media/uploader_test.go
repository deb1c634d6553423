// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package media_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetpulse/assetpulse-go/internal/media"
	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
)

/*
TestUploader_Upload checks the multipart contract: field name, filename,
bearer credential, and the returned URL.
*/
func TestUploader_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "Bearer media-key", request.Header.Get("Authorization"))

		file, header, err := request.FormFile("image")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "logo.png", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(content))

		_, _ = writer.Write([]byte(`{"url":"https://media.example.com/abc.png"}`))
	}))
	defer server.Close()

	uploader := media.NewUploader(server.URL, "media-key", nil)
	url, err := uploader.Upload(context.Background(), "logo.png", strings.NewReader("png-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/abc.png", url)
}

/*
TestUploader_Upload_HostFailure checks that a rejecting host maps to
UPLOAD_FAILED.
*/
func TestUploader_Upload_HostFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	uploader := media.NewUploader(server.URL, "", nil)
	_, err := uploader.Upload(context.Background(), "logo.png", strings.NewReader("png-bytes"))

	assert.Equal(t, apperr.CodeUploadFailed, apperr.CodeOf(err))
}

/*
TestUploader_Upload_EmptyURL checks that a malformed host response is an
error, never an empty image URL on the profile.
*/
func TestUploader_Upload_EmptyURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(`{}`))
	}))
	defer server.Close()

	uploader := media.NewUploader(server.URL, "", nil)
	_, err := uploader.Upload(context.Background(), "logo.png", strings.NewReader("png-bytes"))

	assert.Equal(t, apperr.CodeUploadFailed, apperr.CodeOf(err))
}
