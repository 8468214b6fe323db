package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const htmlBody = "<html><body>hello hello hello hello</body></html>"

func htmlHandler() http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		response.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = response.Write([]byte(htmlBody))
	})
}

func TestCompressesHTMLForAcceptingClient(t *testing.T) {
	handler := GzipResponse(htmlHandler())

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Accept-Encoding", "gzip")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "gzip", recorder.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(recorder.Body)
	require.NoError(t, err)
	decompressed, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, htmlBody, string(decompressed))
}

func TestPassesThroughWithoutAcceptEncoding(t *testing.T) {
	handler := GzipResponse(htmlHandler())

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Empty(t, recorder.Header().Get("Content-Encoding"))
	assert.Equal(t, htmlBody, recorder.Body.String())
}

func TestSkipsImageResponses(t *testing.T) {
	imageBody := strings.Repeat("\x89PNG", 16)
	handler := GzipResponse(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		response.Header().Set("Content-Type", "image/png")
		_, _ = response.Write([]byte(imageBody))
	}))

	request := httptest.NewRequest(http.MethodGet, "/qr_images/some-id", nil)
	request.Header.Set("Accept-Encoding", "gzip")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Empty(t, recorder.Header().Get("Content-Encoding"))
	assert.Equal(t, imageBody, recorder.Body.String())
}

func TestSkipsRedirects(t *testing.T) {
	handler := GzipResponse(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		http.Redirect(response, request, "/login", http.StatusFound)
	}))

	request := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	request.Header.Set("Accept-Encoding", "gzip")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Empty(t, recorder.Header().Get("Content-Encoding"))
	assert.Equal(t, "/login", recorder.Header().Get("Location"))
}
