package flash

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndTake(t *testing.T) {
	setRecorder := httptest.NewRecorder()
	Set(setRecorder, "Invalid username or password")

	cookies := setRecorder.Result().Cookies()
	require.Len(t, cookies, 1)

	request := httptest.NewRequest(http.MethodGet, "/login", nil)
	request.AddCookie(cookies[0])
	takeRecorder := httptest.NewRecorder()

	message, found := Take(takeRecorder, request)
	assert.True(t, found)
	assert.Equal(t, "Invalid username or password", message)

	// Taking must clear the cookie so the notice shows only once.
	cleared := takeRecorder.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
	assert.Negative(t, cleared[0].MaxAge)
}

func TestTakeWithoutNotice(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()

	_, found := Take(recorder, request)
	assert.False(t, found)
	assert.Empty(t, recorder.Result().Cookies(), "nothing to clear, nothing set")
}

func TestTakeIgnoresGarbage(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{Name: "qrvault_flash", Value: "%%%not-base64%%%"})

	_, found := Take(httptest.NewRecorder(), request)
	assert.False(t, found)
}
