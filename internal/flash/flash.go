// Package flash implements one-shot user notices: a handler sets a notice
// before redirecting, and the next page render consumes and clears it. The
// notice travels in a short-lived cookie, so it needs no server-side state.
package flash

import (
	"encoding/base64"
	"net/http"
)

const cookieName = "qrvault_flash"

// Cookie values cannot carry spaces or most punctuation, so the message is
// base64-encoded for transport.
func encode(message string) string {
	return base64.URLEncoding.EncodeToString([]byte(message))
}

func decode(value string) (string, bool) {
	decoded, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return "", false
	}

	return string(decoded), true
}

// Set stores a notice to be shown on the next rendered page.
func Set(response http.ResponseWriter, message string) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     cookieName,
			Value:    encode(message),
			Path:     "/",
			HttpOnly: true,
		},
	)
}

// Take returns the pending notice, if any, and clears it.
func Take(response http.ResponseWriter, request *http.Request) (string, bool) {
	cookie, err := request.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	http.SetCookie(
		response,
		&http.Cookie{
			Name:     cookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		},
	)

	message, ok := decode(cookie.Value)

	return message, ok && message != ""
}
