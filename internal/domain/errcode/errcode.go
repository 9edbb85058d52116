// Package errcode maps pipeline error codes to the German messages shown to visitors.
package errcode

import (
	"strconv"
	"strings"
)

// Code identifies a failure class exposed to API callers.
type Code string

const (
	Timeout           Code = "API_TIMEOUT"
	ConnectionError   Code = "API_CONNECTION_ERROR"
	TransportError    Code = "API_TRANSPORT_ERROR"
	HTTP429           Code = "API_HTTP_429"
	HTTP5xx           Code = "API_HTTP_5XX"
	InvalidResponse   Code = "API_INVALID_RESPONSE"
	MalformedResponse Code = "API_MALFORMED_RESPONSE"
	NoStatus          Code = "API_NO_STATUS"
	InitError         Code = "API_INIT_ERROR"
	UnexpectedStatus  Code = "API_UNEXPECTED_STATUS"
	MissingQuestion   Code = "MissingQuestion"
	MissingTenant     Code = "MissingTenant"
)

// SupportHint is appended to every failure response.
const SupportHint = "Falls das Problem bestehen bleibt, wende dich bitte direkt an die Rezeption."

const genericMessage = "Entschuldigung, es gab ein technisches Problem. Bitte versuche es später noch einmal."

var messages = map[Code]string{
	Timeout:           "Die Antwort hat zu lange gedauert. Bitte versuche es in einem Moment noch einmal.",
	ConnectionError:   "Der Assistent ist gerade nicht erreichbar. Bitte versuche es in einem Moment noch einmal.",
	TransportError:    "Beim Abrufen der Antwort ist ein Übertragungsfehler aufgetreten.",
	HTTP429:           "Gerade kommen sehr viele Anfragen an. Bitte warte einen Moment und frage dann erneut.",
	HTTP5xx:           "Der Assistent ist vorübergehend gestört. Bitte versuche es später noch einmal.",
	InvalidResponse:   "Entschuldigung, es wurde keine gültige Antwort erhalten.",
	MalformedResponse: "Entschuldigung, die Antwort konnte nicht verarbeitet werden.",
	NoStatus:          "Der Assistent hat nicht geantwortet. Bitte versuche es noch einmal.",
	InitError:         "Die Anfrage konnte nicht vorbereitet werden.",
	MissingQuestion:   "Keine Frage erhalten.",
	MissingTenant:     "Unbekanntes oder fehlendes Hotel.",
}

// Message returns the visitor-facing message for code. Unknown codes,
// including per-status API_HTTP_<code> values, get a generic message.
func Message(code Code) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return genericMessage
}

// Known reports whether code has a dedicated message.
func Known(code Code) bool {
	_, ok := messages[code]
	return ok
}

// ForStatus returns the code for an HTTP failure status: API_HTTP_5XX for
// 500 and above, API_HTTP_<status> otherwise.
func ForStatus(status int) Code {
	if status >= 500 {
		return HTTP5xx
	}
	return Code("API_HTTP_" + strconv.Itoa(status))
}

// IsInput reports whether code describes a visitor input problem rather than an upstream failure.
func IsInput(code Code) bool {
	return code == MissingQuestion || code == MissingTenant
}

// IsHTTP reports whether code was derived from an upstream HTTP status.
func IsHTTP(code Code) bool {
	return strings.HasPrefix(string(code), "API_HTTP_")
}
