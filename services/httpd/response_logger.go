package httpd

import (
	"net/http"
	"net/url"
)

// responseLogger is a wrapper of http.ResponseWriter that keeps track
// of its HTTP status code and body size.
type responseLogger struct {
	w      http.ResponseWriter
	status int
	size   int
}

func (l *responseLogger) Header() http.Header {
	return l.w.Header()
}

func (l *responseLogger) Flush() {
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (l *responseLogger) Write(b []byte) (int, error) {
	if l.status == 0 {
		// Status will be StatusOK if WriteHeader has not been called yet.
		l.status = http.StatusOK
	}
	size, err := l.w.Write(b)
	l.size += size
	return size, err
}

func (l *responseLogger) WriteHeader(s int) {
	l.status = s
	l.w.WriteHeader(s)
}

func (l *responseLogger) Status() int {
	if l.status == 0 {
		// This can happen if we never actually write data, but only set response headers.
		l.status = http.StatusOK
	}
	return l.status
}

func (l *responseLogger) Size() int {
	return l.size
}

// redactPassword returns the URL as a string with any password query
// parameter obscured.
func redactPassword(u *url.URL) string {
	q := u.Query()
	if p := q.Get("p"); p != "" {
		q.Set("p", "[REDACTED]")
		ru := *u
		ru.RawQuery = q.Encode()
		return ru.String()
	}
	return u.String()
}
