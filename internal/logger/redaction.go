package logger

import (
	"io"
	"regexp"
)

type redactRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor masks session identifiers in log output. Session ids travel in a
// cookie and act as bearer credentials for a client's history, so only a
// short prefix is kept.
type Redactor struct {
	rules []redactRule
}

// NewRedactor creates a redactor with the default rules.
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactRule{
			// JSON fields written by the session packages
			{regexp.MustCompile(`("session_id"\s*:\s*")([^"]{0,4})[^"]*(")`), "${1}${2}***${3}"},
			// Cookie and query forms
			{regexp.MustCompile(`(sessionId=)([^;&\s"]{0,4})[^;&\s"]*`), "${1}${2}***"},
		},
	}
}

// AddPattern masks every match of pattern entirely.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactRule{pattern: re, replacement: "[REDACTED]"})
	return nil
}

// Redact applies all rules to s.
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return s
}

// Wrap returns a writer that redacts before writing to w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so callers do not treat a shortened
// redacted line as a short write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
