package logging

import (
	"bytes"
	"io"
)

// redactWriter is an io.Writer that redacts sensitive values from log lines.
type redactWriter struct {
	Writer  io.Writer
	Secrets []string
}

func (rw *redactWriter) Write(p []byte) (n int, err error) {
	return rw.Writer.Write(redactSecrets(p, rw.Secrets))
}

// redactSecrets replaces sensitive values in the log data with "[REDACTED]".
func redactSecrets(data []byte, secrets []string) []byte {
	for _, secret := range secrets {
		data = bytes.ReplaceAll(data, []byte(secret), []byte("[REDACTED]"))
	}
	return data
}
