package main

import (
	"bytes"
	"strings"
	"testing"
)

// useBufferWriters swaps stdIn/stdOut/stdErr with in-memory buffers for the
// duration of a test, allowing assertions on CLI output without polluting test logs.
func useBufferWriters(t *testing.T, input string) {
	t.Helper()

	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}

	prevIn := stdIn
	prevOut := stdOut
	prevErr := stdErr

	stdIn = strings.NewReader(input)
	stdOut = outBuf
	stdErr = errBuf

	t.Cleanup(func() {
		stdIn = prevIn
		stdOut = prevOut
		stdErr = prevErr
	})
}

// stdOutBuffer returns the in-use stdout buffer when useBufferWriters is active.
func stdOutBuffer() *bytes.Buffer {
	buf, _ := stdOut.(*bytes.Buffer)
	return buf
}

// stdErrBuffer returns the in-use stderr buffer when useBufferWriters is active.
func stdErrBuffer() *bytes.Buffer {
	buf, _ := stdErr.(*bytes.Buffer)
	return buf
}
