package testutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestLogger(t *testing.T) {
	logger := TestLogger(t)
	assert.Contains(t, logger.Prefix(), t.Name())

	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	logger.Println("relayed")
	assert.Contains(t, buf.String(), "relayed")
}
