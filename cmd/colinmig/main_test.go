package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bcgov/colin-migrate/internal/cli"
)

func TestRunExitCodes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, cli.ExitSuccess, run([]string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "colinmig")

	stdout.Reset()
	stderr.Reset()
	assert.Equal(t, cli.ExitCommandError, run([]string{"--format", "xml", "status"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `Error [E_COMMAND]: invalid format "xml"`)

	stderr.Reset()
	assert.Equal(t, cli.ExitCommandError, run([]string{"run", "--config", "/nonexistent/colinmig.yaml"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "failed to load config")

	stderr.Reset()
	assert.Equal(t, cli.ExitCommandError, run([]string{"--format", "json", "run", "--config", "/nonexistent/colinmig.yaml"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `"code":"E_COMMAND"`)
}
