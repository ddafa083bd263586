package cmd

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommand(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	Version, Commit = "v1.2.3", "abc123"
	defer func() { Version, Commit = oldVersion, oldCommit }()

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)
	versionCmd.Run(versionCmd, nil)

	line := out.String()
	assert.Contains(t, line, "surge v1.2.3 (abc123)")
	assert.Contains(t, line, runtime.GOOS+"/"+runtime.GOARCH)
	assert.Equal(t, versionString()+"\n", line)
}
