//go:build !windows

package daemon

import (
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetach(t *testing.T) {
	cmd := exec.Command("true")
	Detach(cmd)
	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setsid)
}

func TestShutdownSignals(t *testing.T) {
	assert.Equal(t, []os.Signal{syscall.SIGINT, syscall.SIGTERM}, ShutdownSignals())
}
