package cli_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/bitlogdb/bitlog/internal/cli"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dataDir string, args ...string) (stdout, stderr string, code int) {
	t.Helper()

	var out, errOut bytes.Buffer
	fullArgs := append([]string{"bitlog", "--data-dir", dataDir}, args...)

	code = cli.Run(nil, &out, &errOut, fullArgs, nil, nil)

	return out.String(), errOut.String(), code
}

func TestCLI_SetGetRm(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	_, _, code := run(t, dataDir, "set", "user", "Alice")
	require.Equal(t, 0, code)

	out, _, code := run(t, dataDir, "get", "user")
	require.Equal(t, 0, code)
	require.Equal(t, "Alice\n", out)

	_, _, code = run(t, dataDir, "rm", "user")
	require.Equal(t, 0, code)

	out, _, code = run(t, dataDir, "get", "user")
	require.Equal(t, 0, code)
	require.Empty(t, out)
}

func TestCLI_GetMissingKeyExitsZero(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	out, _, code := run(t, dataDir, "get", "nope")
	require.Equal(t, 0, code)
	require.Empty(t, out)
}

func TestCLI_RmMissingKeyExitsNonZero(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	_, errOut, code := run(t, dataDir, "rm", "nope")
	require.NotEqual(t, 0, code)
	require.NotEmpty(t, errOut)
}

func TestCLI_Stats(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	_, _, code := run(t, dataDir, "set", "k", "v")
	require.Equal(t, 0, code)

	out, _, code := run(t, dataDir, "stats")
	require.Equal(t, 0, code)
	require.Contains(t, out, "keys=1")
}

func TestCLI_UnknownCommand(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	_, errOut, code := run(t, dataDir, "bogus")
	require.NotEqual(t, 0, code)
	require.Contains(t, errOut, "unknown command")
}
