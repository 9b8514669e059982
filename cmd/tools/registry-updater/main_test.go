// cmd/tools/registry-updater/main_test.go
package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coaching-workers/pkg/registry"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRegistryUpdater_AddUpdateValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity-registry.json")

	out, err := run(t, "add", "--path", path,
		"--id", "record-progress",
		"--displayName", "Record Progress",
		"--description", "Indexes a progress snapshot",
		"--category", "data-access",
		"--taskType", "record-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Added activity: record-progress")

	_, err = run(t, "update", "--path", path, "--id", "record-progress", "--field", "status", "--value", "verified")
	require.NoError(t, err)

	out, err = run(t, "validate", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 activities")

	out, err = run(t, "list", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "verified")

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"record-progress"}, reg.RunnableTaskTypes())
}

func TestRegistryUpdater_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity-registry.json")

	_, err := run(t, "add", "--path", path, "--id", "only-id")
	assert.Error(t, err)

	_, err = run(t, "update", "--path", path, "--id", "x", "--field", "status", "--value", "verified")
	assert.ErrorContains(t, err, "failed to load registry")

	_, err = run(t, "validate", "--path", filepath.Join("..", "..", "..", "configs", "activity-registry.json"))
	assert.NoError(t, err)
}
