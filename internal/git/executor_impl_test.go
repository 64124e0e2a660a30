package git

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRealExecutor_NewRealExecutor tests the constructor.
func TestRealExecutor_NewRealExecutor(t *testing.T) {
	workDir := "/some/path"
	executor := NewRealExecutor(workDir)

	require.NotNil(t, executor, "NewRealExecutor returned nil")
	require.Equal(t, workDir, executor.workDir)
}

// TestRealExecutor_GetCurrentBranch tests the GetCurrentBranch method.
func TestRealExecutor_GetCurrentBranch(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	executor := NewRealExecutor(cwd)
	branch, err := executor.GetCurrentBranch()

	// In CI (detached HEAD), we get ErrDetachedHead - that's valid.
	if errors.Is(err, ErrDetachedHead) {
		t.Log("GetCurrentBranch() returned ErrDetachedHead (detached HEAD state, common in CI)")
		return
	}

	require.NoError(t, err, "GetCurrentBranch() error")
	require.NotEmpty(t, branch, "GetCurrentBranch() returned empty string")
	require.False(t, strings.HasPrefix(branch, "refs/"), "GetCurrentBranch() = %q, should not have refs/ prefix", branch)
}

// TestRealExecutor_GetCurrentBranch_NotGitRepo tests GetCurrentBranch outside a repo.
func TestRealExecutor_GetCurrentBranch_NotGitRepo(t *testing.T) {
	executor := NewRealExecutor(t.TempDir())
	_, err := executor.GetCurrentBranch()
	require.Error(t, err)
}

// TestRealExecutor_HasUncommittedChanges tests the HasUncommittedChanges method.
func TestRealExecutor_HasUncommittedChanges(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	executor := NewRealExecutor(cwd)
	_, err = executor.HasUncommittedChanges()
	require.NoError(t, err, "HasUncommittedChanges() error")
}

// TestRealExecutor_HasUncommittedChanges_NotGitRepo tests the error path.
func TestRealExecutor_HasUncommittedChanges_NotGitRepo(t *testing.T) {
	executor := NewRealExecutor(t.TempDir())
	_, err := executor.HasUncommittedChanges()
	require.Error(t, err)
}

// TestInterfaceCompliance verifies RealExecutor satisfies GitExecutor.
func TestInterfaceCompliance(t *testing.T) {
	var _ GitExecutor = (*RealExecutor)(nil)
}
