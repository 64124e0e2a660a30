package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePRNumber(t *testing.T) {
	n, err := ValidatePRNumber("42")
	assert.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ValidatePRNumber("0")
	assert.Error(t, err)

	_, err = ValidatePRNumber("-1")
	assert.Error(t, err)

	_, err = ValidatePRNumber("10000000000")
	assert.Error(t, err)

	_, err = ValidatePRNumber("abc")
	assert.Error(t, err)
}

func TestValidateCommentID(t *testing.T) {
	assert.NoError(t, ValidateCommentID("abc-123_xyz"))
	assert.Error(t, ValidateCommentID(""))
	assert.Error(t, ValidateCommentID("abc; rm -rf /"))
}

func TestValidateBranchName(t *testing.T) {
	assert.NoError(t, ValidateBranchName("feature/add-login"))
	assert.Error(t, ValidateBranchName("/leading-slash"))
	assert.Error(t, ValidateBranchName("trailing-slash/"))
	assert.Error(t, ValidateBranchName(".hidden"))
	assert.Error(t, ValidateBranchName("has..dotdot"))
	assert.Error(t, ValidateBranchName("has space"))
}
