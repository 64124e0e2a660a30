package agents

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// maxPRNumber bounds validated PR numbers (§4.6.2 / §9).
const maxPRNumber = 1_000_000_000

var commentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidatePRNumber guards against shell-interpolating an attacker-controlled
// PR number: it must be a positive integer no greater than 1e9.
func ValidatePRNumber(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("pr number %q is not an integer: %w", raw, err)
	}
	if n <= 0 || n > maxPRNumber {
		return 0, fmt.Errorf("pr number %d out of range (1..%d)", n, maxPRNumber)
	}
	return n, nil
}

// ValidateCommentID guards a comment id destined for a shell command:
// only letters, digits, underscore and hyphen are allowed.
func ValidateCommentID(id string) error {
	if id == "" || !commentIDPattern.MatchString(id) {
		return fmt.Errorf("comment id %q contains disallowed characters", id)
	}
	return nil
}

// ValidateBranchName applies the git ref-naming rules relevant to
// shell-argument safety: no leading/trailing slash or dot, no double dot.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name is empty")
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("branch name %q has a leading or trailing slash", name)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("branch name %q has a leading or trailing dot", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("branch name %q contains a double dot", name)
	}
	if strings.ContainsAny(name, " ~^:?*[\\") {
		return fmt.Errorf("branch name %q contains a disallowed character", name)
	}
	return nil
}
