package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverPrecedenceChain(t *testing.T) {
	userModels := func(kind Kind, name string) (string, bool) {
		if kind == KindCommand && name == "plan" {
			return "user/model", true
		}
		return "", false
	}

	r := NewResolver(userModels, "default")

	// CLI wins over everything.
	assert.Equal(t, "cli/model", r.Resolve(KindCommand, "plan", Overrides{CLI: "cli/model", Project: "project/model", Frontmatter: "fm/model"}))

	// Project wins over user config and frontmatter.
	r.Invalidate()
	assert.Equal(t, "project/model", r.Resolve(KindCommand, "plan", Overrides{Project: "project/model", Frontmatter: "fm/model"}))

	// User config wins over frontmatter.
	r.Invalidate()
	assert.Equal(t, "user/model", r.Resolve(KindCommand, "plan", Overrides{Frontmatter: "fm/model"}))

	// Frontmatter wins over default when no user config entry exists.
	r.Invalidate()
	assert.Equal(t, "fm/model", r.Resolve(KindCommand, "other", Overrides{Frontmatter: "fm/model"}))

	// Default is the last resort.
	r.Invalidate()
	assert.Equal(t, "default", r.Resolve(KindCommand, "other", Overrides{}))
}

func TestResolverCachesResult(t *testing.T) {
	calls := 0
	userModels := func(kind Kind, name string) (string, bool) {
		calls++
		return "user/model", true
	}

	r := NewResolver(userModels, "default")
	r.Resolve(KindAgent, "pr-fixer", Overrides{})
	r.Resolve(KindAgent, "pr-fixer", Overrides{})
	assert.Equal(t, 1, calls)

	r.Invalidate()
	r.Resolve(KindAgent, "pr-fixer", Overrides{})
	assert.Equal(t, 2, calls)
}
