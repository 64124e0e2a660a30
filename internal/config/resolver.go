package config

import "sync"

// Kind distinguishes the unit of work being routed: command, agent, skill,
// or hook, mirroring §4.8's "any unit of work".
type Kind string

const (
	KindCommand Kind = "command"
	KindAgent   Kind = "agent"
	KindSkill   Kind = "skill"
	KindHook    Kind = "hook"
)

// Overrides carries the three caller-supplied rungs of the precedence chain:
// CLI flag and project config (above the user config) and declarative
// frontmatter (below it). Each is an empty string when absent at that rung.
type Overrides struct {
	CLI         string
	Project     string
	Frontmatter string
}

// Resolver implements the five-level config precedence chain from §4.8 and
// §9: CLI override > project config > user config > declarative frontmatter
// > default. It is a pure function of its inputs, cached per (kind, name)
// with explicit invalidation so repeated resolutions for the same unit of
// work avoid recomputation until the backing config changes.
type Resolver struct {
	mu    sync.Mutex
	cache map[cacheKey]string

	userModels func(kind Kind, name string) (string, bool)
	defaultID  string
}

type cacheKey struct {
	kind Kind
	name string
}

// NewResolver builds a Resolver. userModels looks up the per-(kind,name)
// model id configured at the user/project rung (ModelsConfig); defaultID is
// the fallback when no rung supplies a value.
func NewResolver(userModels func(kind Kind, name string) (string, bool), defaultID string) *Resolver {
	return &Resolver{
		cache:      make(map[cacheKey]string),
		userModels: userModels,
		defaultID:  defaultID,
	}
}

// Resolve returns the model identifier for (kind, name) honoring the
// precedence chain: CLI override, then project config, then user config,
// then frontmatter, then default.
func (r *Resolver) Resolve(kind Kind, name string, o Overrides) string {
	key := cacheKey{kind: kind, name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[key]; ok {
		return cached
	}

	id := r.resolveUncached(kind, name, o)
	r.cache[key] = id

	return id
}

func (r *Resolver) resolveUncached(kind Kind, name string, o Overrides) string {
	if o.CLI != "" {
		return o.CLI
	}
	if o.Project != "" {
		return o.Project
	}
	if r.userModels != nil {
		if id, ok := r.userModels(kind, name); ok && id != "" {
			return id
		}
	}
	if o.Frontmatter != "" {
		return o.Frontmatter
	}

	return r.defaultID
}

// Invalidate clears the resolution cache, called whenever the backing
// config file changes on disk.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[cacheKey]string)
}
