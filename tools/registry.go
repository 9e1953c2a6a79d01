package tools

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/aschepis/agentloop/llm"
)

// Registry maps tool names to Functions and raw tool descriptors. All
// registration shapes land in the same namespace; resolution is by exact
// name only.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]*Function
	specs     map[string]llm.ToolSpec
	logger    zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		functions: make(map[string]*Function),
		specs:     make(map[string]llm.ToolSpec),
		logger:    logger.With().Str("component", "tool_registry").Logger(),
	}
}

// Register adds a Function. Registration is idempotent: a name that already
// exists is left untouched, so re-registering a shared toolkit is safe. Use
// Replace to overwrite deliberately.
func (r *Registry) Register(f *Function) {
	if f == nil || f.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[f.Name]; exists {
		r.logger.Debug().Str("name", f.Name).Msg("function already registered, skipping")
		return
	}
	r.logger.Debug().Str("name", f.Name).Msg("registering function")
	r.functions[f.Name] = f
	delete(r.specs, f.Name)
}

// RegisterFunc wraps a bare entrypoint in a Function and registers it.
// Sanitization defaults on for this shape.
func (r *Registry) RegisterFunc(name, description string, params llm.ToolSchema, fn Entrypoint) {
	r.Register(&Function{
		Name:              name,
		Description:       description,
		Parameters:        params,
		SanitizeArguments: true,
		Entrypoint:        fn,
	})
}

// Replace installs a Function, overwriting any existing registration.
func (r *Registry) Replace(f *Function) {
	if f == nil || f.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[f.Name]; exists {
		r.logger.Info().Str("name", f.Name).Msg("replacing registered function")
	}
	r.functions[f.Name] = f
	delete(r.specs, f.Name)
}

// RegisterToolkit registers every function in a toolkit.
func (r *Registry) RegisterToolkit(tk Toolkit) {
	r.logger.Info().Str("toolkit", tk.Name()).Msg("registering toolkit")
	for _, f := range tk.Functions() {
		r.Register(f)
	}
}

// RegisterSpec registers a raw tool descriptor with no local entrypoint. The
// model sees the tool; a call to it resolves to nothing and is reported back
// to the model as unresolvable.
func (r *Registry) RegisterSpec(spec llm.ToolSpec) {
	if spec.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[spec.Name]; exists {
		return
	}
	if _, exists := r.specs[spec.Name]; exists {
		return
	}
	r.logger.Debug().Str("name", spec.Name).Msg("registering raw tool descriptor")
	r.specs[spec.Name] = spec
}

// Resolve looks up an executable Function by exact name.
func (r *Registry) Resolve(name string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.functions[name]
	return f, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append(lo.Keys(r.functions), lo.Keys(r.specs)...)
	sort.Strings(names)
	return names
}

// Specs returns provider-facing definitions for every registered tool,
// sorted by name for a stable request shape.
func (r *Registry) Specs() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]llm.ToolSpec, 0, len(r.functions)+len(r.specs))
	for _, f := range r.functions {
		specs = append(specs, f.Spec())
	}
	for _, s := range r.specs {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
