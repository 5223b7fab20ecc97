// Package registry holds the immutable {AlgorithmID -> Executor} map built
// at startup (spec.md §4.4). Executors are opaque scorers; this package
// never reverses-engineer any particular algorithm's internal scoring —
// that is explicitly out of spec.md's scope.
package registry

import (
	"context"
	"fmt"

	"github.com/bapt252/supersmartmatch/adapter"
	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/types"
)

// Executor is the uniform capability every algorithm exposes: one
// blocking operation over adapted payloads, returning native results.
type Executor interface {
	// Execute scores candidatePayload against offersPayload under config.
	// Implementations are assumed potentially blocking; callers enforce
	// the call timeout via context cancellation.
	Execute(ctx context.Context, candidatePayload, offersPayload interface{}, config map[string]interface{}) ([]adapter.NativeResult, error)
	// Name returns the executor's algorithm id, for logging.
	Name() types.AlgorithmID
}

// Registry is an immutable map from algorithm id to its executor, built
// once at startup.
type Registry struct {
	executors map[types.AlgorithmID]Executor
}

// New builds a Registry from the supplied executors. Any of the five known
// algorithm ids not present in executors is backed by the sentinel
// unavailable executor, so circuit-breaker and fallback logic can still
// progress (spec.md §4.4).
func New(executors map[types.AlgorithmID]Executor) *Registry {
	all := make(map[types.AlgorithmID]Executor, len(types.AllAlgorithms))
	for _, id := range types.AllAlgorithms {
		if ex, ok := executors[id]; ok && ex != nil {
			all[id] = ex
			continue
		}
		all[id] = &unavailableExecutor{id: id}
	}
	return &Registry{executors: all}
}

// Lookup returns the executor registered for id.
func (r *Registry) Lookup(id types.AlgorithmID) (Executor, error) {
	ex, ok := r.executors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownAlgorithm, id)
	}
	return ex, nil
}

// unavailableExecutor is the sentinel installed for any algorithm id
// nobody registered a real executor for.
type unavailableExecutor struct {
	id types.AlgorithmID
}

func (u *unavailableExecutor) Execute(ctx context.Context, _, _ interface{}, _ map[string]interface{}) ([]adapter.NativeResult, error) {
	return nil, fmt.Errorf("%w: %s", core.ErrExecutorUnavailable, u.id)
}

func (u *unavailableExecutor) Name() types.AlgorithmID { return u.id }
