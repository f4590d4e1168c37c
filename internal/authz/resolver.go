package authz

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Resolver computes transitive permission sets over a Graph. Results are
// memoized per role; the cache is unbounded but in practice bounded by the
// number of declared roles. A Resolver owns its cache explicitly: construct
// one at boot and inject it, there is no package-level instance.
type Resolver struct {
	graph *Graph

	mu        sync.RWMutex
	resolved  map[Role]map[Permission]struct{}
	pairCache map[pairKey]bool

	group singleflight.Group

	// traversals counts full graph walks, exposed for tests asserting
	// that repeated resolution hits the cache.
	traversals atomic.Int64
}

type pairKey struct {
	role Role
	perm Permission
}

// NewResolver constructs a Resolver over an immutable graph.
func NewResolver(graph *Graph) *Resolver {
	return &Resolver{
		graph:     graph,
		resolved:  make(map[Role]map[Permission]struct{}),
		pairCache: make(map[pairKey]bool),
	}
}

// Resolve returns the full permission set reachable from role: its direct
// grants unioned with those of every ancestor. Unknown roles resolve to
// the empty set rather than erroring; an ungranted default fails closed.
func (r *Resolver) Resolve(role Role) map[Permission]struct{} {
	r.mu.RLock()
	cached, ok := r.resolved[role]
	r.mu.RUnlock()
	if ok {
		return copyPermissionSet(cached)
	}

	// Concurrent callers for the same role compute once; the graph is
	// immutable so every computation would yield the same set anyway.
	v, _, _ := r.group.Do(string(role), func() (any, error) {
		set := r.traverse(role)
		r.mu.Lock()
		r.resolved[role] = set
		r.mu.Unlock()
		return set, nil
	})
	return copyPermissionSet(v.(map[Permission]struct{}))
}

// Has reports whether role holds perm, directly or by inheritance.
// Memoized per (role, permission) pair.
func (r *Resolver) Has(role Role, perm Permission) bool {
	key := pairKey{role: role, perm: perm}
	r.mu.RLock()
	cached, ok := r.pairCache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}
	_, granted := r.resolveShared(role)[perm]
	r.mu.Lock()
	r.pairCache[key] = granted
	r.mu.Unlock()
	return granted
}

// Traversals returns the number of graph walks performed so far.
func (r *Resolver) Traversals() int64 {
	return r.traversals.Load()
}

// resolveShared returns the cached set without copying. Callers must not
// mutate the result.
func (r *Resolver) resolveShared(role Role) map[Permission]struct{} {
	r.mu.RLock()
	cached, ok := r.resolved[role]
	r.mu.RUnlock()
	if ok {
		return cached
	}
	r.Resolve(role)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved[role]
}

// traverse walks the parent graph breadth-first from role. Iterative by
// design: no call-stack growth on deep hierarchies, and the visited set
// guarantees termination even against a cyclic graph, independent of the
// acyclicity check performed at construction.
func (r *Resolver) traverse(role Role) map[Permission]struct{} {
	r.traversals.Add(1)

	result := make(map[Permission]struct{})
	visited := map[Role]struct{}{role: {}}
	queue := []Role{role}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node, ok := r.graph.nodes[current]
		if !ok {
			continue
		}
		for perm := range node.direct {
			result[perm] = struct{}{}
		}
		for parent := range node.parents {
			if _, seen := visited[parent]; seen {
				continue
			}
			visited[parent] = struct{}{}
			queue = append(queue, parent)
		}
	}
	return result
}

func copyPermissionSet(set map[Permission]struct{}) map[Permission]struct{} {
	out := make(map[Permission]struct{}, len(set))
	for p := range set {
		out[p] = struct{}{}
	}
	return out
}
