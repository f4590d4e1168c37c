package authz

import (
	"errors"
	"fmt"
)

// ErrCyclicGraph indicates the parent relation of a role graph contains a
// cycle. Raised by NewGraph at construction, never at query time.
var ErrCyclicGraph = errors.New("authz: role graph contains a cycle")

// GrantConfig declares one role's direct grants and the roles it inherits
// from. Supplied as static configuration at process start.
type GrantConfig struct {
	Permissions []Permission
	Parents     []Role
}

// GraphConfig is the full role table keyed by role.
type GraphConfig map[Role]GrantConfig

type graphNode struct {
	direct  map[Permission]struct{}
	parents map[Role]struct{}
}

// Graph is the immutable role inheritance structure. Constructed once at
// boot via NewGraph and never mutated afterwards; safe for concurrent use
// without locking.
type Graph struct {
	nodes map[Role]graphNode
}

// NewGraph validates and builds a Graph. Construction fails if a config
// entry references an undeclared role or permission, if a parent is not
// itself present in the config, or if the parent relation is cyclic.
func NewGraph(cfg GraphConfig) (*Graph, error) {
	nodes := make(map[Role]graphNode, len(cfg))
	for role, grant := range cfg {
		if _, ok := allRoles[role]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		node := graphNode{
			direct:  make(map[Permission]struct{}, len(grant.Permissions)),
			parents: make(map[Role]struct{}, len(grant.Parents)),
		}
		for _, perm := range grant.Permissions {
			if _, ok := allPermissions[perm]; !ok {
				return nil, fmt.Errorf("%w: %q granted to role %q", ErrUnknownPermission, perm, role)
			}
			node.direct[perm] = struct{}{}
		}
		for _, parent := range grant.Parents {
			if _, ok := allRoles[parent]; !ok {
				return nil, fmt.Errorf("%w: %q listed as parent of %q", ErrUnknownRole, parent, role)
			}
			node.parents[parent] = struct{}{}
		}
		nodes[role] = node
	}
	for role, node := range nodes {
		for parent := range node.parents {
			if _, ok := nodes[parent]; !ok {
				return nil, fmt.Errorf("authz: role %q inherits from %q which has no graph entry", role, parent)
			}
		}
	}
	g := &Graph{nodes: nodes}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// MustGraph is NewGraph for static tables known to be valid; panics on error.
func MustGraph(cfg GraphConfig) *Graph {
	g, err := NewGraph(cfg)
	if err != nil {
		panic(err)
	}
	return g
}

// DirectPermissions returns the role's own grants, excluding anything
// inherited. Roles without grants (or unknown roles) yield an empty set.
func (g *Graph) DirectPermissions(role Role) map[Permission]struct{} {
	node, ok := g.nodes[role]
	if !ok {
		return map[Permission]struct{}{}
	}
	out := make(map[Permission]struct{}, len(node.direct))
	for p := range node.direct {
		out[p] = struct{}{}
	}
	return out
}

// Parents returns the role's immediate parents. Empty for roots and for
// roles absent from the graph.
func (g *Graph) Parents(role Role) []Role {
	node, ok := g.nodes[role]
	if !ok {
		return nil
	}
	parents := make([]Role, 0, len(node.parents))
	for p := range node.parents {
		parents = append(parents, p)
	}
	return parents
}

// Contains reports whether the role has a graph entry.
func (g *Graph) Contains(role Role) bool {
	_, ok := g.nodes[role]
	return ok
}

// checkAcyclic runs a three-color depth-first search over the parent
// relation. A back edge to an in-progress node is a cycle.
func (g *Graph) checkAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[Role]int, len(g.nodes))
	var visit func(Role) error
	visit = func(role Role) error {
		color[role] = gray
		for parent := range g.nodes[role].parents {
			switch color[parent] {
			case gray:
				return fmt.Errorf("%w: %q -> %q", ErrCyclicGraph, role, parent)
			case white:
				if err := visit(parent); err != nil {
					return err
				}
			}
		}
		color[role] = black
		return nil
	}
	for role := range g.nodes {
		if color[role] == white {
			if err := visit(role); err != nil {
				return err
			}
		}
	}
	return nil
}

// DefaultGraph returns the production role table: a single inheritance
// chain guest -> user -> moderator -> admin -> superadmin, each tier
// adding its own grants on top of everything below it.
func DefaultGraph() *Graph {
	return MustGraph(GraphConfig{
		RoleGuest: {},
		RoleUser: {
			Permissions: []Permission{PermPostsCreate, PermPostsEdit, PermCommentsCreate},
			Parents:     []Role{RoleGuest},
		},
		RoleModerator: {
			Permissions: []Permission{PermPostsDelete, PermCommentsDelete, PermContentManage},
			Parents:     []Role{RoleUser},
		},
		RoleAdmin: {
			Permissions: []Permission{PermUsersManage},
			Parents:     []Role{RoleModerator},
		},
		RoleSuperAdmin: {
			Permissions: []Permission{PermSystemManage},
			Parents:     []Role{RoleAdmin},
		},
	})
}
