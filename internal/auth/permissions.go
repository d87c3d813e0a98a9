package auth

import (
	"slices"
	"sort"
)

// Role is an opaque label granting a bundle of operations.
type Role string

// Known roles. RoleRoot is the only role allowed to create identities.
const (
	RoleUser   Role = "user"
	RoleFinops Role = "finops"
	RoleAdmin  Role = "admin"
	RoleRoot   Role = "root"
)

// Operation is an action that requires authorization.
type Operation string

// Resource operations.
const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpList   Operation = "list"
)

// Identity management operations.
const (
	OpListUsers  Operation = "users:list"
	OpCreateUser Operation = "users:create"
)

// OperationSet is a set of operations.
type OperationSet map[Operation]struct{}

// NewOperationSet builds a set from ops.
func NewOperationSet(ops ...Operation) OperationSet {
	set := make(OperationSet, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return set
}

// Contains reports whether op is in the set.
func (s OperationSet) Contains(op Operation) bool {
	_, ok := s[op]
	return ok
}

// ContainsAll reports whether s is a superset of other.
func (s OperationSet) ContainsAll(other OperationSet) bool {
	for op := range other {
		if _, ok := s[op]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (s OperationSet) Clone() OperationSet {
	out := make(OperationSet, len(s))
	for op := range s {
		out[op] = struct{}{}
	}
	return out
}

// Sorted returns the operations in lexical order.
func (s OperationSet) Sorted() []Operation {
	ops := make([]Operation, 0, len(s))
	for op := range s {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// AdminTier is the required set for reading identities.
func AdminTier() OperationSet {
	return NewOperationSet(OpListUsers)
}

// RootTier is the required set for creating identities. It is a strict
// superset of AdminTier, so an admin token never passes it.
func RootTier() OperationSet {
	return NewOperationSet(OpListUsers, OpCreateUser)
}

// DefaultPermissions is the role table the server runs with.
func DefaultPermissions() map[Role][]Operation {
	return map[Role][]Operation{
		RoleUser:   {OpCreate, OpRead},
		RoleFinops: {OpRead, OpUpdate, OpDelete, OpList},
		RoleAdmin:  {OpCreate, OpRead, OpUpdate, OpDelete, OpList, OpListUsers},
		RoleRoot:   {OpCreate, OpRead, OpUpdate, OpDelete, OpList, OpListUsers, OpCreateUser},
	}
}

// PermissionModel maps roles to the operations they may perform. It has no
// mutators; the table is fixed when the model is built.
type PermissionModel struct {
	roles map[Role]OperationSet
}

// NewPermissionModel copies table into a new model.
func NewPermissionModel(table map[Role][]Operation) *PermissionModel {
	roles := make(map[Role]OperationSet, len(table))
	for role, ops := range table {
		roles[role] = NewOperationSet(ops...)
	}
	return &PermissionModel{roles: roles}
}

// DefaultPermissionModel returns a model built from DefaultPermissions.
func DefaultPermissionModel() *PermissionModel {
	return NewPermissionModel(DefaultPermissions())
}

// AllowedOperations returns a copy of the operations granted to role. Unknown
// roles get an empty set.
func (m *PermissionModel) AllowedOperations(role Role) OperationSet {
	ops, ok := m.roles[role]
	if !ok {
		return OperationSet{}
	}
	return ops.Clone()
}

// Known reports whether role is present in the table.
func (m *PermissionModel) Known(role Role) bool {
	_, ok := m.roles[role]
	return ok
}

// Roles returns every known role in lexical order.
func (m *PermissionModel) Roles() []Role {
	roles := make([]Role, 0, len(m.roles))
	for role := range m.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

func (m *PermissionModel) grants(role Role, required OperationSet) bool {
	ops, ok := m.roles[role]
	if !ok {
		return false
	}
	return ops.ContainsAll(required)
}
