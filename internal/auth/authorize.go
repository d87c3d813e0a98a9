package auth

import "fmt"

// Engine makes authorization decisions against a PermissionModel.
type Engine struct {
	model *PermissionModel
}

// NewEngine returns an engine backed by model.
func NewEngine(model *PermissionModel) *Engine {
	return &Engine{model: model}
}

// Model returns the permission model the engine decides against.
func (e *Engine) Model() *PermissionModel {
	return e.model
}

// Authorize returns the first role in claims whose own operations cover
// required. Roles are never unioned: if no single role qualifies the call
// fails with ErrForbidden, even when the roles together would cover required.
// Unknown roles never qualify.
func (e *Engine) Authorize(claims Claims, required OperationSet) (Role, error) {
	for _, role := range claims.Roles {
		if e.model.grants(role, required) {
			return role, nil
		}
	}
	return "", ErrForbidden
}

// AuthorizeGrant decides whether the caller may create an identity holding
// roles. The required set is RootTier plus every operation the new roles
// carry, checked with the same single-role rule as Authorize, so a caller can
// neither create identities below the root tier nor hand out operations its
// authorizing role does not hold.
func (e *Engine) AuthorizeGrant(claims Claims, roles []Role) error {
	if len(roles) == 0 {
		return fmt.Errorf("%w: at least one role is required", ErrInvalidGrant)
	}

	required := RootTier()
	for _, role := range roles {
		ops, ok := e.model.roles[role]
		if !ok {
			return fmt.Errorf("%w: unknown role %q", ErrInvalidGrant, role)
		}
		for op := range ops {
			required[op] = struct{}{}
		}
	}

	_, err := e.Authorize(claims, required)
	return err
}
