package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/casbin/casbin/v2/util"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

const actionApprove = "approve"

// CasbinAuthorizer checks that an approver holds the claimed role in the
// organization and that the role may approve the operation type.
// Role bindings with domain "*" apply to every organization.
type CasbinAuthorizer struct {
	enforcer *casbin.Enforcer
}

var _ portssvc.ApproverAuthorizer = (*CasbinAuthorizer)(nil)

// NewCasbinAuthorizer loads the model and the policy file.
func NewCasbinAuthorizer(modelPath, policyPath string) (*CasbinAuthorizer, error) {
	enforcer, err := casbin.NewEnforcer(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load authz model: %w", err)
	}
	enforcer.SetAdapter(fileadapter.NewAdapter(policyPath))
	enforcer.AddNamedDomainMatchingFunc("g", "KeyMatch", util.KeyMatch)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load authz policy: %w", err)
	}
	return &CasbinAuthorizer{enforcer: enforcer}, nil
}

// CanApprove reports whether approverID may act on op requests of organizationID as role.
func (a *CasbinAuthorizer) CanApprove(_ context.Context, organizationID, approverID, role string, op domain.OperationType) (bool, error) {
	if approverID == "" || role == "" {
		return false, nil
	}
	ok, err := a.enforcer.Enforce(subjectForUser(approverID), subjectForRole(role), organizationID, string(op), actionApprove)
	if err != nil {
		return false, fmt.Errorf("authz enforce failed: %w", err)
	}
	return ok, nil
}

func subjectForUser(id string) string {
	return "user:" + strings.TrimSpace(id)
}

func subjectForRole(role string) string {
	return "role:" + strings.ToLower(strings.TrimSpace(role))
}
