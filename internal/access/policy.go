// Package access maps portal users to the approver label that gates which
// documents they may see.
package access

import (
	"fmt"

	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/model"
)

// Role names known to the portal.
const (
	RoleGradeCreator  = "grade_creator"
	RoleGradeApprover = "grade_approver"
)

// DefaultLabels is the role -> approver label table. Labels are matched
// verbatim against approver_name1..4, so spelling follows the stored data.
var DefaultLabels = map[string]string{
	RoleGradeCreator:  "Grade Creator",
	RoleGradeApprover: "Grade_approver",
}

// Policy derives the authorization predicate input for a user.
type Policy struct {
	labels map[string]string
}

// NewPolicy builds a policy from a role -> label table. A nil table means DefaultLabels.
func NewPolicy(labels map[string]string) *Policy {
	if labels == nil {
		labels = DefaultLabels
	}
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	return &Policy{labels: cp}
}

// LabelFor returns the approver label for username.
func (p *Policy) LabelFor(username string) (string, error) {
	if l, ok := p.labels[username]; ok && l != "" {
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", errs.ErrUnauthorizedRole, username)
}

// LabelForUser prefers a label stored on the credential record and falls back to the table.
func (p *Policy) LabelForUser(u *model.User) (string, error) {
	if u != nil && u.AccessLabel != "" {
		return u.AccessLabel, nil
	}
	if u == nil {
		return "", errs.ErrUnauthorizedRole
	}
	return p.LabelFor(u.Username)
}
