// Package auth issues and validates the bearer tokens that gate the ledger
// API. Users are provisioned with a role and, for universities and employers,
// the entity they act for.
package auth

// Roles recognised by the API. Admins manage institutions, universities
// register and revoke degrees, employers request verifications.
const (
	RoleAdmin      = "ADMIN"
	RoleUniversity = "UNIVERSITY"
	RoleEmployer   = "EMPLOYER"
)
