package services

import (
	"github.com/crewdeck/crewdeck/internal/auth"
)

// Actor is the caller identity every scoped operation runs under. Services
// trust the verified token claims it is built from and filter all tenant
// queries by the actor's company.
type Actor struct {
	UserID       string
	Email        string
	IsAdmin      bool
	IsSuperAdmin bool
	CompanyID    *string
}

// ActorFromClaims builds an Actor from verified access token claims.
func ActorFromClaims(claims *auth.Claims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{
		UserID:       claims.UserID,
		Email:        claims.Email,
		IsAdmin:      claims.IsAdmin,
		IsSuperAdmin: claims.IsSuperAdmin,
		CompanyID:    claims.CompanyID,
	}
}

// CanAccessCompany reports whether the actor may touch resources belonging
// to the given company. Super admins cross tenant boundaries; everyone else
// stays inside their own company.
func (a Actor) CanAccessCompany(companyID string) bool {
	if a.IsSuperAdmin {
		return true
	}
	return a.CompanyID != nil && *a.CompanyID == companyID
}

// ManagesCompany reports whether the actor administers the given company.
func (a Actor) ManagesCompany(companyID string) bool {
	if a.IsSuperAdmin {
		return true
	}
	return a.IsAdmin && a.CompanyID != nil && *a.CompanyID == companyID
}
