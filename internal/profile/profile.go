// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

/*
Package profile models the backend-persisted application user record and the
REST client that reads and writes it.

The backend is the source of truth for everything in here. The client holds
read-only cached copies; mutations go through the documented registration and
patch calls, never by writing fields locally.
*/
package profile

import "time"

// # Roles

// Role is the application-level authorization for a user. It gates which
// dashboard variant the user is routed to.
type Role string

const (
	// RoleHR administers a company: employees, assets, package limits.
	RoleHR Role = "hr"

	// RoleEmployee requests and holds assets within an affiliated company.
	RoleEmployee Role = "employee"
)

// Valid reports whether the role is one of the two recognized values.
// An empty role is not valid; it means "not yet assigned".
func (r Role) Valid() bool {
	return r == RoleHR || r == RoleEmployee
}

// # Domain Entities

// Profile is the backend record for a principal, keyed by email.
//
// Role-specific fields: CompanyName/CompanyLogo/PackageLimit/
// CurrentEmployees/Subscription apply to HR profiles; CompanyID and
// CompanyName (as affiliation) apply to employees. An employee's affiliation
// may be empty until their first asset request is approved.
type Profile struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         Role   `json:"role,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`

	// HR fields
	CompanyName      string `json:"company_name,omitempty"`
	CompanyLogo      string `json:"company_logo,omitempty"`
	PackageLimit     int    `json:"package_limit,omitempty"`
	CurrentEmployees int    `json:"current_employees,omitempty"`
	Subscription     string `json:"subscription,omitempty"`

	// Employee affiliation
	CompanyID string `json:"company_id,omitempty"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Patch is a partial profile update. Nil fields are left untouched by the
// backend; use pkg/pointer to build non-nil entries.
type Patch struct {
	Name             *string `json:"name,omitempty"`
	ProfileImage     *string `json:"profile_image,omitempty"`
	DateOfBirth      *string `json:"date_of_birth,omitempty"`
	CompanyName      *string `json:"company_name,omitempty"`
	CompanyLogo      *string `json:"company_logo,omitempty"`
	PackageLimit     *int    `json:"package_limit,omitempty"`
	CurrentEmployees *int    `json:"current_employees,omitempty"`
	Subscription     *string `json:"subscription,omitempty"`
	CompanyID        *string `json:"company_id,omitempty"`
}
