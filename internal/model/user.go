package model

import "time"

// User is the subset of the `users` table this service reads.  Accounts
// are managed elsewhere; the dispatcher only needs the address that
// tickets are delivered to, and the router only needs the role name that
// is also carried in the operator's JWT.
//
// Fields:
//  ID        – primary key identifier of the user.
//  Email     – delivery address for issued tickets.
//  Role      – CUSTOMER, STAFF or ADMIN.
//  IsActive  – whether the account is active.
//  CreatedAt – timestamp of creation.
type User struct {
	ID        uint64    // users.id
	Email     string    // users.email
	Role      string    // users.role
	IsActive  bool      // users.is_active
	CreatedAt time.Time // users.created_at
}

// Roles recognised by the role middleware.
const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
	RoleAdmin    = "ADMIN"
)
