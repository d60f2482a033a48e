package model

import "time"

// User is a login account stored in the `users` table.  Accounts are either
// plain staff accounts or linked to a personnel record (PersonnelID set), in
// which case the member logs in with their own credentials.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password.
//  Role         – admin, wehrfuehrer, gruppenfuehrer or mitglied.
//  PersonnelID  – linked personnel record, nil for staff-only accounts.
//  IsActive     – whether the account may log in.
//  LastLogin    – last successful login.
type User struct {
	ID           uint64     // users.id
	Username     string     // users.username
	PasswordHash string     // users.password_hash
	Role         string     // users.role
	PersonnelID  *uint64    // users.personnel_id (nullable)
	IsActive     bool       // users.is_active
	LastLogin    *time.Time // users.last_login (nullable)
	CreatedAt    time.Time  // users.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token value is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
