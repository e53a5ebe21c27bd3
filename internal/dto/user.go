package dto

// ── Users ──

// CreateUserRequest admin user creation.
type CreateUserRequest struct {
	Username  string `json:"username"   binding:"required,min=3,max=150"`
	Email     string `json:"email"      binding:"required,email"`
	Password  string `json:"password"   binding:"required,min=8,max=72"`
	FirstName string `json:"first_name" binding:"omitempty,max=100"`
	LastName  string `json:"last_name"  binding:"omitempty,max=100"`
	Phone     string `json:"phone"      binding:"omitempty,max=30"`
	Role      string `json:"role"       binding:"required,oneof=student teacher administrator company"`
}

// UserResponse public user information.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

// UserDetailResponse GET /auth/me and the admin user listing.
type UserDetailResponse struct {
	UserResponse
	Phone       string `json:"phone,omitempty"`
	IsActive    bool   `json:"is_active"`
	LastLoginAt string `json:"last_login_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// UserListRequest admin listing filters.
type UserListRequest struct {
	PaginationRequest
	Role     string `form:"role"      binding:"omitempty,oneof=student teacher administrator company"`
	IsActive *bool  `form:"is_active"`
	Keyword  string `form:"keyword"   binding:"omitempty,max=100"`
}

// UpdateUserRequest partial update; nil fields are left unchanged. Role and
// IsActive are reserved to administrators.
type UpdateUserRequest struct {
	Email     *string `json:"email"      binding:"omitempty,email"`
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name"  binding:"omitempty,max=100"`
	Phone     *string `json:"phone"      binding:"omitempty,max=30"`
	Role      *string `json:"role"       binding:"omitempty,oneof=student teacher administrator company"`
	IsActive  *bool   `json:"is_active"`
}

// ResetPasswordResponse carries the temporary password exactly once.
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password"`
}

// ImportUserResponse bulk import outcome.
type ImportUserResponse struct {
	Total    int               `json:"total"`
	Success  int               `json:"success"`
	Failed   int               `json:"failed"`
	Accounts []ImportedAccount `json:"accounts,omitempty"`
	Errors   []ImportUserError `json:"errors,omitempty"`
}

// ImportedAccount one created account with its temporary password.
type ImportedAccount struct {
	Row          int    `json:"row"`
	ID           string `json:"id"`
	Username     string `json:"username"`
	TempPassword string `json:"temp_password"`
}

// ImportUserError why a row was skipped.
type ImportUserError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
