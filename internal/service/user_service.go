package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
)

// UserService account management.
type UserService interface {
	// Create registers an account; used by administrators and cmd/adduser.
	Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	GetByID(ctx context.Context, id string) (*dto.UserResponse, error)
	ListTeachers(ctx context.Context) ([]dto.UserResponse, error)
	List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserDetailResponse, int64, error)
	// Update edits an account. Administrators may edit anyone; other users
	// only their own profile, without touching role or status.
	Update(ctx context.Context, p authz.Principal, id string, req *dto.UpdateUserRequest) (*dto.UserDetailResponse, error)
	Delete(ctx context.Context, p authz.Principal, id string) error
	ResetPassword(ctx context.Context, p authz.Principal, id string) (*dto.ResetPasswordResponse, error)
	ParseImportFile(r io.Reader) ([]ImportUserRow, error)
	ImportUsers(ctx context.Context, p authz.Principal, rows []ImportUserRow) (*dto.ImportUserResponse, error)
	// DeactivateInactive disables accounts without a login for longer than
	// after and returns how many were disabled.
	DeactivateInactive(ctx context.Context, after time.Duration) (int64, error)
}

// ImportUserRow one parsed line of an import workbook.
type ImportUserRow struct {
	Row       int
	Username  string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

type userService struct {
	repo     *repository.Repository
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserService creates a UserService.
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// ────────────────────── Create ──────────────────────

func (s *userService) Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	if !authz.Role(req.Role).Valid() {
		return nil, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("hash password failed", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         req.Role,
		IsActive:     true,
	}

	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		s.logger.Error("create user failed", zap.String("username", user.Username), zap.Error(err))
		return nil, err
	}

	return toUserResponse(user), nil
}

// ────────────────────── Queries ──────────────────────

func (s *userService) GetByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) ListTeachers(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.repo.User.ListByRole(ctx, string(authz.RoleTeacher))
	if err != nil {
		s.logger.Error("list teachers failed", zap.Error(err))
		return nil, err
	}

	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, *toUserResponse(&users[i]))
	}
	return result, nil
}

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserDetailResponse, int64, error) {
	users, total, err := s.repo.User.List(ctx, repository.UserFilter{
		Role:    req.Role,
		Active:  req.IsActive,
		Keyword: req.Keyword,
		Offset:  req.GetOffset(),
		Limit:   req.GetPageSize(),
	})
	if err != nil {
		s.logger.Error("list users failed", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.UserDetailResponse, 0, len(users))
	for i := range users {
		result = append(result, *toUserDetail(&users[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *userService) Update(ctx context.Context, p authz.Principal, id string, req *dto.UpdateUserRequest) (*dto.UserDetailResponse, error) {
	admin := p.Can(authz.UserManage)
	if !admin {
		if !p.Owns(id) || req.Role != nil || req.IsActive != nil {
			return nil, authz.ErrForbidden
		}
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Role != nil && *req.Role != user.Role {
		if !authz.Role(*req.Role).Valid() {
			return nil, ErrInvalidRole
		}
		if p.Owns(id) {
			return nil, ErrUserSelfRoleChange
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil && *req.IsActive != user.IsActive {
		if p.Owns(id) {
			return nil, ErrUserSelfRoleChange
		}
		user.IsActive = *req.IsActive
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		existing, err := s.repo.User.GetByEmail(ctx, email)
		if err == nil && existing.UserID != id {
			return nil, ErrEmailTaken
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("check email failed", zap.Error(err))
			return nil, err
		}
		user.Email = email
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	user.UpdatedBy = &p.UserID

	if err := s.repo.User.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("update user failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toUserDetail(user), nil
}

// ────────────────────── Delete ──────────────────────

func (s *userService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.Require(p, authz.UserManage); err != nil {
		return err
	}
	if p.Owns(id) {
		return ErrUserSelfDelete
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}

	if err := s.repo.User.Delete(ctx, id, p.UserID); err != nil {
		if errors.Is(err, repository.ErrNotMatched) {
			return ErrUserNotFound
		}
		s.logger.Error("delete user failed", zap.String("id", id), zap.Error(err))
		return err
	}
	s.logger.Info("user deleted", zap.String("id", id), zap.String("by", p.UserID))
	return nil
}

// ────────────────────── ResetPassword ──────────────────────

func (s *userService) ResetPassword(ctx context.Context, p authz.Principal, id string) (*dto.ResetPasswordResponse, error) {
	if err := authz.Require(p, authz.UserManage); err != nil {
		return nil, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	tempPassword, hash, err := s.tempCredentials()
	if err != nil {
		return nil, err
	}

	user.PasswordHash = string(hash)
	user.UpdatedBy = &p.UserID
	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("reset password failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return &dto.ResetPasswordResponse{TempPassword: tempPassword}, nil
}

// ────────────────────── Import ──────────────────────

const maxImportRows = 1000

// ParseImportFile reads the first sheet of an xlsx workbook. The header row
// may list the columns in any order; role and phone are optional.
func (s *userService) ParseImportFile(r io.Reader) ([]ImportUserRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ErrImportUnreadable
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	lines, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(lines) < 2 {
		return nil, ErrImportNoData
	}

	col := importColumns(lines[0])
	for _, required := range []string{"username", "email", "first_name", "last_name"} {
		if col[required] < 0 {
			return nil, ErrImportBadHeader
		}
	}

	cell := func(line []string, name string) string {
		if i := col[name]; i >= 0 && i < len(line) {
			return strings.TrimSpace(line[i])
		}
		return ""
	}

	var rows []ImportUserRow
	for i := 1; i < len(lines); i++ {
		row := ImportUserRow{
			Row:       i + 1,
			Username:  cell(lines[i], "username"),
			Email:     cell(lines[i], "email"),
			FirstName: cell(lines[i], "first_name"),
			LastName:  cell(lines[i], "last_name"),
			Phone:     cell(lines[i], "phone"),
			Role:      strings.ToLower(cell(lines[i], "role")),
		}
		if row.Username == "" && row.Email == "" && row.FirstName == "" && row.LastName == "" {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}
	return rows, nil
}

func importColumns(header []string) map[string]int {
	idx := map[string]int{
		"username":   -1,
		"email":      -1,
		"first_name": -1,
		"last_name":  -1,
		"phone":      -1,
		"role":       -1,
	}
	for i, h := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
		if _, ok := idx[key]; ok && idx[key] < 0 {
			idx[key] = i
		}
	}
	return idx
}

// ImportUsers validates every row first, then creates the valid accounts in
// one transaction. A write failure rolls back the whole import.
func (s *userService) ImportUsers(ctx context.Context, p authz.Principal, rows []ImportUserRow) (*dto.ImportUserResponse, error) {
	if err := authz.Require(p, authz.UserManage); err != nil {
		return nil, err
	}

	resp := &dto.ImportUserResponse{Total: len(rows)}
	skip := func(row int, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, dto.ImportUserError{Row: row, Reason: reason})
	}

	type validRow struct {
		user     *model.User
		row      int
		password string
	}
	var valid []validRow
	seenUser := make(map[string]bool, len(rows))
	seenEmail := make(map[string]bool, len(rows))

	for _, row := range rows {
		if row.Role == "" {
			row.Role = string(authz.RoleStudent)
		}
		switch {
		case row.Username == "" || row.Email == "" || row.FirstName == "" || row.LastName == "":
			skip(row.Row, "a required field is empty")
			continue
		case len(row.Username) < 3:
			skip(row.Row, "username must be at least 3 characters")
			continue
		case s.validate.Var(row.Email, "email") != nil:
			skip(row.Row, "invalid email: "+row.Email)
			continue
		case !authz.Role(row.Role).Valid():
			skip(row.Row, "unknown role: "+row.Role)
			continue
		case seenUser[row.Username]:
			skip(row.Row, "username repeated in the file: "+row.Username)
			continue
		case seenEmail[row.Email]:
			skip(row.Row, "email repeated in the file: "+row.Email)
			continue
		}

		taken, err := s.taken(ctx, row)
		if err != nil {
			return nil, err
		}
		if taken != "" {
			skip(row.Row, taken)
			continue
		}

		password, hash, err := s.tempCredentials()
		if err != nil {
			return nil, err
		}
		seenUser[row.Username], seenEmail[row.Email] = true, true

		user := &model.User{
			Username:     row.Username,
			Email:        row.Email,
			FirstName:    row.FirstName,
			LastName:     row.LastName,
			Phone:        row.Phone,
			PasswordHash: string(hash),
			Role:         row.Role,
			IsActive:     true,
		}
		user.CreatedBy = &p.UserID
		valid = append(valid, validRow{user: user, row: row.Row, password: password})
	}

	if len(valid) == 0 {
		return resp, nil
	}

	err := s.repo.Tx.Run(ctx, func(tx *repository.Repository) error {
		for _, v := range valid {
			if err := tx.User.Create(ctx, v.user); err != nil {
				s.logger.Error("import user failed, rolling back", zap.Int("row", v.row), zap.Error(err))
				return fmt.Errorf("row %d: %w", v.row, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, v := range valid {
		resp.Success++
		resp.Accounts = append(resp.Accounts, dto.ImportedAccount{
			Row:          v.row,
			ID:           v.user.UserID,
			Username:     v.user.Username,
			TempPassword: v.password,
		})
	}
	s.logger.Info("users imported", zap.Int("created", resp.Success), zap.Int("skipped", resp.Failed))
	return resp, nil
}

// taken returns a skip reason when the username or email already exists.
func (s *userService) taken(ctx context.Context, row ImportUserRow) (string, error) {
	if _, err := s.repo.User.GetByUsername(ctx, row.Username); err == nil {
		return "username already exists: " + row.Username, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("check username failed", zap.Error(err))
		return "", err
	}
	if _, err := s.repo.User.GetByEmail(ctx, row.Email); err == nil {
		return "email already exists: " + row.Email, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("check email failed", zap.Error(err))
		return "", err
	}
	return "", nil
}

// ────────────────────── Inactive accounts ──────────────────────

func (s *userService) DeactivateInactive(ctx context.Context, after time.Duration) (int64, error) {
	cutoff := s.now().Add(-after)
	n, err := s.repo.User.DeactivateInactive(ctx, cutoff)
	if err != nil {
		s.logger.Error("deactivate inactive users failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("inactive users deactivated", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// ── Helpers ──

func (s *userService) load(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("load user failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *userService) tempCredentials() (string, []byte, error) {
	password, err := generateTempPassword(12)
	if err != nil {
		s.logger.Error("generate temporary password failed", zap.Error(err))
		return "", nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("hash password failed", zap.Error(err))
		return "", nil, err
	}
	return password, hash, nil
}

// generateTempPassword returns a random password with at least one letter and
// one digit. Look-alike characters are left out.
func generateTempPassword(length int) (string, error) {
	const letters = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	const digits = "23456789"
	const all = letters + digits

	if length < 8 {
		length = 8
	}

	pick := func(set string) (byte, error) {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
		if err != nil {
			return 0, err
		}
		return set[n.Int64()], nil
	}

	out := make([]byte, length)
	var err error
	if out[0], err = pick(letters); err != nil {
		return "", err
	}
	if out[1], err = pick(digits); err != nil {
		return "", err
	}
	for i := 2; i < length; i++ {
		if out[i], err = pick(all); err != nil {
			return "", err
		}
	}

	for i := length - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}
