package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/khalilhajj/PfeManagement/internal/model"
)

// UserRepository user data access.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.User, error)
	// LockByIDs locks the user rows in ascending ID order so concurrent
	// transactions touching the same users serialize without deadlocking.
	LockByIDs(ctx context.Context, ids []string) ([]model.User, error)
	ListByRole(ctx context.Context, role string) ([]model.User, error)
	List(ctx context.Context, f UserFilter) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	// Delete soft-deletes the account and records who removed it.
	Delete(ctx context.Context, id, deletedBy string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	// DeactivateInactive disables non-administrator accounts created before
	// cutoff that have not logged in since.
	DeactivateInactive(ctx context.Context, cutoff time.Time) (int64, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
}

// UserFilter admin user listing.
type UserFilter struct {
	Role    string
	Active  *bool
	Keyword string
	Offset  int
	Limit   int
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a UserRepository.
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Find(&users).Error
	return users, err
}

func (r *userRepo) LockByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var users []model.User
	if len(sorted) == 0 {
		return users, nil
	}
	err := forUpdate(r.db.WithContext(ctx)).
		Where("user_id IN ?", sorted).
		Order("user_id").
		Find(&users).Error
	return users, err
}

func (r *userRepo) ListByRole(ctx context.Context, role string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Order("last_name, first_name").
		Find(&users).Error
	return users, err
}

func (r *userRepo) List(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})
	if f.Role != "" {
		db = db.Where("role = ?", f.Role)
	}
	if f.Active != nil {
		db = db.Where("is_active = ?", *f.Active)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + kw + "%"
		db = db.Where("(username ILIKE ? OR email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?)", like, like, like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(f.Offset).Limit(f.Limit).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return translate(r.db.WithContext(ctx).Save(user).Error)
}

func (r *userRepo) Delete(ctx context.Context, id, deletedBy string) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}))
}

// TouchLogin leaves updated_at alone; a login is not an edit.
func (r *userRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

func (r *userRepo) DeactivateInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("is_active = ? AND role <> ? AND created_at < ?", true, "administrator", cutoff).
		Where("(last_login_at IS NULL OR last_login_at < ?)", cutoff).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected, res.Error
}

func (r *userRepo) CountByRole(ctx context.Context) (map[string]int64, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("role AS status, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toCountMap(rows), nil
}
