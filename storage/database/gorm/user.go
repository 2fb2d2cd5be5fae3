package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type userRepository struct {
	db *gorm.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *gorm.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := repo.db.WithContext(ctx).Model(&userRow{}).Where("email = ?", email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where("id NOT IN ?", ids)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return errors.Wrap(err, "counting users")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := boilUser(usr)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return unboilUser(row), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := repo.db.WithContext(ctx).Model(&userRow{})
	if filter != nil {
		if filter.Search != "" {
			q = q.Where("name ILIKE ? OR email ILIKE ?", likePattern(filter.Search), likePattern(filter.Search))
		}
		if len(filter.Roles) > 0 {
			q = q.Where("role IN ?", filter.Roles)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
	}
	q = applyOrdering(q, ordering, user.OrderingFields,
		core.DBOrdering{Field: "created_at"},
		core.DBOrdering{Field: "id", Ascending: true},
	)

	var rows []userRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, unboilUser(row))
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !validID(id) {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := repo.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return user.User{}, trapNotFound(err, user.ErrNotFound)
	}
	return unboilUser(row), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.WithContext(ctx).First(&row, "email = ?", email).Error; err != nil {
		return user.User{}, trapNotFound(err, user.ErrNotFound)
	}
	return unboilUser(row), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	row := boilUser(usr)
	res := repo.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", usr.ID).Select("*").Omit("id", "created_at").Updates(&row)
	if res.Error != nil {
		return user.User{}, errors.Wrap(res.Error, "updating user")
	}
	if res.RowsAffected == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	err := repo.db.WithContext(ctx).Where("id IN ?", ids).Delete(&userRow{}).Error
	return errors.Wrap(err, "deleting users")
}
