package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

type studentRepository struct {
	db *gorm.DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *gorm.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckRollNoUniqueness(ctx context.Context, rollNo string) error {
	var count int64
	if err := repo.db.WithContext(ctx).Model(&studentRow{}).Where("roll_no = ?", rollNo).Count(&count).Error; err != nil {
		return errors.Wrap(err, "counting students")
	}
	if count > 0 {
		return student.ErrRollNoExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	row := boilStudent(std)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return unboilStudent(row), nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	if !validID(id) {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	if err := repo.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return student.Student{}, trapNotFound(err, student.ErrNotFound)
	}
	return unboilStudent(row), nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	q := repo.db.WithContext(ctx).Model(&studentRow{})
	if filter != nil {
		if filter.Search != "" {
			q = q.Where("name ILIKE ? OR roll_no ILIKE ?", likePattern(filter.Search), likePattern(filter.Search))
		}
		if filter.ClassName != "" {
			q = q.Where("class_name = ?", filter.ClassName)
		}
	}
	q = applyOrdering(q, ordering, student.OrderingFields,
		core.DBOrdering{Field: "name", Ascending: true},
		core.DBOrdering{Field: "id", Ascending: true},
	)

	var rows []studentRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, unboilStudent(row))
	}
	return students, nil
}

func (repo *studentRepository) CountStudents(ctx context.Context) (int, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&studentRow{}).Count(&count).Error
	return int(count), errors.Wrap(err, "counting students")
}
