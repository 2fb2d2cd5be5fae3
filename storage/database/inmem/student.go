package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckRollNoUniqueness(_ context.Context, rollNo string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, std := range repo.db.students {
		if std.RollNo == rollNo {
			return student.ErrRollNoExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, std student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.students[std.ID] = std
	return std, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if std, ok := repo.db.students[id]; ok {
		return std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0, len(repo.db.students))
	for _, std := range repo.db.students {
		if filter != nil {
			if filter.Search != "" && !(containsFold(std.Name, filter.Search) || containsFold(std.RollNo, filter.Search)) {
				continue
			}
			if filter.ClassName != "" && std.ClassName != filter.ClassName {
				continue
			}
		}
		students = append(students, std)
	}

	fields := map[string]compareFunc{
		"name":       func(i, j int) int { return compareStrings(students[i].Name, students[j].Name) },
		"roll_no":    func(i, j int) int { return compareStrings(students[i].RollNo, students[j].RollNo) },
		"class_name": func(i, j int) int { return compareStrings(students[i].ClassName, students[j].ClassName) },
		"created_at": func(i, j int) int { return compareTimes(students[i].CreatedAt, students[j].CreatedAt) },
		"id":         func(i, j int) int { return compareStrings(students[i].ID, students[j].ID) },
	}
	sort.SliceStable(students, lessFunc(ordering, fields,
		core.DBOrdering{Field: "name", Ascending: true},
		core.DBOrdering{Field: "id", Ascending: true},
	))
	return students, nil
}

func (repo *studentRepository) CountStudents(_ context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.students), nil
}
