package student_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/tests"
)

var ctx = context.Background()

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "")

	tests := []struct {
		name string
		ns   student.NewStudent
		want []core.FieldError
	}{
		{
			name: "required fields",
			ns:   student.NewStudent{},
			want: []core.FieldError{
				{Field: "name", Error: "this field is required"},
				{Field: "roll_no", Error: "this field is required"},
				{Field: "class_name", Error: "this field is required"},
			},
		},
		{
			name: "invalid guardian email",
			ns:   student.NewStudent{Name: "Baraka", RollNo: "R-002", ClassName: "Form 1", GuardianEmail: "lol"},
			want: []core.FieldError{{Field: "guardian_email", Error: "guardian_email must be a valid email address"}},
		},
		{
			name: "too long",
			ns:   student.NewStudent{Name: strings.Repeat("a", 151), RollNo: "R-002", ClassName: strings.Repeat("F", 51)},
			want: []core.FieldError{
				{Field: "name", Error: "name must be a maximum of 150 characters in length"},
				{Field: "class_name", Error: "class_name must be a maximum of 50 characters in length"},
			},
		},
		{
			name: "roll number taken",
			ns:   student.NewStudent{Name: "Baraka", RollNo: " R-001 ", ClassName: "Form 1"},
			want: []core.FieldError{{Field: "roll_no", Error: student.ErrRollNoExists.Error()}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.StudentSvc.Create(ctx, tt.ns)
			vErr, ok := err.(*core.ValidationError)
			require.True(t, ok, "want a validation error; got %v", err)
			assert.Equal(t, tt.want, vErr.Fields)
		})
	}

	t.Run("created", func(t *testing.T) {
		std, err := env.StudentSvc.Create(ctx, student.NewStudent{
			Name: " Baraka ", RollNo: "R-002", ClassName: "Form 2", GuardianEmail: " Mama.Baraka@Mail.test",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, std.ID)
		assert.Equal(t, "Baraka", std.Name)
		require.NotNil(t, std.GuardianEmail)
		assert.Equal(t, "mama.baraka@mail.test", *std.GuardianEmail)

		got, err := env.StudentSvc.GetByID(ctx, std.ID)
		require.NoError(t, err)
		assert.Equal(t, std, got)
	})

	t.Run("no guardian", func(t *testing.T) {
		std, err := env.StudentSvc.Create(ctx, student.NewStudent{Name: "Chausiku", RollNo: "R-003", ClassName: "Form 2"})
		require.NoError(t, err)
		assert.Nil(t, std.GuardianEmail)
	})
}

func TestService_Query(t *testing.T) {
	env := testutil.NewEnv(t)
	now := time.Now().UTC()
	zawadi := testutil.CreateStudent(t, env.StudentRepo, "zawadi", "R-010", "Form 2", "", now.Add(-3*time.Hour))
	amani := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-011", "Form 1", "", now.Add(-2*time.Hour))
	baraka := testutil.CreateStudent(t, env.StudentRepo, "Baraka", "R-020", "Form 1", "", now.Add(-time.Hour))

	ids := func(stds []student.Student) []string {
		out := make([]string, 0, len(stds))
		for _, s := range stds {
			out = append(out, s.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		filter   *student.QueryFilter
		ordering string
		want     []string
	}{
		{name: "default ordering is by name", want: []string{amani.ID, baraka.ID, zawadi.ID}},
		{name: "newest first", ordering: "-created_at", want: []string{baraka.ID, amani.ID, zawadi.ID}},
		{name: "unknown ordering ignored", ordering: "lol", want: []string{amani.ID, baraka.ID, zawadi.ID}},
		{name: "by class then roll number", ordering: "-class_name,roll_no", want: []string{zawadi.ID, amani.ID, baraka.ID}},
		{name: "search by roll number", filter: &student.QueryFilter{Search: "r-01"}, want: []string{amani.ID, zawadi.ID}},
		{name: "search by name", filter: &student.QueryFilter{Search: " BAR "}, want: []string{baraka.ID}},
		{name: "class", filter: &student.QueryFilter{ClassName: "Form 1"}, want: []string{amani.ID, baraka.ID}},
		{name: "no match", filter: &student.QueryFilter{ClassName: "Form 1", Search: "zawadi"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stds, err := env.StudentSvc.Query(ctx, tt.filter, core.ParseOrdering(tt.ordering, student.OrderingFields...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(stds))
		})
	}

	count, err := env.StudentSvc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = env.StudentSvc.GetByID(ctx, "lol")
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
}
