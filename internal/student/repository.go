package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"student-records/internal/db"
	"student-records/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	List(ctx context.Context) ([]Student, error)
	GetByID(ctx context.Context, id int64) (*Student, error)
	Create(ctx context.Context, student *Student) (*Student, error)
	Update(ctx context.Context, id int64, student *Student) (*Student, error)
	Delete(ctx context.Context, id int64) (*Student, error)
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) List(ctx context.Context) ([]Student, error) {
	start := time.Now()
	students := make([]Student, 0)
	err := r.db.NewSelect().
		Model(&students).
		OrderExpr("s.created_at DESC, s.id DESC").
		Scan(ctx)

	r.recordQuery(ctx, "select", start, err)

	if err != nil {
		return nil, &Error{Kind: Failure, Op: "fetching students", Err: err}
	}
	return students, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Student, error) {
	const op = "fetching student"

	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().Model(student).Where("s.id = ?", id).Scan(ctx)

	r.recordQuery(ctx, "select", start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &Error{Kind: NotFound, Op: op, Err: err}
		}
		return nil, &Error{Kind: Failure, Op: op, Err: err}
	}
	return student, nil
}

func (r *repository) Create(ctx context.Context, student *Student) (*Student, error) {
	const op = "creating student"

	start := time.Now()
	created := &Student{
		FirstName:   student.FirstName,
		LastName:    student.LastName,
		Email:       student.Email,
		Phone:       student.Phone,
		DateOfBirth: student.DateOfBirth,
		Address:     student.Address,
	}
	_, err := r.db.NewInsert().
		Model(created).
		Column(writableColumns...).
		Returning("*").
		Exec(ctx)

	r.recordQuery(ctx, "insert", start, err)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, &Error{Kind: DuplicateEmail, Op: op, Err: err}
		}
		return nil, &Error{Kind: Failure, Op: op, Err: err}
	}
	return created, nil
}

// Update replaces every writable column of the row and refreshes updated_at.
func (r *repository) Update(ctx context.Context, id int64, student *Student) (*Student, error) {
	const op = "updating student"

	start := time.Now()
	updated := &Student{
		ID:          id,
		FirstName:   student.FirstName,
		LastName:    student.LastName,
		Email:       student.Email,
		Phone:       student.Phone,
		DateOfBirth: student.DateOfBirth,
		Address:     student.Address,
	}
	result, err := r.db.NewUpdate().
		Model(updated).
		Column(writableColumns...).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("s.id = ?", id).
		Returning("*").
		Exec(ctx)

	r.recordQuery(ctx, "update", start, err)

	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, &Error{Kind: NotFound, Op: op, Err: err}
		case db.IsUniqueViolation(err):
			return nil, &Error{Kind: DuplicateEmail, Op: op, Err: err}
		}
		return nil, &Error{Kind: Failure, Op: op, Err: err}
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return nil, &Error{Kind: NotFound, Op: op}
	}
	return updated, nil
}

// Delete removes the row and returns it as it was before deletion.
func (r *repository) Delete(ctx context.Context, id int64) (*Student, error) {
	const op = "deleting student"

	start := time.Now()
	deleted := &Student{ID: id}
	result, err := r.db.NewDelete().
		Model(deleted).
		Where("s.id = ?", id).
		Returning("*").
		Exec(ctx)

	r.recordQuery(ctx, "delete", start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &Error{Kind: NotFound, Op: op, Err: err}
		}
		return nil, &Error{Kind: Failure, Op: op, Err: err}
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return nil, &Error{Kind: NotFound, Op: op}
	}
	return deleted, nil
}

func (r *repository) recordQuery(ctx context.Context, operation string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.Database.RecordQuery(ctx, operation, "students", time.Since(start), err)
}
