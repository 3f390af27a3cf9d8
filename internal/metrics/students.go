package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type StudentMetrics struct {
	studentsCreated    metric.Int64Counter
	studentsUpdated    metric.Int64Counter
	studentsDeleted    metric.Int64Counter
	studentsViewed     metric.Int64Counter
	studentsListViewed metric.Int64Counter
	validationFailures metric.Int64Counter
}

func NewStudentMetrics(meter metric.Meter) (*StudentMetrics, error) {
	m := &StudentMetrics{}

	var err error

	m.studentsCreated, err = meter.Int64Counter(
		"student_records.students.created",
		metric.WithDescription("Total number of students created"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsUpdated, err = meter.Int64Counter(
		"student_records.students.updated",
		metric.WithDescription("Total number of student updates"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsDeleted, err = meter.Int64Counter(
		"student_records.students.deleted",
		metric.WithDescription("Total number of students deleted"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsViewed, err = meter.Int64Counter(
		"student_records.students.viewed",
		metric.WithDescription("Total number of students viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsListViewed, err = meter.Int64Counter(
		"student_records.students.list_viewed",
		metric.WithDescription("Total number of times students list was viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.validationFailures, err = meter.Int64Counter(
		"student_records.validation.failures",
		metric.WithDescription("Rejected payloads by field"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *StudentMetrics) RecordCreated(ctx context.Context) {
	if m != nil && m.studentsCreated != nil {
		m.studentsCreated.Add(ctx, 1)
	}
}

func (m *StudentMetrics) RecordUpdated(ctx context.Context) {
	if m != nil && m.studentsUpdated != nil {
		m.studentsUpdated.Add(ctx, 1)
	}
}

func (m *StudentMetrics) RecordDeleted(ctx context.Context) {
	if m != nil && m.studentsDeleted != nil {
		m.studentsDeleted.Add(ctx, 1)
	}
}

func (m *StudentMetrics) RecordViewed(ctx context.Context) {
	if m != nil && m.studentsViewed != nil {
		m.studentsViewed.Add(ctx, 1)
	}
}

func (m *StudentMetrics) RecordListViewed(ctx context.Context) {
	if m != nil && m.studentsListViewed != nil {
		m.studentsListViewed.Add(ctx, 1)
	}
}

func (m *StudentMetrics) RecordValidationFailure(ctx context.Context, field string) {
	if m != nil && m.validationFailures != nil {
		m.validationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
	}
}
