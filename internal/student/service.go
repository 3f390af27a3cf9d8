package student

import (
	"context"
	"log/slog"

	"student-records/internal/metrics"
)

type Service interface {
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudent(ctx context.Context, id int64) (*Student, error)
	CreateStudent(ctx context.Context, student *Student) (*Student, error)
	UpdateStudent(ctx context.Context, id int64, student *Student) (*Student, error)
	DeleteStudent(ctx context.Context, id int64) (*Student, error)
}

type service struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewService(repo Repository, publisher Publisher, logger *slog.Logger, m *metrics.Metrics) Service {
	if publisher == nil {
		publisher = NoopPublisher()
	}
	if m == nil {
		m = metrics.NewMock()
	}
	return &service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

func (s *service) ListStudents(ctx context.Context) ([]Student, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.Students.RecordListViewed(ctx)
	return students, nil
}

func (s *service) GetStudent(ctx context.Context, id int64) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.Students.RecordViewed(ctx)
	return student, nil
}

func (s *service) CreateStudent(ctx context.Context, student *Student) (*Student, error) {
	created, err := s.repo.Create(ctx, student)
	if err != nil {
		return nil, err
	}
	s.metrics.Students.RecordCreated(ctx)
	s.publish(ctx, EventCreated, created)
	return created, nil
}

func (s *service) UpdateStudent(ctx context.Context, id int64, student *Student) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	updated, err := s.repo.Update(ctx, id, student)
	if err != nil {
		return nil, err
	}
	s.metrics.Students.RecordUpdated(ctx)
	s.publish(ctx, EventUpdated, updated)
	return updated, nil
}

func (s *service) DeleteStudent(ctx context.Context, id int64) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.Students.RecordDeleted(ctx)
	s.publish(ctx, EventDeleted, deleted)
	return deleted, nil
}

// publish is best effort: the write already committed.
func (s *service) publish(ctx context.Context, eventType EventType, student *Student) {
	event := NewEvent(eventType, student)
	if err := s.publisher.Publish(ctx, event.Key(), event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish student event",
			"event_id", event.ID,
			"type", event.Type,
			"student_id", event.StudentID,
			"error", err,
		)
	}
}
