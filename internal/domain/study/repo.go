package study

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateStudy(ctx context.Context, s *Study) error
	GetStudy(ctx context.Context, id uuid.UUID) (*Study, error)
	UpdateStudy(ctx context.Context, s *Study) error
	// DeleteStudy soft-deletes the study and its live results.
	DeleteStudy(ctx context.Context, id uuid.UUID) error
	SearchStudies(ctx context.Context, params map[string]string, limit, offset int) ([]*Study, int, error)
	StudyExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreateResult(ctx context.Context, r *Result) error
	GetResult(ctx context.Context, id uuid.UUID) (*Result, error)
	ListResults(ctx context.Context, studyID uuid.UUID) ([]*Result, error)
	UpdateResult(ctx context.Context, r *Result) error
	DeleteResult(ctx context.Context, id uuid.UUID) error
	ResultExists(ctx context.Context, id uuid.UUID) (bool, error)
}
