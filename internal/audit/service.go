// Package audit reads the tenant scoped access audit trail.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// MaxExportRows bounds a single CSV export.
	MaxExportRows = 10000
)

// ErrOrganizationRequired is returned when filters carry no tenant.
var ErrOrganizationRequired = errors.New("audit: organization required")

// TimelineQuery is the parameter set handed to the repository.
type TimelineQuery struct {
	OrganizationID int64
	FromAt         pgtype.Timestamptz
	ToAt           pgtype.Timestamptz
	Actor          pgtype.Int8
	Entity         pgtype.Text
	Action         pgtype.Text
	OffsetRows     int32
	LimitRows      int32
}

// Repository menyediakan akses ke tabel audit_logs.
type Repository interface {
	Timeline(ctx context.Context, q TimelineQuery) ([]TimelineRow, error)
}

// Service mengoordinasikan pengambilan data audit.
type Service struct {
	repo Repository
}

// NewService membuat service audit timeline baru.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline mengambil data audit dengan paging.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	if filters.OrganizationID <= 0 {
		return Result{}, ErrOrganizationRequired
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	q := buildQuery(filters)
	q.OffsetRows = int32((page - 1) * pageSize)
	q.LimitRows = int32(pageSize + 1)
	rows, err := s.repo.Timeline(ctx, q)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export mengambil data timeline tanpa paging, dibatasi MaxExportRows.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if filters.OrganizationID <= 0 {
		return nil, ErrOrganizationRequired
	}
	q := buildQuery(filters)
	q.LimitRows = MaxExportRows
	return s.repo.Timeline(ctx, q)
}

func buildQuery(filters TimelineFilters) TimelineQuery {
	q := TimelineQuery{
		OrganizationID: filters.OrganizationID,
		FromAt:         toPgTime(filters.From),
		ToAt:           toPgTime(filters.To),
		Entity:         optionalText(filters.Entity),
		Action:         optionalText(filters.Action),
	}
	if filters.ActorID > 0 {
		q.Actor = pgtype.Int8{Int64: filters.ActorID, Valid: true}
	}
	return q
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
