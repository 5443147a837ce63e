package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ToAt is exclusive.
const timelineSQL = `SELECT id, occurred_at, actor_id, action, entity, entity_id, meta
FROM audit_logs
WHERE organization_id = $1
  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
  AND ($3::timestamptz IS NULL OR occurred_at < $3)
  AND ($4::bigint IS NULL OR actor_id = $4)
  AND ($5::text IS NULL OR entity = $5)
  AND ($6::text IS NULL OR action = $6)
ORDER BY occurred_at DESC, id
OFFSET $7 LIMIT $8`

// Timeline returns the newest entries first.
func (r *PGRepository) Timeline(ctx context.Context, q TimelineQuery) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineSQL,
		q.OrganizationID, q.FromAt, q.ToAt, q.Actor, q.Entity, q.Action, q.OffsetRows, q.LimitRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var (
			row  TimelineRow
			id   uuid.UUID
			meta []byte
		)
		if err := rows.Scan(&id, &row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		row.ID = id.String()
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &row.Meta)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
