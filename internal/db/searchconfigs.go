package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/ingestion-service/internal/model"
)

// SearchConfigs reads active user searches from the search_configs table
// shared with the other jobmate services.
type SearchConfigs struct {
	pool *pgxpool.Pool
}

func NewSearchConfigs(pool *pgxpool.Pool) *SearchConfigs {
	return &SearchConfigs{pool: pool}
}

// LoadActiveConfigs fetches all is_active = true search configs.
func (s *SearchConfigs) LoadActiveConfigs(ctx context.Context) ([]model.SearchConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, user_id::text, job_titles, locations,
		        COALESCE(remote_policy, ''), COALESCE(keywords, '{}'), COALESCE(red_flags, '{}'),
		        salary_min, salary_max
		 FROM search_configs
		 WHERE is_active = true`,
	)
	if err != nil {
		return nil, fmt.Errorf("query search_configs: %w", err)
	}
	defer rows.Close()

	var configs []model.SearchConfig
	for rows.Next() {
		var c model.SearchConfig
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.JobTitles, &c.Locations,
			&c.RemotePolicy, &c.Keywords, &c.RedFlags,
			&c.SalaryMin, &c.SalaryMax,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		configs = append(configs, c)
	}

	return configs, rows.Err()
}
