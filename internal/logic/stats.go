package logic

import (
	"context"

	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/model"
)

// StatusCount is one row of a status summary.
type StatusCount struct {
	Status model.Status `json:"status"`
	Name   string       `json:"name"`
	Count  int64        `json:"count"`
}

// Summary is the farm-wide status breakdown shown on the console landing
// view.
type Summary struct {
	Jobs  []StatusCount `json:"jobs"`
	Tasks []StatusCount `json:"tasks"`
	Nodes []StatusCount `json:"nodes"`
}

// Summarize counts jobs, tasks, and nodes by status.
func Summarize(ctx context.Context, db *gorm.DB) (*Summary, error) {
	s := &Summary{}
	for _, group := range []struct {
		table string
		dest  *[]StatusCount
	}{
		{"hydra_jobs", &s.Jobs},
		{"hydra_tasks", &s.Tasks},
		{"hydra_render_nodes", &s.Nodes},
	} {
		rows, err := countByStatus(ctx, db, group.table)
		if err != nil {
			return nil, err
		}
		*group.dest = rows
	}
	return s, nil
}

func countByStatus(ctx context.Context, db *gorm.DB, table string) ([]StatusCount, error) {
	var rows []StatusCount
	err := db.WithContext(ctx).Table(table).
		Select("status, count(*) as count").
		Group("status").
		Order("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Name = rows[i].Status.NiceName()
	}
	return rows, nil
}
