package dispatch

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/match"
	"github.com/david2777/hydra-render-farm/internal/metrics"
	"github.com/david2777/hydra-render-farm/internal/model"
)

// Claim finds the best eligible Ready task for the node and atomically
// assigns it: the task becomes Started with the node's host and a start time,
// and the node row becomes Started with the task id, in one transaction.
//
// Candidates are Ready tasks whose job is active, not archived, has priority
// at or above the node's minimum, has attempts left, satisfies the node's
// capabilities, does not already list the node as failed, and is under its
// max-nodes concurrency limit. Ordering is job priority descending, then task
// priority descending, then job creation time ascending.
//
// A concurrent claim of the selected task aborts the transaction and re-runs
// selection, so at most one node ever holds a given task. Returns ErrNoTask
// when nothing is eligible.
func Claim(ctx context.Context, db *gorm.DB, node *model.RenderNode) (*model.RenderTask, error) {
	for i := 0; i < maxClaimRetries; i++ {
		task, err := tryClaim(ctx, db, node)
		if errors.Is(err, errConflict) {
			metrics.ClaimAttemptsTotal.WithLabelValues("conflict").Inc()
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNoTask) {
				metrics.ClaimAttemptsTotal.WithLabelValues("empty").Inc()
			} else {
				metrics.ClaimAttemptsTotal.WithLabelValues("error").Inc()
			}
			return nil, err
		}
		metrics.ClaimAttemptsTotal.WithLabelValues("claimed").Inc()
		return task, nil
	}
	return nil, ErrNoTask
}

// candidate pairs a Ready task with its (already filtered) owning job for
// ordering.
type candidate struct {
	task model.RenderTask
	job  *model.RenderJob
}

func tryClaim(ctx context.Context, db *gorm.DB, node *model.RenderNode) (*model.RenderTask, error) {
	var claimed *model.RenderTask

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		jobs, err := eligibleJobs(tx, node)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return ErrNoTask
		}

		jobIDs := make([]uint, 0, len(jobs))
		for id := range jobs {
			jobIDs = append(jobIDs, id)
		}

		var tasks []model.RenderTask
		if err := tx.Where("status = ? AND job_id IN ?", model.StatusReady, jobIDs).Find(&tasks).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return ErrNoTask
		}

		candidates := make([]candidate, 0, len(tasks))
		for _, t := range tasks {
			candidates = append(candidates, candidate{task: t, job: jobs[t.JobID]})
		}
		orderCandidates(candidates)

		for _, c := range candidates {
			ok, err := underNodeLimit(tx, c.job)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			task, err := claimTask(tx, node, c)
			if err != nil {
				return err
			}
			claimed = task
			return nil
		}
		return ErrNoTask
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// eligibleJobs returns the jobs whose Ready tasks this node may claim, keyed
// by job id. Status, archive, priority, and attempt filters run in SQL;
// capability matching and the failed-node blacklist are token-set checks done
// here.
func eligibleJobs(tx *gorm.DB, node *model.RenderNode) (map[uint]*model.RenderJob, error) {
	var jobs []model.RenderJob
	err := tx.
		Where("status IN ? AND archived = ? AND priority >= ? AND attempts < max_attempts",
			[]model.Status{model.StatusReady, model.StatusStarted}, false, node.MinPriority).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}

	capabilities := node.CapabilityList()
	eligible := make(map[uint]*model.RenderJob, len(jobs))
	for i := range jobs {
		j := &jobs[i]
		if j.HasFailedNode(node.Host) {
			continue
		}
		if !match.Eligible(j.RequirementList(), capabilities) {
			continue
		}
		eligible[j.ID] = j
	}
	return eligible, nil
}

// orderCandidates sorts by job priority desc, task priority desc, job
// creation asc, with task id as the deterministic final tie-break.
func orderCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, k int) bool {
		a, b := candidates[i], candidates[k]
		if a.job.Priority != b.job.Priority {
			return a.job.Priority > b.job.Priority
		}
		if a.task.Priority != b.task.Priority {
			return a.task.Priority > b.task.Priority
		}
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.Before(b.job.CreatedAt)
		}
		return a.task.ID < b.task.ID
	})
}

// underNodeLimit reports whether the job may take another concurrent node.
func underNodeLimit(tx *gorm.DB, job *model.RenderJob) (bool, error) {
	if job.MaxNodes <= 0 {
		return true, nil
	}
	var running int64
	err := tx.Model(&model.RenderTask{}).
		Where("job_id = ? AND status = ?", job.ID, model.StatusStarted).
		Count(&running).Error
	if err != nil {
		return false, err
	}
	return running < int64(job.MaxNodes), nil
}

// claimTask performs the two row mutations of the claim. The task update is
// conditional on the status still being Ready; losing that race surfaces as
// errConflict, rolling the transaction back.
func claimTask(tx *gorm.DB, node *model.RenderNode, c candidate) (*model.RenderTask, error) {
	now := time.Now().Truncate(time.Second)

	res := tx.Model(&model.RenderTask{}).
		Where("id = ? AND status = ?", c.task.ID, model.StatusReady).
		Updates(map[string]interface{}{
			"status":     model.StatusStarted,
			"host":       node.Host,
			"start_time": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errConflict
	}

	if c.job.Status != model.StatusStarted {
		err := tx.Model(&model.RenderJob{}).
			Where("id = ?", c.job.ID).
			Update("status", model.StatusStarted).Error
		if err != nil {
			return nil, err
		}
	}

	err := tx.Model(&model.RenderNode{}).
		Where("id = ?", node.ID).
		Updates(map[string]interface{}{
			"status":  model.StatusStarted,
			"task_id": c.task.ID,
		}).Error
	if err != nil {
		return nil, err
	}

	task := c.task
	task.Status = model.StatusStarted
	task.Host = node.Host
	task.StartTime = &now
	node.Status = model.StatusStarted
	node.TaskID = &task.ID
	return &task, nil
}
