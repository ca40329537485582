package scheduler

import (
	"context"
	"time"
)

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron schedule expression
	// 초 단위 포함: "0 30 6 * * *" (매일 06:30), "@daily", "@hourly"
	Schedule() string
}

// FuncJob adapts a function to Job
type FuncJob struct {
	JobName string
	Spec    string
	Fn      func(ctx context.Context) error
}

func (j FuncJob) Name() string                  { return j.JobName }
func (j FuncJob) Schedule() string              { return j.Spec }
func (j FuncJob) Run(ctx context.Context) error { return j.Fn(ctx) }

// JobResult 한 번의 실행 결과 (재시도 포함)
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobObserver 작업 종료 훅 (메트릭 수집용)
type JobObserver interface {
	ObserveJob(name string, duration time.Duration, success bool)
}

// historyLimit 작업별 보관 결과 수
const historyLimit = 100

// JobHistory stores the most recent job results (oldest first)
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, dropping the oldest beyond historyLimit
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if over := len(h.Results) - historyLimit; over > 0 {
		h.Results = h.Results[over:]
	}
}

// GetLatestResults returns the latest N results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns all failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	var failed []JobResult
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// GetSuccessRate returns the success rate (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}
	return float64(len(h.Results)-len(h.GetFailedResults())) / float64(len(h.Results))
}
