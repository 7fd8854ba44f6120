package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeImportSheets reloads the ledger from an uploaded sheet set.
	TaskTypeImportSheets = "import:sheets"
	// TaskTypeDashboardWarmup pre-populates the dashboard cache.
	TaskTypeDashboardWarmup = "dashboard:warmup"
)

// ImportSheetsPayload points a worker at a staged upload directory.
type ImportSheetsPayload struct {
	Dir string `json:"dir"`
}

// NewImportSheetsTask constructs an import task for a staged upload.
func NewImportSheetsTask(payload ImportSheetsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeImportSheets, data), nil
}

// DashboardWarmupPayload names the period to warm, in its string form.
type DashboardWarmupPayload struct {
	Period string `json:"period"`
}

// NewDashboardWarmupTask constructs a dashboard warmup task.
func NewDashboardWarmupTask(period string) (*asynq.Task, error) {
	data, err := json.Marshal(DashboardWarmupPayload{Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDashboardWarmup, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueImportSheets enqueues an import task.
func (c *Client) EnqueueImportSheets(ctx context.Context, payload ImportSheetsPayload) (*asynq.TaskInfo, error) {
	task, err := NewImportSheetsTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueImport satisfies the upload handler's queue contract: it stages
// the directory on the default queue and returns the task id.
func (c *Client) EnqueueImport(ctx context.Context, dir string) (string, error) {
	info, err := c.EnqueueImportSheets(ctx, ImportSheetsPayload{Dir: dir})
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
