package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"skyquery-bot/internal/config"
	"skyquery-bot/internal/crawler"
	"skyquery-bot/internal/logger"
	"skyquery-bot/services"

	"github.com/hibiken/asynq"
)

const (
	TaskCrawl  = "ingest:crawl"
	TaskChunks = "ingest:chunks"
	TaskGraph  = "ingest:graph"
)

// Queue names and their worker weights.
const (
	QueueDefault = "default"
	QueueLow     = "low"
)

var Queues = map[string]int{
	QueueDefault: 3,
	QueueLow:     1,
}

// CrawlPayload starts a crawl. Chain enqueues chunk preparation on success.
type CrawlPayload struct {
	Targets  []string `json:"targets,omitempty"`
	MaxPages int      `json:"max_pages,omitempty"`
	Chain    bool     `json:"chain"`
}

// ChunksPayload starts chunk preparation. Chain enqueues the graph build on
// success.
type ChunksPayload struct {
	Chain bool `json:"chain"`
}

type GraphPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// Task creators
func NewCrawlTask(p CrawlPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskCrawl,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(2*time.Hour),
		asynq.Queue(QueueLow),
		asynq.Unique(time.Hour),
	), nil
}

func NewChunksTask(p ChunksPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskChunks,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Queue(QueueDefault),
	), nil
}

func NewGraphTask(p GraphPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskGraph,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(time.Hour),
		asynq.Queue(QueueDefault),
	), nil
}

// Stages is the ingestion work behind each task.
type Stages interface {
	Crawl(ctx context.Context, targets []string, maxPages int) (*crawler.CrawlResult, error)
	PrepareChunks(ctx context.Context) (*services.ChunkReport, error)
	BuildGraph(ctx context.Context) (*services.GraphReport, error)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Task handlers
type TaskProcessor struct {
	stages   Stages
	enqueuer Enqueuer
}

// NewTaskProcessor wires handlers to stages. A nil enqueuer disables
// chaining.
func NewTaskProcessor(stages Stages, enqueuer Enqueuer) *TaskProcessor {
	return &TaskProcessor{stages: stages, enqueuer: enqueuer}
}

// Register installs every handler on mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskCrawl, p.HandleCrawl)
	mux.HandleFunc(TaskChunks, p.HandleChunks)
	mux.HandleFunc(TaskGraph, p.HandleGraph)
}

func (p *TaskProcessor) HandleCrawl(ctx context.Context, t *asynq.Task) error {
	var payload CrawlPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing crawl task", "targets", len(payload.Targets), "max_pages", payload.MaxPages, "chain", payload.Chain)
	result, err := p.stages.Crawl(ctx, payload.Targets, payload.MaxPages)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	writeResult(t, map[string]int{
		"pages":    len(result.Pages),
		"files":    len(result.Files),
		"failures": len(result.Failures),
	})

	if payload.Chain {
		return p.chain(ctx, func() (*asynq.Task, error) { return NewChunksTask(ChunksPayload{Chain: true}) })
	}
	return nil
}

func (p *TaskProcessor) HandleChunks(ctx context.Context, t *asynq.Task) error {
	var payload ChunksPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing chunk preparation task", "chain", payload.Chain)
	report, err := p.stages.PrepareChunks(ctx)
	if err != nil {
		return fmt.Errorf("prepare chunks: %w", err)
	}
	writeResult(t, report)

	if payload.Chain {
		return p.chain(ctx, func() (*asynq.Task, error) { return NewGraphTask(GraphPayload{RequestedBy: TaskChunks}) })
	}
	return nil
}

func (p *TaskProcessor) HandleGraph(ctx context.Context, t *asynq.Task) error {
	var payload GraphPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing graph build task", "requested_by", payload.RequestedBy)
	report, err := p.stages.BuildGraph(ctx)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	writeResult(t, report)
	return nil
}

func (p *TaskProcessor) chain(ctx context.Context, next func() (*asynq.Task, error)) error {
	if p.enqueuer == nil {
		return nil
	}
	task, err := next()
	if err != nil {
		return fmt.Errorf("build follow-up task: %w", err)
	}
	info, err := p.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		// The stage succeeded; a retry would redo it, so only log.
		logger.Error("Failed to enqueue follow-up task", "type", task.Type(), "error", err)
		return nil
	}
	logger.Info("Enqueued follow-up task", "type", task.Type(), "id", info.ID)
	return nil
}

// writeResult stores a JSON summary on the task when it runs under a server.
func writeResult(t *asynq.Task, v any) {
	w := t.ResultWriter()
	if w == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logger.Warn("Failed to write task result", "type", t.Type(), "error", err)
	}
}

// RedisConnOpt builds asynq's Redis options from REDIS_URL.
func RedisConnOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	opt, err := config.RedisOptions(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
