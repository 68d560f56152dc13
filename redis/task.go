// Package redis implements sitemd.TaskService on Redis so that several
// server processes can share task state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fwojciec/sitemd"
	"github.com/redis/go-redis/v9"
)

// Compile-time interface verification.
var _ sitemd.TaskService = (*TaskService)(nil)

// DefaultPrefix namespaces every key written by TaskService.
const DefaultPrefix = "sitemd:"

// Script results.
const (
	applied    = 1
	notApplied = 0
	missing    = -1
)

// Each task is a hash; transitions run as Lua scripts so the status and
// progress checks are atomic with the writes.
var (
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], 'status', 'pending', 'progress', 0, 'message', ARGV[1],
  'created_at', ARGV[2], 'updated_at', ARGV[2], 'finished_at', '')
return 1`)

	startScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then return -1 end
if st ~= 'pending' then return 0 end
local cur = tonumber(redis.call('HGET', KEYS[1], 'progress'))
redis.call('HSET', KEYS[1], 'status', 'processing', 'progress', math.max(cur, tonumber(ARGV[1])),
  'message', ARGV[2], 'updated_at', ARGV[3])
return 1`)

	progressScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then return -1 end
if st ~= 'pending' and st ~= 'processing' then return 0 end
local cur = tonumber(redis.call('HGET', KEYS[1], 'progress'))
if tonumber(ARGV[1]) < cur then return 0 end
redis.call('HSET', KEYS[1], 'progress', ARGV[1], 'message', ARGV[2], 'updated_at', ARGV[3])
return 1`)

	finishScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then return -1 end
if st ~= 'pending' and st ~= 'processing' then return 0 end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'progress', ARGV[2], 'message', ARGV[3],
  'updated_at', ARGV[4], 'finished_at', ARGV[4])
if ARGV[6] ~= '' then redis.call('SET', KEYS[2], ARGV[6]) end
local ttl = tonumber(ARGV[5])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  if ARGV[6] ~= '' then redis.call('PEXPIRE', KEYS[2], ttl) end
end
return 1`)
)

// TaskService implements sitemd.TaskService using Redis.
type TaskService struct {
	client *redis.Client

	// Prefix is prepended to every key. Defaults to DefaultPrefix.
	Prefix string

	// TTL expires finished tasks and their results. Zero keeps them
	// until DeleteExpired removes them.
	TTL time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewTaskService creates a TaskService using client.
func NewTaskService(client *redis.Client, ttl time.Duration) *TaskService {
	return &TaskService{client: client, Prefix: DefaultPrefix, TTL: ttl, Now: time.Now}
}

// storedResult is the JSON document kept under a result key.
type storedResult struct {
	Markdown string                    `json:"markdown"`
	Metadata sitemd.ConversionMetadata `json:"metadata"`
}

func (s *TaskService) taskKey(id string) string   { return s.Prefix + "task:" + id }
func (s *TaskService) resultKey(id string) string { return s.Prefix + "result:" + id }

func (s *TaskService) CreateTask(ctx context.Context, id string) (*sitemd.Task, error) {
	task := &sitemd.Task{ID: id, Status: sitemd.TaskPending, Message: "Task created"}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	n, err := createScript.Run(ctx, s.client, []string{s.taskKey(id)}, task.Message, formatTime(now)).Int()
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if n != applied {
		return nil, sitemd.Errorf(sitemd.ECONFLICT, "task %q already exists", id)
	}
	return task, nil
}

func (s *TaskService) FindTaskByID(ctx context.Context, id string) (*sitemd.Task, error) {
	fields, err := s.client.HGetAll(ctx, s.taskKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if len(fields) == 0 {
		return nil, sitemd.Errorf(sitemd.ENOTFOUND, "task not found")
	}
	return decodeTask(id, fields)
}

func (s *TaskService) StartTask(ctx context.Context, id string, progress int, message string) error {
	n, err := startScript.Run(ctx, s.client, []string{s.taskKey(id)},
		clamp(progress), message, formatTime(s.Now())).Int()
	if err != nil {
		return fmt.Errorf("start task: %w", err)
	}
	return s.transitionError(ctx, id, n)
}

func (s *TaskService) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	n, err := progressScript.Run(ctx, s.client, []string{s.taskKey(id)},
		clamp(progress), message, formatTime(s.Now())).Int()
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if n == missing {
		return sitemd.Errorf(sitemd.ENOTFOUND, "task not found")
	}
	return nil
}

func (s *TaskService) CompleteTask(ctx context.Context, id string, result *sitemd.ConversionResult) error {
	data, err := json.Marshal(storedResult{Markdown: result.Markdown, Metadata: result.Metadata})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.finish(ctx, id, sitemd.TaskCompleted, 100, "Conversion complete", string(data))
}

func (s *TaskService) FailTask(ctx context.Context, id string, message string) error {
	return s.finish(ctx, id, sitemd.TaskFailed, 0, message, "")
}

func (s *TaskService) finish(ctx context.Context, id string, status sitemd.TaskStatus, progress int, message, result string) error {
	n, err := finishScript.Run(ctx, s.client, []string{s.taskKey(id), s.resultKey(id)},
		string(status), progress, message, formatTime(s.Now()), s.TTL.Milliseconds(), result).Int()
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	return s.transitionError(ctx, id, n)
}

func (s *TaskService) FindResultByTaskID(ctx context.Context, id string) (*sitemd.ConversionResult, error) {
	status, err := s.client.HGet(ctx, s.taskKey(id), "status").Result()
	if errors.Is(err, redis.Nil) {
		return nil, sitemd.Errorf(sitemd.ENOTFOUND, "task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find result: %w", err)
	}
	if sitemd.TaskStatus(status) != sitemd.TaskCompleted {
		return nil, sitemd.NotReady(sitemd.TaskStatus(status))
	}

	data, err := s.client.Get(ctx, s.resultKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sitemd.NotReady(sitemd.TaskStatus(status))
	}
	if err != nil {
		return nil, fmt.Errorf("find result: %w", err)
	}

	var stored storedResult
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &sitemd.ConversionResult{TaskID: id, Markdown: stored.Markdown, Metadata: stored.Metadata}, nil
}

// DeleteExpired scans the task keys and removes finished tasks older than
// before. With a TTL set Redis usually expires them first.
func (s *TaskService) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	prefix := s.taskKey("")
	n := 0
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		vals, err := s.client.HMGet(ctx, key, "status", "finished_at").Result()
		if err != nil {
			return n, fmt.Errorf("delete expired: %w", err)
		}
		status, _ := vals[0].(string)
		finishedAt, _ := vals[1].(string)
		if !sitemd.TaskStatus(status).IsTerminal() || finishedAt == "" {
			continue
		}
		finished, err := time.Parse(time.RFC3339Nano, finishedAt)
		if err != nil || !finished.Before(before) {
			continue
		}

		id := key[len(prefix):]
		if err := s.client.Del(ctx, key, s.resultKey(id)).Err(); err != nil {
			return n, fmt.Errorf("delete expired: %w", err)
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("delete expired: %w", err)
	}
	return n, nil
}

// Ping checks the connection.
func (s *TaskService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// transitionError maps a script result to ENOTFOUND or ECONFLICT.
func (s *TaskService) transitionError(ctx context.Context, id string, n int) error {
	switch n {
	case applied:
		return nil
	case missing:
		return sitemd.Errorf(sitemd.ENOTFOUND, "task not found")
	}
	status, err := s.client.HGet(ctx, s.taskKey(id), "status").Result()
	if err != nil {
		return sitemd.Errorf(sitemd.ECONFLICT, "task %q cannot change state", id)
	}
	return sitemd.Errorf(sitemd.ECONFLICT, "task %q is %s", id, status)
}

func decodeTask(id string, fields map[string]string) (*sitemd.Task, error) {
	progress, err := strconv.Atoi(fields["progress"])
	if err != nil {
		return nil, fmt.Errorf("decode task %s progress: %w", id, err)
	}
	task := &sitemd.Task{
		ID:       id,
		Status:   sitemd.TaskStatus(fields["status"]),
		Progress: progress,
		Message:  fields["message"],
	}
	for name, dst := range map[string]*time.Time{
		"created_at":  &task.CreatedAt,
		"updated_at":  &task.UpdatedAt,
		"finished_at": &task.FinishedAt,
	} {
		if v := fields[name]; v != "" {
			if *dst, err = time.Parse(time.RFC3339Nano, v); err != nil {
				return nil, fmt.Errorf("decode task %s %s: %w", id, name, err)
			}
		}
	}
	return task, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func clamp(progress int) int {
	return min(max(progress, 0), 100)
}
