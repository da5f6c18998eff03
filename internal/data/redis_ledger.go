package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	"github.com/target/bulkmove/internal/domain/transfer"
	apperrors "github.com/target/bulkmove/internal/errors"
)

// DefaultRedisLedgerPrefix keeps every ledger key in one cluster slot so scripts may touch the index.
const DefaultRedisLedgerPrefix = "bulkmove:{transfers}:"

const redisListPage = 200

// RedisLedger is a TransferLedger backed by one Redis hash per job plus a sorted-set index
// scored by creation time. Guarded updates run as Lua scripts.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	tp     TimeProvider
}

var _ core.TransferLedger = (*RedisLedger)(nil)

// RedisLedgerOptions configures a RedisLedger.
type RedisLedgerOptions struct {
	Prefix       string
	TimeProvider TimeProvider
}

// NewRedisLedger creates a RedisLedger.
func NewRedisLedger(client redis.UniversalClient, opts RedisLedgerOptions) *RedisLedger {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultRedisLedgerPrefix
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &RedisLedger{client: client, prefix: prefix, tp: tp}
}

var (
	createTransferScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

	markRunningScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return {-1, ''} end
if status ~= 'queued' then return {0, status} end
redis.call('HSET', KEYS[1], 'status', 'running', 'total', ARGV[1], 'processed', '0',
  'started_at', ARGV[2], 'updated_at', ARGV[2])
return {1, 'running'}
`)

	advanceScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'status', 'processed', 'total')
if not v[1] then return {-1, 0} end
local processed = tonumber(v[2])
local total = tonumber(v[3])
local delta = tonumber(ARGV[1])
if v[1] ~= 'running' then return {-2, processed} end
if processed + delta > total then return {-3, processed} end
local n = redis.call('HINCRBY', KEYS[1], 'processed', delta)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return {1, n}
`)

	setStatusScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return {-1, ''} end
local allowed = false
for i = 5, #ARGV do
  if ARGV[i] == status then allowed = true end
end
if not allowed then return {0, status} end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'updated_at', ARGV[3])
if ARGV[2] ~= '' then redis.call('HSET', KEYS[1], 'error', ARGV[2]) end
if ARGV[4] == '1' then redis.call('HSET', KEYS[1], 'finished_at', ARGV[3]) end
return {1, ARGV[1]}
`)

	requestCancelScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return -1 end
if status == 'completed' or status == 'failed' or status == 'cancelled' then return 0 end
redis.call('HSET', KEYS[1], 'cancel_requested', '1', 'updated_at', ARGV[1])
return 1
`)
)

func (l *RedisLedger) jobKey(id string) string { return l.prefix + "job:" + id }
func (l *RedisLedger) indexKey() string       { return l.prefix + "index" }

func (l *RedisLedger) now() string { return formatRedisTime(l.tp.Now()) }

// Create stores a new queued job and indexes it by creation time.
func (l *RedisLedger) Create(ctx context.Context, job *model.TransferJob) error {
	if err := validateNewTransfer(job); err != nil {
		return err
	}

	now := l.tp.Now().UTC()
	stored := job.Clone()
	stored.CreatedAt, stored.UpdatedAt = now, now
	fields, err := encodeRedisTransfer(stored)
	if err != nil {
		return err
	}

	args := make([]any, 0, len(fields)+2)
	args = append(args, job.ID, now.UnixMicro())
	args = append(args, fields...)
	created, err := createTransferScript.Run(ctx, l.client,
		[]string{l.jobKey(job.ID), l.indexKey()}, args...).Int()
	if err != nil {
		return fmt.Errorf("redis create transfer job: %w", err)
	}
	if created == 0 {
		return apperrors.Conflict("transfer job " + job.ID + " already exists")
	}
	job.CreatedAt, job.UpdatedAt = now, now
	return nil
}

// Get returns the job or a NotFound error.
func (l *RedisLedger) Get(ctx context.Context, id string) (*model.TransferJob, error) {
	fields, err := l.client.HGetAll(ctx, l.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get transfer job: %w", err)
	}
	if len(fields) == 0 {
		return nil, transferNotFound(id)
	}
	return decodeRedisTransfer(fields)
}

// MarkRunning moves a queued job to running and records its total.
func (l *RedisLedger) MarkRunning(ctx context.Context, id string, total int) error {
	if total < 0 {
		return apperrors.Validationf("total must be >= 0, got %d", total)
	}
	code, status, err := runStatusScript(ctx, l.client, markRunningScript,
		[]string{l.jobKey(id)}, total, l.now())
	if err != nil {
		return fmt.Errorf("redis mark transfer running: %w", err)
	}
	switch code {
	case 1:
		return nil
	case -1:
		return transferNotFound(id)
	default:
		return transitionConflict(id, model.TransferStatus(status), model.TransferStatusRunning)
	}
}

// Advance atomically adds delta to processed while the job is running.
func (l *RedisLedger) Advance(ctx context.Context, id string, delta int) (int, error) {
	if err := validateAdvance(delta); err != nil {
		return 0, err
	}
	res, err := advanceScript.Run(ctx, l.client, []string{l.jobKey(id)}, delta, l.now()).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("redis advance transfer job: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("redis advance transfer job: unexpected reply %v", res)
	}

	processed := int(res[1])
	switch res[0] {
	case 1:
		return processed, nil
	case -1:
		return 0, transferNotFound(id)
	}
	job, getErr := l.Get(ctx, id)
	if getErr != nil {
		return processed, getErr
	}
	return job.Processed, advanceConflict(job, delta)
}

// SetStatus applies a forward status transition.
func (l *RedisLedger) SetStatus(ctx context.Context, id string, update model.StatusUpdate) error {
	if err := validateStatusUpdate(update); err != nil {
		return err
	}

	terminal := "0"
	if update.Status.Terminal() {
		terminal = "1"
	}
	args := []any{string(update.Status), update.Error, l.now(), terminal}
	for _, s := range transfer.AllowedFrom(update.Status) {
		args = append(args, string(s))
	}

	code, status, err := runStatusScript(ctx, l.client, setStatusScript, []string{l.jobKey(id)}, args...)
	if err != nil {
		return fmt.Errorf("redis set transfer status: %w", err)
	}
	switch code {
	case 1:
		return nil
	case -1:
		return transferNotFound(id)
	default:
		return transitionConflict(id, model.TransferStatus(status), update.Status)
	}
}

// RequestCancel sets the cancel flag on a non-terminal job.
func (l *RedisLedger) RequestCancel(ctx context.Context, id string) error {
	code, err := requestCancelScript.Run(ctx, l.client, []string{l.jobKey(id)}, l.now()).Int()
	if err != nil {
		return fmt.Errorf("redis request transfer cancel: %w", err)
	}
	if code == -1 {
		return transferNotFound(id)
	}
	return nil
}

// CancelRequested reads the cancel flag.
func (l *RedisLedger) CancelRequested(ctx context.Context, id string) (bool, error) {
	v, err := l.client.HGet(ctx, l.jobKey(id), "cancel_requested").Result()
	if errors.Is(err, redis.Nil) {
		return false, transferNotFound(id)
	}
	if err != nil {
		return false, fmt.Errorf("redis read cancel flag: %w", err)
	}
	return v == "1", nil
}

// List returns jobs most recent first, walking the index in pages. The index is ordered by
// creation, so a staleness cutoff scans the whole index before ordering by last update.
func (l *RedisLedger) List(ctx context.Context, opts model.TransferListOptions) ([]*model.TransferJob, error) {
	limit, offset := normalizeTransferList(opts)
	if opts.UpdatedBefore != nil {
		return l.listStale(ctx, opts, limit, offset)
	}

	out := make([]*model.TransferJob, 0, limit)
	skipped := 0
	for start := int64(0); len(out) < limit; start += redisListPage {
		ids, err := l.client.ZRevRange(ctx, l.indexKey(), start, start+redisListPage-1).Result()
		if err != nil {
			return nil, fmt.Errorf("redis list transfer index: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		jobs, err := l.getMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, job := range jobs {
			if !matchesTransferList(job, opts) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, job)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (l *RedisLedger) listStale(
	ctx context.Context,
	opts model.TransferListOptions,
	limit, offset int,
) ([]*model.TransferJob, error) {
	var matched []*model.TransferJob
	for start := int64(0); ; start += redisListPage {
		ids, err := l.client.ZRange(ctx, l.indexKey(), start, start+redisListPage-1).Result()
		if err != nil {
			return nil, fmt.Errorf("redis list transfer index: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		jobs, err := l.getMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, job := range jobs {
			if matchesTransferList(job, opts) {
				matched = append(matched, job)
			}
		}
	}
	sortTransferList(matched, opts)
	return pageTransferList(matched, limit, offset), nil
}

// Prune removes terminal jobs that finished before olderThan along with stale index entries.
func (l *RedisLedger) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	ids, err := l.client.ZRange(ctx, l.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list transfer index: %w", err)
	}

	var doomed []string
	for start := 0; start < len(ids); start += redisListPage {
		page := ids[start:min(start+redisListPage, len(ids))]
		pipe := l.client.Pipeline()
		cmds := make([]*redis.SliceCmd, len(page))
		for i, id := range page {
			cmds[i] = pipe.HMGet(ctx, l.jobKey(id), "status", "finished_at")
		}
		if _, execErr := pipe.Exec(ctx); execErr != nil && !errors.Is(execErr, redis.Nil) {
			return 0, fmt.Errorf("redis prune scan: %w", execErr)
		}
		for i, cmd := range cmds {
			vals := cmd.Val()
			if len(vals) != 2 || vals[0] == nil {
				doomed = append(doomed, page[i])
				continue
			}
			status, _ := vals[0].(string)
			finished, _ := vals[1].(string)
			if !model.TransferStatus(status).Terminal() || finished == "" {
				continue
			}
			at, parseErr := parseRedisTime(finished)
			if parseErr == nil && at.Before(olderThan) {
				doomed = append(doomed, page[i])
			}
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	keys := make([]string, len(doomed))
	members := make([]any, len(doomed))
	for i, id := range doomed {
		keys[i] = l.jobKey(id)
		members[i] = id
	}
	pipe := l.client.TxPipeline()
	del := pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, l.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis prune transfer jobs: %w", err)
	}
	return int(del.Val()), nil
}

func (l *RedisLedger) getMany(ctx context.Context, ids []string) ([]*model.TransferJob, error) {
	pipe := l.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, l.jobKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis load transfer jobs: %w", err)
	}

	out := make([]*model.TransferJob, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		job, err := decodeRedisTransfer(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

// runStatusScript runs a script that replies {code, status}.
func runStatusScript(
	ctx context.Context,
	client redis.UniversalClient,
	script *redis.Script,
	keys []string,
	args ...any,
) (int64, string, error) {
	res, err := script.Run(ctx, client, keys, args...).Slice()
	if err != nil {
		return 0, "", err
	}
	if len(res) != 2 {
		return 0, "", fmt.Errorf("unexpected script reply %v", res)
	}
	code, ok := res[0].(int64)
	if !ok {
		return 0, "", fmt.Errorf("unexpected script code %T", res[0])
	}
	status, _ := res[1].(string)
	return code, status, nil
}

func formatRedisTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseRedisTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// encodeRedisTransfer flattens a job into HSET field/value pairs. Optional fields are omitted.
func encodeRedisTransfer(job *model.TransferJob) ([]any, error) {
	fields := []any{
		"id", job.ID,
		"target_collection_id", job.TargetCollectionID,
		"mode", string(job.Mode),
		"total", strconv.Itoa(job.Total),
		"processed", strconv.Itoa(job.Processed),
		"status", string(job.Status),
		"cancel_requested", boolField(job.CancelRequested),
		"created_at", formatRedisTime(job.CreatedAt),
		"updated_at", formatRedisTime(job.UpdatedAt),
	}
	if job.SourceCollectionID != nil {
		fields = append(fields, "source_collection_id", *job.SourceCollectionID)
	}
	if job.CompanyIDs != nil {
		ids, err := json.Marshal(job.CompanyIDs)
		if err != nil {
			return nil, fmt.Errorf("encode company ids: %w", err)
		}
		fields = append(fields, "company_ids", string(ids))
	}
	if job.Error != nil {
		fields = append(fields, "error", *job.Error)
	}
	if job.StartedAt != nil {
		fields = append(fields, "started_at", formatRedisTime(*job.StartedAt))
	}
	if job.FinishedAt != nil {
		fields = append(fields, "finished_at", formatRedisTime(*job.FinishedAt))
	}
	return fields, nil
}

func decodeRedisTransfer(fields map[string]string) (*model.TransferJob, error) {
	job := &model.TransferJob{
		ID:                 fields["id"],
		TargetCollectionID: fields["target_collection_id"],
		Mode:               model.TransferMode(fields["mode"]),
		Status:             model.TransferStatus(fields["status"]),
		CancelRequested:    fields["cancel_requested"] == "1",
	}

	var err error
	if job.Total, err = strconv.Atoi(fields["total"]); err != nil {
		return nil, fmt.Errorf("decode transfer total: %w", err)
	}
	if job.Processed, err = strconv.Atoi(fields["processed"]); err != nil {
		return nil, fmt.Errorf("decode transfer processed: %w", err)
	}
	if job.CreatedAt, err = parseRedisTime(fields["created_at"]); err != nil {
		return nil, fmt.Errorf("decode transfer created_at: %w", err)
	}
	if job.UpdatedAt, err = parseRedisTime(fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("decode transfer updated_at: %w", err)
	}
	if v, ok := fields["source_collection_id"]; ok {
		job.SourceCollectionID = &v
	}
	if v, ok := fields["company_ids"]; ok {
		if err := json.Unmarshal([]byte(v), &job.CompanyIDs); err != nil {
			return nil, fmt.Errorf("decode company ids: %w", err)
		}
	}
	if v, ok := fields["error"]; ok {
		job.Error = &v
	}
	for name, dst := range map[string]**time.Time{"started_at": &job.StartedAt, "finished_at": &job.FinishedAt} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		at, parseErr := parseRedisTime(v)
		if parseErr != nil {
			return nil, fmt.Errorf("decode transfer %s: %w", name, parseErr)
		}
		*dst = &at
	}
	return job, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
