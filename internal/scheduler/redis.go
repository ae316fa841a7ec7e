package scheduler

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// RedisBackend keeps jobs in Redis:
//
//	<prefix>key:<dedup key>  job ID, claimed with SETNX
//	<prefix>due              sorted set of job IDs scored by run time
//	<prefix>jobs             hash of job ID to JSON
//
// A job is claimed by whoever removes its ID from the due set.
type RedisBackend struct {
	client redis.Cmdable
	prefix string
}

func NewRedisBackend(client redis.Cmdable, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "editorial_notify:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) keyOf(dedup string) string { return b.prefix + "key:" + dedup }
func (b *RedisBackend) dueSet() string            { return b.prefix + "due" }
func (b *RedisBackend) jobHash() string           { return b.prefix + "jobs" }

func (b *RedisBackend) ScheduleAt(ctx context.Context, job domain.ScheduledNotification) (bool, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return false, errors.Wrap(err, "encode scheduled notification")
	}

	ok, err := b.client.SetNX(ctx, b.keyOf(job.Key), job.ID, 0).Result()
	if err != nil {
		return false, errors.Wrap(err, "reserve dedup key")
	}
	if !ok {
		return false, nil
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, b.jobHash(), job.ID, data)
		pipe.ZAdd(ctx, b.dueSet(), &redis.Z{Score: float64(job.RunAt.Unix()), Member: job.ID})
		return nil
	})
	if err != nil {
		// Release the key so the trigger can be retried.
		b.client.Del(ctx, b.keyOf(job.Key))
		return false, errors.Wrap(err, "store scheduled notification")
	}
	return true, nil
}

func (b *RedisBackend) Scheduled(ctx context.Context, hook string) ([]domain.ScheduledNotification, error) {
	raw, err := b.client.HGetAll(ctx, b.jobHash()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list scheduled notifications")
	}
	var out []domain.ScheduledNotification
	for id, data := range raw {
		var job domain.ScheduledNotification
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return nil, errors.Wrapf(err, "decode scheduled notification %s", id)
		}
		if hook == "" || job.Hook == hook {
			out = append(out, job)
		}
	}
	sortJobs(out)
	return out, nil
}

func (b *RedisBackend) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledNotification, error) {
	opt := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.Unix(), 10)}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	due, err := b.client.ZRangeByScoreWithScores(ctx, b.dueSet(), opt).Result()
	if err != nil {
		return nil, errors.Wrap(err, "find due notifications")
	}

	var (
		out  []domain.ScheduledNotification
		errs error
	)
	for _, z := range due {
		id, _ := z.Member.(string)
		job, ok, err := b.claim(ctx, id, z.Score)
		if err != nil {
			errs = errors.CombineErrors(errs, err)
			continue
		}
		if ok {
			out = append(out, job)
		}
	}
	return out, errs
}

// claim takes one job off the due set. The job is decoded before the claim
// and put back on the due set if it cannot be released afterwards, so a
// failure never leaves a job unreachable.
func (b *RedisBackend) claim(ctx context.Context, id string, score float64) (domain.ScheduledNotification, bool, error) {
	var job domain.ScheduledNotification

	data, err := b.client.HGet(ctx, b.jobHash(), id).Result()
	if errors.Is(err, redis.Nil) {
		// Due entry without a job body.
		b.client.ZRem(ctx, b.dueSet(), id)
		return job, false, nil
	}
	if err != nil {
		return job, false, errors.Wrapf(err, "load scheduled notification %s", id)
	}
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return job, false, errors.Wrapf(err, "decode scheduled notification %s", id)
	}

	removed, err := b.client.ZRem(ctx, b.dueSet(), id).Result()
	if err != nil {
		return job, false, errors.Wrapf(err, "claim scheduled notification %s", id)
	}
	if removed == 0 {
		// Another worker claimed it first.
		return job, false, nil
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, b.jobHash(), id)
		pipe.Del(ctx, b.keyOf(job.Key))
		return nil
	})
	if err != nil {
		err = errors.Wrapf(err, "release scheduled notification %s", id)
		if zerr := b.client.ZAdd(ctx, b.dueSet(), &redis.Z{Score: score, Member: id}).Err(); zerr != nil {
			err = errors.CombineErrors(err, errors.Wrap(zerr, "return notification to due set"))
		}
		return job, false, err
	}
	return job, true, nil
}
