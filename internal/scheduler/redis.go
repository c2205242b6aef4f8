package scheduler

import (
	"crypto/tls"
	"fmt"
	"time"

	"leadflow_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const defaultQueue = "default"

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

// connection resolves the Redis options and queue name shared by every asynq component.
func connection(cfg config.SchedulerConfig) (asynq.RedisClientOpt, string, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return asynq.RedisClientOpt{}, "", fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return asynq.RedisClientOpt{}, "", err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = defaultQueue
	}
	return opt, queue, nil
}

// taskOptions are applied to every stale-evaluation enqueue. Uniqueness lasts
// one interval, so a manual trigger while a sweep is pending is absorbed.
// Failed sweeps are not retried: the next cycle re-evaluates everything.
func taskOptions(queue string, cfg config.SchedulerConfig) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.Unique(sweepInterval(cfg.GetStaleEvaluationInterval())),
		asynq.MaxRetry(0),
	}
}

// sweepInterval falls back to five minutes; asynq rejects uniqueness windows under a second.
func sweepInterval(interval time.Duration) time.Duration {
	if interval < time.Second {
		return 5 * time.Minute
	}
	return interval
}
