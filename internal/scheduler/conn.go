package scheduler

import (
	"github.com/hibiken/asynq"

	"github.com/angelmondragon/lms-engagements/pkg/config"
	"github.com/angelmondragon/lms-engagements/pkg/redis"
)

// RedisConnOpt maps the shared redis config onto asynq connection options so
// the queue lives on the same instance as the schedule index.
func RedisConnOpt(cfg config.RedisConfig) (asynq.RedisClientOpt, error) {
	opts, err := redis.OptionsFromConfig(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		TLSConfig:    opts.TLSConfig,
	}, nil
}
