package redis_client

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	Host     string
	Port     uint16
	Password string
	DB       int
}

func (o Options) Addr() string { return fmt.Sprintf("%s:%d", o.Host, o.Port) }

// NewRedisClient dials Redis and fails fast when the server does not answer
// a ping within five seconds.
func NewRedisClient(o Options) (*redis.Client, error) {
	maxPool := min(runtime.NumCPU()*8, 512)

	rc := redis.NewClient(&redis.Options{
		Addr:     o.Addr(),
		Password: o.Password,
		DB:       o.DB,
		PoolSize: maxPool,
	})

	ctx, cancelFunc := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFunc()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		err = errors.New("redis connection failed: " + err.Error())
		zap.L().Error("redis_connect", zap.String("addr", o.Addr()), zap.Error(err))
		return nil, err
	}
	return rc, nil
}
