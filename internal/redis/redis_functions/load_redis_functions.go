package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Function names registered by the embedded libraries.
const (
	PublishEvent = "auction_publish_event"
	ArmTimer     = "auction_timer_arm"
	RateLimitHit = "rate_limit_hit"
)

//go:embed *.lua
var fs embed.FS

// Libraries returns the embedded Lua sources keyed by file name.
func Libraries() (map[string]string, error) {
	files, err := fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embed dir: %w", err)
	}
	out := make(map[string]string, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}
		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return nil, err
		}
		out[f.Name()] = string(code)
	}
	return out, nil
}

type functionLoader interface {
	FunctionLoadReplace(ctx context.Context, code string) *redis.StringCmd
}

// LoadAll loads or replaces every embedded Lua library in Redis.
func LoadAll(ctx context.Context, rdb functionLoader) error {
	libs, err := Libraries()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(libs))
	for name := range libs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := rdb.FunctionLoadReplace(ctx, libs[name]).Err(); err != nil {
			return fmt.Errorf("load lua %s: %w", name, err)
		}
		zap.L().Info("lua_function_loaded", zap.String("file", name))
	}
	return nil
}
