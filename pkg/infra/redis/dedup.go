package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"oip/dpreport/internal/business"
)

const (
	dedupKeyPrefix = "dpreport:dedup:"

	markProcessing = "processing"
	markDone       = "done"
)

// releaseScript 仅当标记仍为 processing 时删除，避免误删 done 标记
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DedupStore 基于 Redis 的两阶段消息去重（尽力而为）
// processing 标记的 TTL 不超过可见性超时，进程崩溃后重新投递仍会被处理
type DedupStore struct {
	client        *redis.Client
	processingTTL time.Duration
	doneTTL       time.Duration
}

// NewDedupStore 创建去重存储
func NewDedupStore(client *redis.Client, processingTTL, doneTTL time.Duration) *DedupStore {
	return &DedupStore{client: client, processingTTL: processingTTL, doneTTL: doneTTL}
}

// Begin 尝试写入 processing 标记，返回消息当前的去重状态
func (d *DedupStore) Begin(ctx context.Context, messageID string) (business.DedupStatus, error) {
	key := dedupKey(messageID)
	ok, err := d.client.SetNX(ctx, key, markProcessing, d.processingTTL).Result()
	if err != nil {
		return business.DedupNew, fmt.Errorf("dedup mark failed: %w", err)
	}
	if ok {
		return business.DedupNew, nil
	}

	val, err := d.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// 标记在两次调用之间过期，交给下一次投递
		return business.DedupInProgress, nil
	}
	if err != nil {
		return business.DedupNew, fmt.Errorf("dedup get failed: %w", err)
	}
	return statusOf(val), nil
}

// Complete 处理成功后写入 done 标记
func (d *DedupStore) Complete(ctx context.Context, messageID string) error {
	if err := d.client.Set(ctx, dedupKey(messageID), markDone, d.doneTTL).Err(); err != nil {
		return fmt.Errorf("dedup complete failed: %w", err)
	}
	return nil
}

// Release 处理失败后清除 processing 标记，重新投递时可以再次处理
func (d *DedupStore) Release(ctx context.Context, messageID string) error {
	if err := releaseScript.Run(ctx, d.client, []string{dedupKey(messageID)}, markProcessing).Err(); err != nil {
		return fmt.Errorf("dedup release failed: %w", err)
	}
	return nil
}

func statusOf(mark string) business.DedupStatus {
	if mark == markDone {
		return business.DedupDone
	}
	return business.DedupInProgress
}

func dedupKey(messageID string) string {
	return dedupKeyPrefix + messageID
}
