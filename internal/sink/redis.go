package sink

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/linkspider/internal/model"
)

type listPusher interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	Close() error
}

// Redis appends each record as JSON to a list, oldest first.
type Redis struct {
	client listPusher
	key    string
}

// NewRedis creates a Redis sink that pushes onto key.
func NewRedis(addr, password string, db int, key string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		key: key,
	}
}

// NewRedisWithClient builds a sink around a custom client (tests).
func NewRedisWithClient(client listPusher, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Key returns the list the sink pushes onto.
func (r *Redis) Key() string {
	return r.key
}

// Record implements Sink.
func (r *Redis) Record(ctx context.Context, rec model.FetchRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, r.key, payload).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
