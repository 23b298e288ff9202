package redis

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisSessionCache struct {
	client redis.UniversalClient
}

func NewRedisSessionCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisSessionCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisSessionCache{client: client}, nil
}

func (c *RedisSessionCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisSessionCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		// Expired or never set; callers treat this as "session expired"
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisSessionCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisSessionCache) Publish(ctx context.Context, channel string, message []byte) error {
	return c.client.Publish(ctx, channel, message).Err()
}

func (c *RedisSessionCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := c.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}
