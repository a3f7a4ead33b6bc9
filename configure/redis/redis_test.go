package redis_test

import (
	"testing"

	"github.com/gobeans/beans/configure/redis"
	"github.com/gobeans/beans/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := redis.NewDefaultOptions("cache")

	assert.Equal(t, "cache", opts.Name)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 0, opts.DB)
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(*redis.RedisClientOptions)
		expectErr bool
	}{
		{"valid", func(o *redis.RedisClientOptions) {}, false},
		{"missing name", func(o *redis.RedisClientOptions) { o.Name = "" }, true},
		{"missing addr", func(o *redis.RedisClientOptions) { o.Addr = "" }, true},
		{"negative db", func(o *redis.RedisClientOptions) { o.DB = -1 }, true},
		{"zero dial timeout", func(o *redis.RedisClientOptions) { o.DialTimeout = 0 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := redis.NewDefaultOptions("cache")
			tc.mutate(opts)
			err := opts.Validate()
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuilderInvalidConfig(t *testing.T) {
	logger := logging.NewNopLogger()
	builder := redis.NewBuilder()

	// 必填项缺失
	builder.AddClient("invalid", func(o *redis.RedisClientOptions) {
		o.Addr = ""
	})

	_, err := builder.Build(logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestBuilderDuplicateClient(t *testing.T) {
	logger := logging.NewNopLogger()
	builder := redis.NewBuilder()

	builder.AddClient("duplicate", nil)
	builder.AddClient("duplicate", nil)

	_, err := builder.Build(logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already configured")
}

func TestBuilderEmpty(t *testing.T) {
	logger := logging.NewNopLogger()
	builder := redis.NewBuilder()

	factory, err := builder.Build(logger)
	require.NoError(t, err)
	assert.Nil(t, factory)
}
