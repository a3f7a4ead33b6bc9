package mongodb_test

import (
	"testing"
	"time"

	"github.com/gobeans/beans/configure/mongodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := mongodb.NewDefaultOptions("default")

	assert.Equal(t, "default", opts.Name)
	assert.Equal(t, "mongodb://localhost:27017", opts.Uri)
	assert.Equal(t, uint64(100), opts.MaxPoolSize)
	assert.Equal(t, 10*time.Second, opts.Timeout)
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*mongodb.MongoOptions)
	}{
		{"empty name", func(o *mongodb.MongoOptions) { o.Name = "" }},
		{"empty uri", func(o *mongodb.MongoOptions) { o.Uri = "" }},
		{"zero timeout", func(o *mongodb.MongoOptions) { o.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := mongodb.NewDefaultOptions("default")
			tt.mutate(opts)
			assert.Error(t, opts.Validate())
		})
	}
}

func TestBuilderInvalidConfig(t *testing.T) {
	builder := mongodb.NewBuilder(nil)
	builder.AddClient("bad", func(o *mongodb.MongoOptions) {
		o.Uri = ""
	})

	_, err := builder.Build(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestBuilderDuplicateClient(t *testing.T) {
	builder := mongodb.NewBuilder(nil)
	builder.AddClient("dup", nil)
	builder.AddClient("dup", nil)

	_, err := builder.Build(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already configured")
}

func TestBuilderEmpty(t *testing.T) {
	builder := mongodb.NewBuilder(nil)

	factory, err := builder.Build(nil)
	require.NoError(t, err)
	assert.Nil(t, factory)
}

func TestFactoryGetMissing(t *testing.T) {
	factory := mongodb.NewMongoClientFactory()

	_, err := factory.Get("missing")
	assert.Error(t, err)
}
