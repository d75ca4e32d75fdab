package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskscope/taskscope/internal/log"
)

func TestCtxValues(t *testing.T) {
	ctx := log.CtxWithValues(context.Background(), log.Kv{"a": 1, "b": "x"})
	ctx = log.CtxWithValues(ctx, log.Kv{"b": "y", "c": true})

	assert.Equal(t, log.Kv{"a": 1, "b": "y", "c": true}, log.ValuesFromCtx(ctx))
	assert.Equal(t, log.Kv{}, log.ValuesFromCtx(context.Background()))
}

func TestNoopSetValuesOnCtx(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, log.Noop.SetValuesOnCtx(ctx, log.Kv{"a": 1}))
	assert.Equal(t, log.Noop, log.Noop.WithValues(log.Kv{"a": 1}))
}
