package notify

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/logger"
)

func TestRecorder_DrainInOrder(t *testing.T) {
	r := NewRecorder(10)
	ctx := context.Background()

	r.Success(ctx, "Mug saved!")
	r.Error(ctx, "could not load product")

	got := r.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, LevelSuccess, got[0].Level)
	assert.Equal(t, "Mug saved!", got[0].Message)
	assert.Equal(t, LevelError, got[1].Level)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)

	assert.Empty(t, r.Drain())
	assert.NotNil(t, r.Drain())
}

func TestRecorder_DropsOldestWhenFull(t *testing.T) {
	r := NewRecorder(2)
	ctx := context.Background()
	r.Success(ctx, "one")
	r.Success(ctx, "two")
	r.Success(ctx, "three")

	assert.Equal(t, []string{"two", "three"}, r.Messages())
}

func TestRecorder_SustainedLoadKeepsFixedStorage(t *testing.T) {
	r := NewRecorder(3)
	ctx := context.Background()
	backing := &r.ring[0]

	for i := 0; i < 1000; i++ {
		r.Success(ctx, fmt.Sprintf("msg-%d", i))
	}

	assert.Len(t, r.ring, 3)
	assert.Same(t, backing, &r.ring[0])
	assert.Equal(t, []string{"msg-997", "msg-998", "msg-999"}, r.Messages())

	got := r.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, "msg-999", got[2].Message)

	r.Error(ctx, "after drain")
	assert.Equal(t, []string{"after drain"}, r.Messages())
	assert.Same(t, backing, &r.ring[0])
}

func TestMulti_FansOut(t *testing.T) {
	a, b := NewRecorder(0), NewRecorder(0)
	m := Multi{a, b, Discard{}}

	m.Success(context.Background(), "hi")
	m.Error(context.Background(), "oops")

	assert.Equal(t, []string{"hi", "oops"}, a.Messages())
	assert.Equal(t, []string{"hi", "oops"}, b.Messages())
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logger.NewWithWriter("test", "info", &buf))

	n.Success(context.Background(), "Mug added to cart")
	assert.Contains(t, buf.String(), `"message":"Mug added to cart"`)
	assert.Contains(t, buf.String(), `"level":"success"`)
}
