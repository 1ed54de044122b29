package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAll(t *testing.T) {
	tests := []struct {
		name string
		fns  []func(context.Context) (int, error)
		want []int
	}{
		{
			name: "empty",
			want: []int{},
		},
		{
			name: "all succeed in order",
			fns: []func(context.Context) (int, error){
				func(context.Context) (int, error) { time.Sleep(20 * time.Millisecond); return 1, nil },
				func(context.Context) (int, error) { return 2, nil },
				func(context.Context) (int, error) { time.Sleep(5 * time.Millisecond); return 3, nil },
			},
			want: []int{1, 2, 3},
		},
		{
			name: "failures are skipped",
			fns: []func(context.Context) (int, error){
				func(context.Context) (int, error) { return 1, nil },
				func(context.Context) (int, error) { return 0, errors.New("rate limited") },
				func(context.Context) (int, error) { panic("bad state") },
				func(context.Context) (int, error) { return 4, nil },
			},
			want: []int{1, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			require.NotPanics(t, func() {
				got = RunAll(context.Background(), testLogger(t), tt.fns)
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunAll_Concurrent(t *testing.T) {
	const n = 20
	fns := make([]func(context.Context) (string, error), n)
	for i := range fns {
		fns[i] = func(context.Context) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return fmt.Sprint(i), nil
		}
	}

	start := time.Now()
	got := RunAll(context.Background(), testLogger(t), fns)
	assert.Len(t, got, n)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGather_PanicCapturedPerItem(t *testing.T) {
	out := Gather(context.Background(), []func(context.Context) (string, error){
		func(context.Context) (string, error) { panic("x") },
		func(context.Context) (string, error) { return "ok", nil },
	})

	require.Len(t, out, 2)
	assert.ErrorIs(t, out[0].Err, ErrTaskPanic)
	assert.NoError(t, out[1].Err)
	assert.Equal(t, "ok", out[1].Value)
	assert.Nil(t, Gather[int](context.Background(), nil))
}
