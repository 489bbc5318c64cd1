package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	e := New(EntryRecorded, "acc-1", "e-1", 1250, "food")
	data, err := e.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, EntryRecorded, got.Type)
	require.Equal(t, []string{"food"}, got.Categories)
	require.Equal(t, int64(1250), got.AmountCents)
	require.True(t, got.OccurredAt.Equal(e.OccurredAt))
}

func TestUnmarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"unknown type", `{"type":"entry.exploded","accountId":"a"}`},
		{"missing account", `{"type":"entry.recorded"}`},
		{"wrong field type", `{"type":"entry.recorded","accountId":"a","amountCents":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.body))
			require.Error(t, err)
		})
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, New(EntryRecorded, "a", "1", 10)))
	require.NoError(t, r.Publish(ctx, New(BudgetExceeded, "a", "1", 10, "food")))
	require.Equal(t, []Type{EntryRecorded, BudgetExceeded}, r.Types())

	r.Err = errors.New("broker down")
	require.Error(t, r.Publish(ctx, New(EntryRemoved, "a", "1", 10)))
	require.Len(t, r.Events(), 2)
}
