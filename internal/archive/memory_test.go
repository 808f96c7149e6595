package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPutObject(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	uri, err := m.PutObject(context.Background(), "submissions/1/100.json", "application/json", []byte(`{"name":"A"}`))
	require.NoError(t, err)
	require.Equal(t, "mem://submissions/1/100.json", uri)

	data, ok := m.Object("submissions/1/100.json")
	require.True(t, ok)
	require.JSONEq(t, `{"name":"A"}`, string(data))
}

func TestMemoryPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	_, err := m.PutObject(context.Background(), "", "application/json", nil)
	require.Error(t, err)
}
