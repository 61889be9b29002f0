package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumkit/raft/internal/raft"
)

func TestGobCodecRoundTrip(t *testing.T) {
	c := gobCodec{}
	in := &raft.AppendEntryRequest{
		Source: 1, Target: 2, CurrentTerm: 3, PreviousIndex: 0, PreviousTerm: 0,
		Entries:     []raft.Entry{{Term: 3, Item: []byte("x")}},
		CommitIndex: 0,
	}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := new(raft.AppendEntryRequest)
	require.NoError(t, c.Unmarshal(data, out))

	assert.Equal(t, in, out)
}

func TestGobCodecName(t *testing.T) {
	assert.Equal(t, "gob", gobCodec{}.Name())
}
