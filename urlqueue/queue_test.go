package urlqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starfys/pcapfeatures/capwork"
)

func TestWorkQueueLowestIndexIsHighestPriority(t *testing.T) {
	cases := []struct {
		name    string
		indexes []uint64
		want    uint64
	}{
		{"ascending insert", []uint64{1, 2, 3}, 1},
		{"descending insert", []uint64{3, 2, 1}, 1},
		{"single item", []uint64{5}, 5},
		{"duplicate indexes", []uint64{2, 2, 1}, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := NewWorkQueue[capwork.WorkType, capwork.CaptureWork]()
			for _, idx := range tc.indexes {
				q.AddWork(capwork.Normal, capwork.CaptureWork{Index: idx})
			}
			clientID := q.AddClient([]capwork.WorkType{capwork.Normal})
			_, work, ok := q.RequestWork(clientID)
			require.True(t, ok)
			assert.Equal(t, tc.want, work.Index)
		})
	}
}

func TestWorkQueuePopsInPriorityOrder(t *testing.T) {
	q := NewWorkQueue[capwork.WorkType, capwork.CaptureWork]()
	for _, idx := range []uint64{5, 1, 3, 2, 4} {
		q.AddWork(capwork.Normal, capwork.CaptureWork{Index: idx})
	}
	clientID := q.AddClient([]capwork.WorkType{capwork.Normal})

	var got []uint64
	for {
		_, work, ok := q.RequestWork(clientID)
		if !ok {
			break
		}
		got = append(got, work.Index)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)
}

func TestWorkQueueUnknownClientReturnsNotOK(t *testing.T) {
	q := NewWorkQueue[capwork.WorkType, capwork.CaptureWork]()
	_, _, ok := q.RequestWork(999)
	assert.False(t, ok)
}

func TestWorkQueueClientPreferenceOrderFallsThrough(t *testing.T) {
	q := NewWorkQueue[capwork.WorkType, capwork.CaptureWork]()
	q.AddWork(capwork.Tor, capwork.CaptureWork{Index: 1})
	clientID := q.AddClient([]capwork.WorkType{capwork.Normal, capwork.Tor})

	workType, work, ok := q.RequestWork(clientID)
	require.True(t, ok)
	assert.Equal(t, capwork.Tor, workType)
	assert.Equal(t, uint64(1), work.Index)
}

func TestWorkQueueClientLifecycle(t *testing.T) {
	q := NewWorkQueue[capwork.WorkType, capwork.CaptureWork]()
	id1 := q.AddClient([]capwork.WorkType{capwork.Normal})
	_ = q.AddClient([]capwork.WorkType{capwork.Tor})
	assert.Equal(t, 2, q.NumClients())

	q.RemoveClient(id1)
	assert.Equal(t, 1, q.NumClients())
}
