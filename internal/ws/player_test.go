package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlayerDefaults(t *testing.T) {
	p := NewPlayer()
	st := p.State()

	assert.Len(t, st.ID, 6)
	assert.Regexp(t, "^[0-9A-Z]{6}$", st.ID)
	assert.Equal(t, "Default", st.Username)
	assert.Equal(t, RoleUnassigned, st.Type)
	assert.Equal(t, SeatNone, st.IsSit)
	assert.Equal(t, "None", st.Diskusi)
	assert.False(t, st.Ready)
	assert.Equal(t, st.ID, p.ID())
}

func TestPlayerStateIsACopy(t *testing.T) {
	p := NewPlayer()

	st := p.State()
	st.Username = "mutated"
	st.Position.X = 99

	fresh := p.State()
	assert.Equal(t, "Default", fresh.Username, "mutating a snapshot must not write back")
	assert.Equal(t, 0.0, fresh.Position.X)

	after := p.Update(func(s *PlayerState) { s.Username = "Andi" })
	assert.Equal(t, "Andi", after.Username, "Update returns the post-change snapshot")
	assert.Equal(t, "Andi", p.State().Username)
}

// Writers move both coordinates to the same value in one Update; a reader
// observing X != Y would mean a torn read across a concurrent write.
func TestPlayerConcurrentReadersSeeConsistentState(t *testing.T) {
	p := NewPlayer()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st := p.State()
				assert.Equal(t, st.Position.X, st.Position.Y)
			}
		}()
	}

	for i := 1; i <= 500; i++ {
		v := float64(i)
		p.Update(func(s *PlayerState) { s.Position = Vector2{X: v, Y: v} })
	}
	close(stop)
	wg.Wait()

	final := p.State()
	assert.Equal(t, 500.0, final.Position.X)
}

func TestPlayerConcurrentUpdatesAllApply(t *testing.T) {
	p := NewPlayer()

	const workers, perWorker = 8, 250
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				p.Update(func(s *PlayerState) { s.Position.X++ })
			}
		}()
	}
	wg.Wait()

	require.Equal(t, float64(workers*perWorker), p.State().Position.X)
}
