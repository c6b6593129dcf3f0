package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus[string]()

	var mu sync.Mutex
	received := map[int][]string{}

	for i := 0; i < 3; i++ {
		i := i
		bus.AddHandler(HandlerFunc[string](func(e string) {
			mu.Lock()
			received[i] = append(received[i], e)
			mu.Unlock()
		}))
	}

	bus.Notify("changed")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		if len(received) != 3 {
			return false
		}
		for _, events := range received {
			if len(events) != 1 || events[0] != "changed" {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestBus_NoHandlers(t *testing.T) {
	bus := NewBus[int]()
	bus.Notify(1)
}
