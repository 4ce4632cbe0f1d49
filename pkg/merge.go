package pkg

import (
	"sync"

	"github.com/kamaw/photodup/internal/models"
)

// Merge fans the output of several fingerprint workers into a single
// channel, closed once every worker is done.
func Merge(done <-chan struct{}, channels ...<-chan models.PhotoRecord) <-chan models.PhotoRecord {
	var wg sync.WaitGroup

	wg.Add(len(channels))
	records := make(chan models.PhotoRecord)
	multiplex := func(c <-chan models.PhotoRecord) {
		defer wg.Done()
		for r := range c {
			select {
			case <-done:
				return
			case records <- r:
			}
		}
	}

	for _, c := range channels {
		go multiplex(c)
	}

	go func() {
		wg.Wait()
		close(records)
	}()

	return records
}
