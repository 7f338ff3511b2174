package core

import (
	"context"
	"sync"

	"github.com/fedragon/go-gallery/internal/models"
)

func merge(ctx context.Context, channels ...<-chan models.Media) <-chan models.Media {
	var wg sync.WaitGroup

	wg.Add(len(channels))
	media := make(chan models.Media)
	multiplex := func(c <-chan models.Media) {
		defer wg.Done()
		for m := range c {
			select {
			case <-ctx.Done():
				return
			case media <- m:
			}
		}
	}

	for _, c := range channels {
		go multiplex(c)
	}

	go func() {
		wg.Wait()
		close(media)
	}()

	return media
}
