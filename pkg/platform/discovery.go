package platform

import (
	"context"
	"sync"
)

// CollectRepositories lists the repositories of every project concurrently
// and flattens the result. The first failure cancels the other listings and
// is returned without any repositories.
func CollectRepositories[P any](
	ctx context.Context,
	projects []P,
	list func(ctx context.Context, project P) ([]Repository, error),
) ([]Repository, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]Repository, len(projects))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for i, p := range projects {
		wg.Add(1)
		go func(i int, p P) {
			defer wg.Done()
			repos, err := list(ctx, p)
			if err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			results[i] = repos
		}(i, p)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	seen := make(map[Repository]bool)
	var out []Repository
	for _, repos := range results {
		for _, r := range repos {
			if seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out, nil
}
