package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newReposCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List the repositories visible to the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return runRepos(cmd.Context(), a, filter)
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only list repositories containing this text")
	return cmd
}

func runRepos(ctx context.Context, a *app, filter string) error {
	names, err := a.listRepositories(ctx)
	if err != nil {
		return err
	}
	filter = strings.ToLower(filter)
	count := 0
	for _, name := range names {
		if filter != "" && !strings.Contains(strings.ToLower(name), filter) {
			continue
		}
		fmt.Fprintln(a.out, name)
		count++
	}
	a.log.Info(fmt.Sprintf("%d repositories", count))
	return nil
}
