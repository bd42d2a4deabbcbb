package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sgaunet/scm-adapter/internal/timeutil"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "inspect [repository]",
		Short: "Show base branch, branches and open pull requests of a repository",
		Long: `Show base branch, branches and open pull requests of a repository.
Without an argument the repositories are listed for interactive selection.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return runInspect(cmd.Context(), a, argOrEmpty(args, 0), prefix, time.Now())
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only show branches starting with this prefix")
	return cmd
}

func runInspect(ctx context.Context, a *app, repoArg, prefix string, now time.Time) error {
	s, err := a.openSession(ctx, repoArg)
	if err != nil {
		return err
	}
	defer a.closeSession(s)

	fmt.Fprintf(a.out, "Repository:     %s\n", s.Repository())
	fmt.Fprintf(a.out, "Base branch:    %s\n", s.BaseBranch())
	fmt.Fprintf(a.out, "Default branch: %s\n", s.DefaultBranch())

	forceRebase, err := s.GetRepoForceRebase(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Force rebase:   %t\n", forceRebase)

	branches, err := s.GetAllBranches(ctx, prefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\nBranches (%d):\n", len(branches))
	for _, b := range branches {
		at, err := s.GetBranchLastCommitTime(ctx, b)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "  %s (%s ago)\n", b, timeutil.FormatAge(at, now))
	}

	prs, err := s.GetPrList(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "\nOpen pull requests:")
	for _, pr := range prs {
		if !pr.IsOpen() {
			continue
		}
		fmt.Fprintf(a.out, "  #%d %s (%s -> %s)\n", pr.Number, pr.Title, pr.SourceBranch, pr.TargetBranch)
	}
	return nil
}
