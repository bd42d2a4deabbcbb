package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sgaunet/scm-adapter/internal/labels"
	"github.com/sgaunet/scm-adapter/pkg/platform"
	"github.com/spf13/cobra"
)

var (
	errMergeNotReady = errors.New("branch status is not successful")
	errMergeAborted  = errors.New("merge aborted")
	errNotMerged     = errors.New("pull request could not be merged")
)

type prOptions struct {
	title      string
	body       string
	bodyFile   string
	labels     []string
	autoLabels bool
	merge      bool
	required   []string
	yes        bool
}

func newPrCmd() *cobra.Command {
	var opts prOptions
	cmd := &cobra.Command{
		Use:   "pr <repository> <branch>",
		Short: "Create or update the pull request of a branch, and optionally merge it",
		Long: `Create or update the pull request of a branch, and optionally merge it.
The open pull request from the branch is updated when it exists; otherwise a
new one targets the base branch. With --merge the pull request is merged once
the branch status is successful.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // repository and branch
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return runPr(cmd.Context(), a, args[0], args[1], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Pull request title")
	cmd.Flags().StringVarP(&opts.body, "body", "b", "", "Summary rendered at the top of the description")
	cmd.Flags().StringVar(&opts.bodyFile, "body-file", "", "Read the summary from a file")
	cmd.Flags().StringSliceVar(&opts.labels, "label", nil, "Labels of a new pull request")
	cmd.Flags().BoolVar(&opts.autoLabels, "auto-labels", false, "Derive labels from a conventional commit title")
	cmd.Flags().BoolVar(&opts.merge, "merge", false, "Merge the pull request when the branch status is successful")
	cmd.Flags().StringSliceVarP(&opts.required, "required", "r", nil, "Status contexts required before merging")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Merge without confirmation")
	return cmd
}

func (o prOptions) prLabels() []string {
	l := o.labels
	if o.autoLabels {
		l = append(l, labels.ForTitle(o.title)...)
	}
	return labels.Normalize(l)
}

func runPr(ctx context.Context, a *app, repoArg, branch string, opts prOptions) error {
	if opts.title == "" {
		return errMissingTitle
	}
	summary, err := readBody(opts.body, opts.bodyFile)
	if err != nil {
		return err
	}

	s, err := a.openSession(ctx, repoArg)
	if err != nil {
		return err
	}
	defer a.closeSession(s)

	body := s.GetPrBody(platform.PrBodyInput{Title: opts.title, Summary: summary})
	pr, err := ensurePr(ctx, a, s, branch, opts, body)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "#%d %s\n", pr.Number, pr.URL)

	if !opts.merge {
		return nil
	}
	return mergePr(ctx, a, s, pr, opts)
}

func ensurePr(ctx context.Context, a *app, s platform.Session, branch string, opts prOptions,
	body string,
) (*platform.PullRequest, error) {
	existing, err := s.GetBranchPr(ctx, branch)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Title == opts.title && existing.Body == body {
			a.log.Info(fmt.Sprintf("Pull request #%d is up to date", existing.Number))
			return existing, nil
		}
		if err := s.UpdatePr(ctx, existing.Number, opts.title, body); err != nil {
			return nil, err
		}
		a.log.Success(fmt.Sprintf("Pull request #%d updated", existing.Number))
		existing.Title, existing.Body = opts.title, body
		return existing, nil
	}

	pr, err := s.CreatePr(ctx, platform.CreatePrOptions{
		Branch:      branch,
		Title:       opts.title,
		Description: body,
		Labels:      opts.prLabels(),
	})
	if err != nil {
		return nil, err
	}
	a.log.Success(fmt.Sprintf("Pull request #%d created", pr.Number))
	return pr, nil
}

func mergePr(ctx context.Context, a *app, s platform.Session, pr *platform.PullRequest, opts prOptions) error {
	state, err := s.GetCombinedBranchStatus(ctx, pr.SourceBranch, opts.required)
	if err != nil {
		return err
	}
	if state != platform.StateSuccess {
		return fmt.Errorf("%w: %s is %s", errMergeNotReady, pr.SourceBranch, state)
	}

	if !opts.yes {
		ok, err := a.prompter.Confirm(fmt.Sprintf("Merge #%d %s?", pr.Number, pr.Title), false)
		if err != nil {
			return fmt.Errorf("failed to confirm: %w", err)
		}
		if !ok {
			return errMergeAborted
		}
	}

	merged, err := s.MergePr(ctx, pr.Number, pr.SourceBranch)
	if err != nil {
		return err
	}
	if !merged {
		return fmt.Errorf("%w: #%d", errNotMerged, pr.Number)
	}
	a.log.Success(fmt.Sprintf("Pull request #%d merged", pr.Number))
	return nil
}
