package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sgaunet/scm-adapter/pkg/platform"
	"github.com/spf13/cobra"
)

var errMissingTitle = errors.New("--title is required")

type issueOptions struct {
	title    string
	body     string
	bodyFile string
	close    bool
}

func newEnsureIssueCmd() *cobra.Command {
	var opts issueOptions
	cmd := &cobra.Command{
		Use:   "ensure-issue <repository>",
		Short: "Create or update an issue by title, or close it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return runEnsureIssue(cmd.Context(), a, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Issue title")
	cmd.Flags().StringVarP(&opts.body, "body", "b", "", "Issue body")
	cmd.Flags().StringVar(&opts.bodyFile, "body-file", "", "Read the issue body from a file")
	cmd.Flags().BoolVar(&opts.close, "close", false, "Close the open issues with this title instead")
	return cmd
}

// readBody returns body, or the contents of file when set.
func readBody(body, file string) (string, error) {
	if file == "" {
		return body, nil
	}
	// #nosec G304 - The user names the file on the command line
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read body file: %w", err)
	}
	return string(data), nil
}

func runEnsureIssue(ctx context.Context, a *app, repoArg string, opts issueOptions) error {
	if opts.title == "" {
		return errMissingTitle
	}
	body, err := readBody(opts.body, opts.bodyFile)
	if err != nil {
		return err
	}

	s, err := a.openSession(ctx, repoArg)
	if err != nil {
		return err
	}
	defer a.closeSession(s)

	if opts.close {
		if err := s.EnsureIssueClosing(ctx, opts.title); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "closed")
		return nil
	}

	res, err := s.EnsureIssue(ctx, opts.title, body)
	if errors.Is(err, platform.ErrUnsupported) {
		a.log.Warn(fmt.Sprintf("%s has no issue tracker", a.platform.Name()))
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res)
	return nil
}
