package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var errInvalidNumber = errors.New("invalid pull request number")

type commentOptions struct {
	topic    string
	body     string
	bodyFile string
	remove   bool
}

func newCommentCmd() *cobra.Command {
	var opts commentOptions
	cmd := &cobra.Command{
		Use:   "comment <repository> <number>",
		Short: "Ensure a topic comment on a pull request, or remove it",
		Long: `Ensure a topic comment on a pull request, or remove it.
A comment with the same topic is replaced; without a topic, the comment is
added unless an identical one exists.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // repository and number
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return runComment(cmd.Context(), a, args[0], args[1], opts)
		},
	}
	cmd.Flags().StringVar(&opts.topic, "topic", "", "Comment topic, rendered as a heading")
	cmd.Flags().StringVarP(&opts.body, "body", "b", "", "Comment body")
	cmd.Flags().StringVar(&opts.bodyFile, "body-file", "", "Read the comment body from a file")
	cmd.Flags().BoolVar(&opts.remove, "remove", false, "Remove the comments with this topic instead")
	return cmd
}

func parseNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidNumber, s)
	}
	return n, nil
}

func runComment(ctx context.Context, a *app, repoArg, numberArg string, opts commentOptions) error {
	number, err := parseNumber(numberArg)
	if err != nil {
		return err
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

	if opts.remove {
		if err := s.EnsureCommentRemoval(ctx, number, opts.topic); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "removed")
		return nil
	}

	res, err := s.EnsureComment(ctx, number, opts.topic, body)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res)
	return nil
}
