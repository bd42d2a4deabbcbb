package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sgaunet/scm-adapter/pkg/platform"
	"github.com/spf13/cobra"
)

var errInvalidStatus = errors.New("status must be context=state with state success, pending or failure")

type statusOptions struct {
	required    []string
	set         string
	description string
	targetURL   string
}

func newStatusCmd() *cobra.Command {
	var opts statusOptions
	cmd := &cobra.Command{
		Use:   "status <repository> <branch>",
		Short: "Show or set the status checks of a branch",
		Args:  cobra.ExactArgs(2), //nolint:mnd // repository and branch
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), a, args[0], args[1], opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.required, "required", "r", nil, "Status contexts that must be present")
	cmd.Flags().StringVar(&opts.set, "set", "", "Set a status check, as context=state")
	cmd.Flags().StringVar(&opts.description, "description", "", "Description of the status set with --set")
	cmd.Flags().StringVar(&opts.targetURL, "url", "", "Target URL of the status set with --set")
	return cmd
}

// parseStatus reads "context=state".
func parseStatus(s string) (string, platform.BranchState, error) {
	name, state, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: %q", errInvalidStatus, s)
	}
	switch st := platform.BranchState(strings.ToLower(strings.TrimSpace(state))); st {
	case platform.StateSuccess, platform.StatePending, platform.StateFailure:
		return name, st, nil
	default:
		return "", "", fmt.Errorf("%w: %q", errInvalidStatus, s)
	}
}

func runStatus(ctx context.Context, a *app, repoArg, branch string, opts statusOptions) error {
	var check *platform.StatusCheck
	if opts.set != "" {
		name, state, err := parseStatus(opts.set)
		if err != nil {
			return err
		}
		check = &platform.StatusCheck{
			Context:     name,
			State:       state,
			Description: opts.description,
			TargetURL:   opts.targetURL,
		}
	}

	s, err := a.openSession(ctx, repoArg)
	if err != nil {
		return err
	}
	defer a.closeSession(s)

	if check != nil {
		if err := s.SetBranchStatus(ctx, branch, *check); err != nil {
			return err
		}
		a.log.Success(fmt.Sprintf("Status %s set to %s on %s", check.Context, check.State, branch))
	}

	state, err := s.GetCombinedBranchStatus(ctx, branch, opts.required)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, state)
	return nil
}
