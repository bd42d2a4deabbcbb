package platform

import "context"

// CombineStatus reduces checks to one state: failure if any check failed,
// else pending if any is pending or a required context has no check, else
// success. No checks and no requirements is success.
func CombineStatus(checks []StatusCheck, required []string) BranchState {
	seen := make(map[string]bool, len(checks))
	state := StateSuccess
	for _, c := range checks {
		seen[c.Context] = true
		state = worse(state, c.State)
	}
	for _, name := range required {
		if !seen[name] {
			state = worse(state, StatePending)
		}
	}
	return state
}

func rank(s BranchState) int {
	switch s {
	case StateSuccess:
		return 0
	case StateFailure:
		return 2
	default:
		return 1
	}
}

func worse(a, b BranchState) BranchState {
	if rank(b) > rank(a) {
		if rank(b) == 1 {
			return StatePending
		}
		return b
	}
	return a
}

// findCheck returns the check with the given context, or nil. Providers list
// newest first, so the first match is the current one.
func findCheck(checks []StatusCheck, name string) *StatusCheck {
	for i := range checks {
		if checks[i].Context == name {
			c := checks[i]
			return &c
		}
	}
	return nil
}

// latestChecks keeps the first check per context.
func latestChecks(checks []StatusCheck) []StatusCheck {
	seen := make(map[string]bool, len(checks))
	out := make([]StatusCheck, 0, len(checks))
	for _, c := range checks {
		if seen[c.Context] {
			continue
		}
		seen[c.Context] = true
		out = append(out, c)
	}
	return out
}

// statusBackend is the provider side of branch status checks, keyed by commit.
type statusBackend interface {
	branchHead(ctx context.Context, branch string) (string, error)
	listChecks(ctx context.Context, sha string) ([]StatusCheck, error)
	createCheck(ctx context.Context, sha string, check StatusCheck) error
}

func combinedBranchStatus(ctx context.Context, b statusBackend, branch string, required []string) (BranchState, error) {
	sha, err := b.branchHead(ctx, branch)
	if err != nil {
		return "", err
	}
	checks, err := b.listChecks(ctx, sha)
	if err != nil {
		return "", err
	}
	return CombineStatus(latestChecks(checks), required), nil
}

func branchStatusCheck(ctx context.Context, b statusBackend, branch, name string) (*StatusCheck, error) {
	sha, err := b.branchHead(ctx, branch)
	if err != nil {
		return nil, err
	}
	checks, err := b.listChecks(ctx, sha)
	if err != nil {
		return nil, err
	}
	return findCheck(checks, name), nil
}

// setBranchStatus writes check unless the current check for its context
// already has the same state, description and target.
func setBranchStatus(ctx context.Context, b statusBackend, branch string, check StatusCheck) (bool, error) {
	sha, err := b.branchHead(ctx, branch)
	if err != nil {
		return false, err
	}
	checks, err := b.listChecks(ctx, sha)
	if err != nil {
		return false, err
	}
	if cur := findCheck(checks, check.Context); cur != nil && *cur == check {
		return false, nil
	}
	if err := b.createCheck(ctx, sha, check); err != nil {
		return false, err
	}
	return true, nil
}
