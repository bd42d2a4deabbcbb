package fixtures

import "github.com/sgaunet/scm-adapter/pkg/platform"

// ValidRepository returns the repository PROJ/repo as the adapters see it.
func ValidRepository() platform.Repository {
	return platform.NewRepository("PROJ", "repo")
}

// ValidPrBodyInput returns a body input with two updates and one note.
func ValidPrBodyInput() platform.PrBodyInput {
	return platform.PrBodyInput{
		Title:   "Update dependencies",
		Summary: "This PR updates the following dependencies.",
		Updates: []platform.PrUpdate{
			{Package: "lodash", Type: "minor", From: "4.17.20", To: "4.17.21", URL: "https://github.com/lodash/lodash"},
			{Package: "golang.org/x/net", Type: "patch", From: "v0.45.0", To: "v0.46.0"},
		},
		Notes:  []string{"Automerge is disabled."},
		Footer: "Generated by the dependency bot.",
	}
}

// StatusChecks returns one check per state.
func StatusChecks() []platform.StatusCheck {
	return []platform.StatusCheck{
		{Context: "build", State: platform.StateSuccess},
		{Context: "lint", State: platform.StatePending},
		{Context: "test", State: platform.StateFailure},
	}
}
