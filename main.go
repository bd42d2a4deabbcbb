// Package main provides the entry point for the scm-adapter CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/internal/logger"
	"github.com/sgaunet/scm-adapter/internal/security"
	"github.com/sgaunet/scm-adapter/internal/ui"
	"github.com/sgaunet/scm-adapter/internal/urlutil"
	"github.com/sgaunet/scm-adapter/pkg/config"
	"github.com/sgaunet/scm-adapter/pkg/git"
	"github.com/sgaunet/scm-adapter/pkg/platform"
	"github.com/spf13/cobra"
)

var (
	errInvalidRepositoryArg = errors.New("cannot read a repository from argument")
	errUnknownPlatformFlag  = errors.New("unknown platform")
)

var (
	logLevel     string
	configPath   string
	platformName string
	endpoint     string
)

var rootCmd = &cobra.Command{
	Use:   "scm-adapter",
	Short: "Drive Bitbucket Server, GitHub and GitLab repositories through one adapter",
	Long: `scm-adapter lists repositories, inspects branches and pull requests,
reports and sets commit statuses, and keeps issues, comments and pull requests
in a desired state on Bitbucket Server, GitHub and GitLab.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "",
		"Set log level (debug, info, warn, error); defaults to log_level from the config")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file (default ~/.config/scm-adapter/config.yml)")
	rootCmd.PersistentFlags().StringVarP(&platformName, "platform", "p", "",
		"Override the configured platform (bitbucket, github, gitlab)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "",
		"Override the configured API endpoint")

	rootCmd.AddCommand(
		newReposCmd(),
		newInspectCmd(),
		newStatusCmd(),
		newEnsureIssueCmd(),
		newCommentCmd(),
		newPrCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", security.SanitizeError(err))
		os.Exit(1)
	}
}

// app carries what every command needs.
type app struct {
	cfg      *config.Config
	log      *bullets.Logger
	platform platform.Platform
	prompter ui.Prompter
	out      io.Writer
}

// newApp loads the configuration, applies the global flags and builds the
// platform adapter.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if platformName != "" {
		cfg.Platform = strings.ToLower(platformName)
		if !config.IsKnownPlatform(cfg.Platform) {
			return nil, fmt.Errorf("%w: %s", errUnknownPlatformFlag, platformName)
		}
	}
	if endpoint != "" {
		cfg.Endpoint = strings.TrimSuffix(endpoint, "/")
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log := logger.NewLogger(level)
	log.Debug("Configuration loaded, platform: " + cfg.Platform)

	p, err := platform.New(cfg.Platform, platform.Options{
		Credentials:           cfg.HostRuleStore(),
		Logger:                log,
		SSHKey:                cfg.SSHKey,
		InsecureIgnoreHostKey: cfg.InsecureIgnoreHostKey,
	})
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		log:      log,
		platform: p,
		prompter: ui.NewPrompter(),
		out:      cmd.OutOrStdout(),
	}, nil
}

func (a *app) hint() hostrules.Hint {
	return hostrules.Hint{Endpoint: a.cfg.Endpoint}
}

// listRepositories returns the sorted repository paths of the platform.
func (a *app) listRepositories(ctx context.Context) ([]string, error) {
	repos, err := a.platform.ListRepositories(ctx, a.hint())
	if err != nil {
		return nil, err
	}
	names := make([]string, len(repos))
	for i, r := range repos {
		names[i] = r.String()
	}
	sort.Strings(names)
	return names, nil
}

// resolveRepository reads a repository from arg, which may be a path or a
// clone URL. An empty arg lists the repositories and asks the user.
func (a *app) resolveRepository(ctx context.Context, arg string) (platform.Repository, error) {
	if arg == "" {
		names, err := a.listRepositories(ctx)
		if err != nil {
			return platform.Repository{}, err
		}
		if arg, err = ui.PickRepository(a.prompter, names); err != nil {
			return platform.Repository{}, err
		}
	}
	path := urlutil.RepositoryPath(arg)
	if path == "" {
		return platform.Repository{}, fmt.Errorf("%w: %q", errInvalidRepositoryArg, arg)
	}
	return platform.ParseRepository(path)
}

// openSession initialises the repository named by arg in the work dir.
//
//nolint:ireturn // Sessions are only available behind the interface.
func (a *app) openSession(ctx context.Context, arg string) (platform.Session, error) {
	repo, err := a.resolveRepository(ctx, arg)
	if err != nil {
		return nil, err
	}
	a.log.Info("Opening " + repo.String())
	s, err := a.platform.InitRepo(ctx, platform.InitOptions{
		Repository: repo,
		Hint:       a.hint(),
		LocalDir:   filepath.Join(a.cfg.WorkDir, a.platform.Name(), repo.Namespace, repo.Name),
		GitAuthor:  git.Author{Name: a.cfg.GitAuthor.Name, Email: a.cfg.GitAuthor.Email},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", repo, err)
	}
	return s, nil
}

// closeSession closes s, logging rather than failing the command.
func (a *app) closeSession(s platform.Session) {
	if err := s.Close(); err != nil {
		a.log.Warn("Failed to close session: " + security.SanitizeError(err).Error())
	}
}

func argOrEmpty(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
