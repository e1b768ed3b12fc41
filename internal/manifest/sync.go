package manifest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v69/github"
)

// Syncer refreshes SourceTag on every catalog entry that names a
// SourceRepo, by listing that repo's GitHub releases. Read-only: it
// never downloads a release asset or executes anything from it — the
// compile-time registry remains the only thing that can answer "given
// a kind name, return a constructor". This exists purely so a catalog
// listing can tell an operator "plugin X's upstream published v1.4.0"
// without them leaving the control API.
type Syncer struct {
	client *github.Client
	logger *slog.Logger
}

// NewSyncer wraps an authenticated or anonymous *github.Client.
func NewSyncer(client *github.Client, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{client: client, logger: logger}
}

// Sync fetches the latest release tag for every entry in cat that
// names a SourceRepo, skipping entries that don't. Individual lookup
// failures are logged and skipped rather than aborting the whole sync.
func (s *Syncer) Sync(ctx context.Context, cat *Catalog) error {
	for _, e := range cat.List() {
		if e.SourceRepo == "" {
			continue
		}
		owner, repo, err := splitRepo(e.SourceRepo)
		if err != nil {
			s.logger.Warn("manifest: skipping malformed source repo", "kind", e.Kind, "repo", e.SourceRepo, "error", err)
			continue
		}

		release, _, err := s.client.Repositories.GetLatestRelease(ctx, owner, repo)
		if err != nil {
			s.logger.Warn("manifest: fetch latest release failed", "kind", e.Kind, "repo", e.SourceRepo, "error", err)
			continue
		}
		cat.setSourceTag(e.Kind, release.GetTagName())
	}
	return nil
}

func splitRepo(spec string) (owner, repo string, err error) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '/' {
			return spec[:i], spec[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("expected owner/repo, got %q", spec)
}
