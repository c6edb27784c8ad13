package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/tutoragent/internal/config"
	"git.home.luguber.info/inful/tutoragent/internal/contentsource"
	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

// SyncCmd implements the 'sync' command.
type SyncCmd struct{}

func (s *SyncCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	syncer, err := newSyncer(cfg)
	if err != nil {
		return err
	}
	res, err := syncer.Sync(g.Ctx)
	if err != nil {
		return err
	}
	switch {
	case res.Cloned:
		_, _ = fmt.Fprintf(g.Out, "Cloned content at %s into %s\n", res.ShortCommit(), syncer.Dir())
	case res.Changed:
		_, _ = fmt.Fprintf(g.Out, "Content updated to %s\n", res.ShortCommit())
	default:
		_, _ = fmt.Fprintf(g.Out, "Content already up to date at %s\n", res.ShortCommit())
	}
	return nil
}

func newSyncer(cfg *config.Config) (*contentsource.Syncer, error) {
	src := cfg.Content.Source
	if src == nil {
		return nil, ferrors.ConfigError("no content source configured").
			WithContext("field", "content.source").Build()
	}
	return contentsource.NewSyncer(contentsource.Source{
		URL:      src.URL,
		Branch:   src.Branch,
		Username: src.Username,
		Token:    src.Token,
	}, cfg.Content.Dir), nil
}

// syncFunc adapts a Syncer to the scheduler's change-reporting signature.
func syncFunc(s *contentsource.Syncer) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		res, err := s.Sync(ctx)
		return res.Cloned || res.Changed, err
	}
}
