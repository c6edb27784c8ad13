package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"git.home.luguber.info/inful/tutoragent/internal/content"
	"git.home.luguber.info/inful/tutoragent/internal/database"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
	"git.home.luguber.info/inful/tutoragent/internal/progress"
)

// ProgressCmd groups progress commands.
type ProgressCmd struct {
	Set       ProgressSetCmd       `cmd:"" help:"Set the completion percent of a topic"`
	Show      ProgressShowCmd      `cmd:"" help:"Show progress for a language"`
	Recommend ProgressRecommendCmd `cmd:"" help:"Suggest the next topics to study"`
}

// ProgressSetCmd implements 'tutoragent progress set'.
type ProgressSetCmd struct {
	Language string `arg:"" help:"Language key or name"`
	Topic    string `arg:"" help:"Topic title"`
	Percent  int    `arg:"" help:"Completion percent (0-100)"`
	User     string `short:"u" help:"Also record the progress for this user in the database"`
}

func (p *ProgressSetCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(g.Ctx, root, appOptions{database: p.User != "", events: true})
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	u, err := a.content.UpdateTopicProgress(g.Ctx, p.Language, p.Topic, p.Percent)
	if err != nil {
		return err
	}
	// Explicit updates persist even with auto-save off.
	if err := a.tracker.Save(); err != nil {
		return err
	}

	if p.User != "" {
		if err := recordUserProgress(g.Ctx, a, p.User, p.Language, p.Topic, p.Percent); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(g.Out, "%s / %s: %d%%\n", u.Language, u.Topic, u.Percent)
	if u.NewlyCompleted {
		_, _ = fmt.Fprintln(g.Out, "Topic completed!")
	}
	return nil
}

// recordUserProgress mirrors a progress change into the user's database
// record. Languages never imported into the database are skipped.
func recordUserProgress(ctx context.Context, a *app, user, language, topic string, percent int) error {
	store, err := a.requireStore()
	if err != nil {
		return err
	}
	lang, err := a.content.Language(ctx, language)
	if err != nil {
		return err
	}
	t, err := a.content.Topic(ctx, language, topic)
	if err != nil {
		return err
	}
	if _, err := store.Language(ctx, lang.ID); err != nil {
		if errors.Is(err, database.ErrLanguageNotFound) {
			slog.Warn("Language not imported into the database, run 'tutoragent db import'",
				logfields.Language(lang.Key), logfields.UserID(user))
			return nil
		}
		return err
	}

	existing, err := store.UserProgress(ctx, user, lang.ID, t.ID)
	if err != nil {
		return err
	}
	rec := progress.NewUserProgress(user, lang.ID, t.ID)
	for i := range existing {
		if existing[i].ExerciseID == "" {
			rec = &existing[i]
			break
		}
	}
	rec.CompletionPercentage = float64(percent)
	switch {
	case percent >= progress.CompletePercent:
		rec.Status = progress.StatusCompleted
	case percent > 0:
		rec.Status = progress.StatusInProgress
	default:
		rec.Status = progress.StatusNotStarted
	}
	rec.Attempts++
	return store.SaveUserProgress(ctx, rec)
}

// ProgressShowCmd implements 'tutoragent progress show'.
type ProgressShowCmd struct {
	Language string `arg:"" help:"Language key or name"`
	JSON     bool   `help:"Print JSON"`
}

func (p *ProgressShowCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(g.Ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	st, err := a.content.ProgressStats(g.Ctx, p.Language)
	if err != nil {
		return err
	}
	if p.JSON {
		return writeJSON(g.Out, st)
	}
	_, _ = fmt.Fprintf(g.Out, "%s: %d of %d topics completed (%.1f%%), about %d minutes remaining\n",
		st.Language, st.CompletedTopics, st.TotalTopics, st.CompletionPercentage, st.EstimatedMinutesRemaining)
	return nil
}

// ProgressRecommendCmd implements 'tutoragent progress recommend'.
type ProgressRecommendCmd struct {
	Language string `arg:"" help:"Language key or name"`
	Limit    int    `short:"n" help:"Maximum recommendations" default:"5"`
	JSON     bool   `help:"Print JSON"`
}

func (p *ProgressRecommendCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(g.Ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	recs, err := a.content.Recommendations(g.Ctx, p.Language, p.Limit)
	if err != nil {
		return err
	}
	if p.JSON {
		return writeJSON(g.Out, recs)
	}
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(g.Out, "Nothing to recommend: every available topic is completed or blocked by prerequisites")
		return nil
	}
	return printRecommendations(g, recs)
}

func printRecommendations(g *Global, recs []content.Recommendation) error {
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TOPIC\tDIFFICULTY\tMINUTES\tREASON")
	for _, r := range recs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Title, r.Difficulty, r.EstimatedMinutes, r.Reason)
	}
	return tw.Flush()
}
