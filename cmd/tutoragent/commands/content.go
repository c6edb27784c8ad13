package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/tutoragent/internal/content"
	"git.home.luguber.info/inful/tutoragent/internal/markdown"
)

// LanguagesCmd implements the 'languages' command.
type LanguagesCmd struct {
	JSON bool `help:"Print JSON instead of a table"`
}

func (l *LanguagesCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(g.Ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	langs, err := a.content.Languages(g.Ctx)
	if err != nil {
		return err
	}
	if l.JSON {
		return writeJSON(g.Out, langs)
	}
	if len(langs) == 0 {
		_, _ = fmt.Fprintf(g.Out, "No languages found in %s\n", a.content.Loader().LanguagesPath())
		return nil
	}

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tNAME\tVERSION\tDIFFICULTY\tTOPICS\tPROGRESS")
	for _, lang := range langs {
		done := len(a.tracker.Completed(lang.Key))
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d/%d\n",
			lang.Key, lang.Name, lang.Version, lang.Difficulty, len(lang.Topics), done, len(lang.Topics))
	}
	return tw.Flush()
}

// ShowCmd implements the 'show' command.
type ShowCmd struct {
	Language string `arg:"" help:"Language key or name"`
	Topic    string `arg:"" optional:"" help:"Topic title"`
	HTML     bool   `help:"Render the topic body as HTML"`
	JSON     bool   `help:"Print JSON"`
}

func (s *ShowCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(g.Ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	if s.Topic == "" {
		lang, err := a.content.Language(g.Ctx, s.Language)
		if err != nil {
			return err
		}
		if s.JSON {
			return writeJSON(g.Out, lang)
		}
		printLanguage(g, a, lang)
		return nil
	}

	topic, err := a.content.Topic(g.Ctx, s.Language, s.Topic)
	if err != nil {
		return err
	}
	switch {
	case s.JSON:
		return writeJSON(g.Out, topic)
	case s.HTML:
		html, err := markdown.RenderHTML([]byte(topic.Content))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprint(g.Out, html)
		return nil
	}
	printTopic(g, topic)
	return nil
}

func printLanguage(g *Global, a *app, lang content.Language) {
	_, _ = fmt.Fprintf(g.Out, "%s (%s)\n", lang.Name, lang.Key)
	if lang.Description != "" {
		_, _ = fmt.Fprintf(g.Out, "%s\n", lang.Description)
	}
	_, _ = fmt.Fprintf(g.Out, "Difficulty: %s, about %d hours\n\n", lang.Difficulty, lang.EstimatedHours)

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tTOPIC\tDIFFICULTY\tMINUTES\tPROGRESS")
	for i, t := range lang.Topics {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d%%\n",
			i+1, t.Title, t.Difficulty, t.EstimatedDurationMinutes, a.tracker.TopicProgress(lang.Key, t.Title))
	}
	_ = tw.Flush()
}

func printTopic(g *Global, t content.Topic) {
	_, _ = fmt.Fprintf(g.Out, "%s\n%s\n\n", t.Title, strings.Repeat("=", len(t.Title)))
	if len(t.Prerequisites) > 0 {
		_, _ = fmt.Fprintf(g.Out, "Prerequisites: %s\n", strings.Join(t.Prerequisites, ", "))
	}
	if len(t.LearningObjectives) > 0 {
		_, _ = fmt.Fprintln(g.Out, "Objectives:")
		for _, o := range t.LearningObjectives {
			_, _ = fmt.Fprintf(g.Out, "  - %s\n", o)
		}
	}
	_, _ = fmt.Fprintf(g.Out, "\n%s\n", strings.TrimSpace(t.Content))
	st := t.Stats()
	_, _ = fmt.Fprintf(g.Out, "\n%d examples, %d exercises, about %d minutes\n",
		st.Examples, st.Exercises, t.TotalEstimatedMinutes())
}

// SearchCmd implements the 'search' command.
type SearchCmd struct {
	Query    string `arg:"" help:"Search text"`
	Language string `short:"l" help:"Restrict topic search to one language"`
	Index    bool   `help:"Search the flattened index of languages, topics, examples and exercises"`
	Limit    int    `help:"Maximum index hits" default:"20"`
	JSON     bool   `help:"Print JSON"`
}

func (s *SearchCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(g.Ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	if s.Index {
		hits, err := a.content.SearchIndex(g.Ctx, s.Query, s.Limit)
		if err != nil {
			return err
		}
		if s.JSON {
			return writeJSON(g.Out, hits)
		}
		tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SCORE\tTYPE\tLANGUAGE\tTITLE")
		for _, h := range hits {
			_, _ = fmt.Fprintf(tw, "%.2f\t%s\t%s\t%s\n", h.Score, h.Kind, h.Language, h.Title)
		}
		return tw.Flush()
	}

	results, err := a.content.Search(g.Ctx, s.Query, s.Language)
	if err != nil {
		return err
	}
	if s.JSON {
		return writeJSON(g.Out, results)
	}
	if len(results) == 0 {
		_, _ = fmt.Fprintf(g.Out, "No topics match %q\n", s.Query)
		return nil
	}
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RELEVANCE\tLANGUAGE\tTOPIC\tDIFFICULTY")
	for _, r := range results {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Relevance, r.Language, r.Topic, r.Difficulty)
	}
	return tw.Flush()
}

// StatsCmd implements the 'stats' command.
type StatsCmd struct {
	JSON bool `help:"Print JSON"`
}

func (s *StatsCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(g.Ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	st, err := a.content.Statistics(g.Ctx)
	if err != nil {
		return err
	}
	if s.JSON {
		return writeJSON(g.Out, st)
	}
	_, _ = fmt.Fprintf(g.Out, "Languages:        %d (%d started)\n", st.TotalLanguages, st.LanguagesStarted)
	_, _ = fmt.Fprintf(g.Out, "Topics completed: %d (%.1f%%)\n", st.TotalTopicsCompleted, st.TotalProgressPercentage)
	if st.MostRecentLanguage != "" {
		_, _ = fmt.Fprintf(g.Out, "Most recent:      %s\n", st.MostRecentLanguage)
	}
	_, _ = fmt.Fprintf(g.Out, "Cache:            %d entries, %.1f%% hit rate\n", st.Cache.Entries, st.Cache.HitRate)
	if len(st.Performance) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(g.Out)
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "OPERATION\tCOUNT\tAVG MS\tMAX MS\tSUCCESS")
	for _, op := range st.Performance {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.0f%%\n", op.Operation, op.Count, op.AvgTimeMS, op.MaxTimeMS, op.SuccessRate)
	}
	return tw.Flush()
}
