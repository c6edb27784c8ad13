package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/tutoragent/internal/database"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// DBCmd groups database commands.
type DBCmd struct {
	Init    DBInitCmd    `cmd:"" help:"Create or migrate the database"`
	Import  DBImportCmd  `cmd:"" help:"Import all content languages into the database"`
	Backup  DBBackupCmd  `cmd:"" help:"Write a consistent copy of the database"`
	Version DBVersionCmd `cmd:"" help:"Print the schema version"`
	Search  DBSearchCmd  `cmd:"" help:"Search stored content"`
	Stats   DBStatsCmd   `cmd:"" help:"Print learning statistics for a user"`
}

func dbApp(g *Global, root *CLI) (*app, *database.Store, error) {
	a, err := newApp(g.Ctx, root, appOptions{database: true})
	if err != nil {
		return nil, nil, err
	}
	store, err := a.requireStore()
	if err != nil {
		a.closeQuietly()
		return nil, nil, err
	}
	return a, store, nil
}

// DBInitCmd implements 'tutoragent db init'.
type DBInitCmd struct{}

func (d *DBInitCmd) Run(g *Global, root *CLI) error {
	a, store, err := dbApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	v, err := store.SchemaVersion(g.Ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Database ready at %s (schema version %d)\n", store.Path(), v)
	return nil
}

// DBImportCmd implements 'tutoragent db import'.
type DBImportCmd struct{}

func (d *DBImportCmd) Run(g *Global, root *CLI) error {
	a, store, err := dbApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	langs, err := a.content.Languages(g.Ctx)
	if err != nil {
		return err
	}
	topics := 0
	for _, lang := range langs {
		if err := store.SaveLanguage(g.Ctx, lang); err != nil {
			return err
		}
		topics += len(lang.Topics)
		slog.Debug("Language imported", logfields.Language(lang.Key), logfields.Count(len(lang.Topics)))
	}
	_, _ = fmt.Fprintf(g.Out, "Imported %d languages with %d topics\n", len(langs), topics)
	return nil
}

// DBBackupCmd implements 'tutoragent db backup'.
type DBBackupCmd struct {
	Output string `short:"o" help:"Backup file; defaults to a timestamped file in the backup directory"`
	Keep   int    `help:"Prune the backup directory to this many files (0 uses the configured maximum)"`
}

func (d *DBBackupCmd) Run(g *Global, root *CLI) error {
	a, store, err := dbApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	target := d.Output
	if target == "" {
		target = filepath.Join(a.cfg.Data.BackupPath(), database.BackupFileName(time.Now()))
	}
	path, err := store.Backup(g.Ctx, target)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Backup written to %s\n", path)

	if d.Output != "" {
		return nil
	}
	keep := d.Keep
	if keep <= 0 {
		keep = a.cfg.Schedule.MaxBackups
	}
	removed, err := store.PruneBackups(a.cfg.Data.BackupPath(), keep)
	if err != nil {
		return err
	}
	for _, r := range removed {
		_, _ = fmt.Fprintf(g.Out, "Removed old backup %s\n", r)
	}
	return nil
}

// DBVersionCmd implements 'tutoragent db version'.
type DBVersionCmd struct{}

func (d *DBVersionCmd) Run(g *Global, root *CLI) error {
	a, store, err := dbApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	v, err := store.SchemaVersion(g.Ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "schema version %d (binary supports %d)\n", v, database.CurrentSchemaVersion)
	return nil
}

// DBSearchCmd implements 'tutoragent db search'.
type DBSearchCmd struct {
	Query string `arg:"" help:"Search text"`
	User  string `short:"u" help:"Annotate hits with this user's progress"`
	JSON  bool   `help:"Print JSON"`
}

func (d *DBSearchCmd) Run(g *Global, root *CLI) error {
	a, store, err := dbApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	hits, err := store.SearchContent(g.Ctx, d.Query, d.User)
	if err != nil {
		return err
	}
	if d.JSON {
		return writeJSON(g.Out, hits)
	}
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tTITLE\tLANGUAGE\tSTATUS")
	for _, h := range hits {
		status := h.Status
		if h.CompletionPercentage != nil {
			status = fmt.Sprintf("%s (%.0f%%)", h.Status, *h.CompletionPercentage)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.Type, h.Title, h.LanguageName, status)
	}
	return tw.Flush()
}

// DBStatsCmd implements 'tutoragent db stats'.
type DBStatsCmd struct {
	User string `short:"u" required:"" help:"User ID"`
	Days int    `short:"d" help:"Window in days" default:"30"`
	JSON bool   `help:"Print JSON"`
}

func (d *DBStatsCmd) Run(g *Global, root *CLI) error {
	a, store, err := dbApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	st, err := store.LearningStatistics(g.Ctx, d.User, d.Days)
	if err != nil {
		return err
	}
	if d.JSON {
		return writeJSON(g.Out, st)
	}
	s := st.Summary
	_, _ = fmt.Fprintf(g.Out, "Last %d days for %s\n", d.Days, d.User)
	_, _ = fmt.Fprintf(g.Out, "  time spent:          %d minutes\n", s.TotalTimeMinutes)
	_, _ = fmt.Fprintf(g.Out, "  topics completed:    %d\n", s.TotalTopicsCompleted)
	_, _ = fmt.Fprintf(g.Out, "  exercises completed: %d\n", s.TotalExercisesCompleted)
	_, _ = fmt.Fprintf(g.Out, "  current streak:      %d days\n", s.CurrentStreakDays)
	_, _ = fmt.Fprintf(g.Out, "  progress items:      %d (%d completed, %.1f%% average)\n",
		s.TotalProgressItems, s.CompletedItems, s.AvgCompletionPercentage)
	return nil
}
