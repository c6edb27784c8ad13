package commands

import (
	"fmt"

	"git.home.luguber.info/inful/tutoragent/internal/settings"
)

// SettingsCmd groups settings commands.
type SettingsCmd struct {
	Get     SettingsGetCmd     `cmd:"" help:"Print a setting, a section or everything"`
	Set     SettingsSetCmd     `cmd:"" help:"Change a setting (dotted path)"`
	Reset   SettingsResetCmd   `cmd:"" help:"Restore defaults for one section or all settings"`
	Export  SettingsExportCmd  `cmd:"" help:"Write settings to a .json, .yaml or .toml file"`
	Import  SettingsImportCmd  `cmd:"" help:"Replace settings with a .json, .yaml or .toml file"`
	Summary SettingsSummaryCmd `cmd:"" help:"Print the headline settings per section"`
}

// settingsApp opens the settings with the database mirror.
func settingsApp(g *Global, root *CLI) (*app, error) {
	return newApp(g.Ctx, root, appOptions{database: true, events: true})
}

// SettingsGetCmd implements 'tutoragent settings get'.
type SettingsGetCmd struct {
	Path string `arg:"" optional:"" help:"Dotted path such as editor.font_size; empty prints everything"`
}

func (s *SettingsGetCmd) Run(g *Global, root *CLI) error {
	a, err := settingsApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	if s.Path == "" {
		return writeJSON(g.Out, a.settings.Settings())
	}
	v, err := a.settings.Get(s.Path)
	if err != nil {
		return err
	}
	if m, ok := v.(map[string]any); ok {
		return writeJSON(g.Out, m)
	}
	_, _ = fmt.Fprintln(g.Out, v)
	return nil
}

// SettingsSetCmd implements 'tutoragent settings set'.
type SettingsSetCmd struct {
	Path  string `arg:"" help:"Dotted path such as ui.theme"`
	Value string `arg:"" help:"New value; JSON literals such as 14, true or [\"go\"] are decoded"`
}

func (s *SettingsSetCmd) Run(g *Global, root *CLI) error {
	a, err := settingsApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	if err := a.settings.Set(s.Path, settings.ParseValue(s.Value)); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "%s updated\n", s.Path)
	return nil
}

// SettingsResetCmd implements 'tutoragent settings reset'.
type SettingsResetCmd struct {
	Section string `arg:"" optional:"" help:"Section to reset (editor, ui, learning, performance, security); empty resets everything"`
}

func (s *SettingsResetCmd) Run(g *Global, root *CLI) error {
	a, err := settingsApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	if err := a.settings.Reset(s.Section); err != nil {
		return err
	}
	if s.Section == "" {
		_, _ = fmt.Fprintln(g.Out, "All settings reset to defaults")
	} else {
		_, _ = fmt.Fprintf(g.Out, "%s settings reset to defaults\n", s.Section)
	}
	return nil
}

// SettingsExportCmd implements 'tutoragent settings export'.
type SettingsExportCmd struct {
	File string `arg:"" help:"Target file; the extension selects the format"`
}

func (s *SettingsExportCmd) Run(g *Global, root *CLI) error {
	a, err := settingsApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	if err := a.settings.Export(s.File); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Settings exported to %s\n", s.File)
	return nil
}

// SettingsImportCmd implements 'tutoragent settings import'.
type SettingsImportCmd struct {
	File string `arg:"" help:"Source file; the extension selects the format" type:"existingfile"`
}

func (s *SettingsImportCmd) Run(g *Global, root *CLI) error {
	a, err := settingsApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	if err := a.settings.Import(s.File); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Settings imported from %s\n", s.File)
	return nil
}

// SettingsSummaryCmd implements 'tutoragent settings summary'.
type SettingsSummaryCmd struct{}

func (s *SettingsSummaryCmd) Run(g *Global, root *CLI) error {
	a, err := settingsApp(g, root)
	if err != nil {
		return err
	}
	defer a.closeQuietly()
	return writeJSON(g.Out, a.settings.Summary())
}
