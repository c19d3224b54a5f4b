package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rybkr/rewind/internal/render"
)

type treeCommand struct {
	app *app
}

// newTreeCommand initializes command to print the history tree
func newTreeCommand(a *app) *cobra.Command {
	tree := &treeCommand{app: a}

	cmd := &cobra.Command{
		Use:     "tree [folders...]",
		Short:   "Print commits and their changed files",
		Example: "rewind tree --depth 2 ~/src/app ~/src/lib",
		RunE:    tree.RunE,
	}
	cmd.Flags().Int("depth", 2, "Levels to expand below the top")
	cmd.Flags().String("color", "auto", "Color output: auto, always or never")
	return cmd
}

func (t *treeCommand) RunE(cmd *cobra.Command, _ []string) error {
	projection, folders, err := t.app.projection()
	if err != nil {
		return err
	}

	title := "workspace"
	if len(folders) == 1 {
		title = folders[0].Name
	}

	r := &render.Renderer{
		Resolver: projection,
		Title:    title,
		Depth:    t.app.cfg.Render.Depth,
		Color:    render.ShouldColor(t.app.cfg.Render.Color, os.Stdout),
	}
	return r.Render(cmd.Context(), cmd.OutOrStdout())
}
