package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rybkr/rewind/internal/server"
)

type serveCommand struct {
	app *app
}

// newServeCommand initializes command to serve the tree over HTTP
func newServeCommand(a *app) *cobra.Command {
	serve := &serveCommand{app: a}

	cmd := &cobra.Command{
		Use:     "serve [folders...]",
		Short:   "Serve the history tree over HTTP and websocket",
		Example: "rewind serve --addr 127.0.0.1:8080 --watch",
		RunE:    serve.RunE,
	}
	cmd.Flags().String("addr", ":8080", "Address to listen on")
	cmd.Flags().Bool("watch", false, "Refresh repositories when their refs change")
	return cmd
}

func (s *serveCommand) RunE(cmd *cobra.Command, _ []string) error {
	projection, _, err := s.app.projection()
	if err != nil {
		return err
	}

	srv := server.NewServer(projection, s.app.cfg, s.app.logger)
	if err := srv.Start(cmd.Context()); err != nil {
		return fmt.Errorf("unable to serve: %w", err)
	}
	return nil
}
