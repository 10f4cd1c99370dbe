package cli

import (
	"context"

	"github.com/frobware/go-sharedpages/report"
)

// ExportCmd writes a saved snapshot to a file.
type ExportCmd struct {
	ID   string `arg:"" help:"Snapshot ID."`
	File string `arg:"" help:"Destination; xz-compressed when it ends in .xz."`
}

// Run executes the export command.
func (c *ExportCmd) Run(cli *CLI, ctx context.Context) error {
	s, err := cli.openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := s.manager.Snapshot(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := report.WriteFile(c.File, snap); err != nil {
		return err
	}
	return cli.PrintOutf("Exported snapshot %s to %s\n", snap.ID, c.File)
}
