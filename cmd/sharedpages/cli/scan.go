package cli

import (
	"context"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/manager"
	"github.com/frobware/go-sharedpages/report"
)

// ScanCmd scans processes and reports shared frame ranges.
type ScanCmd struct {
	OutputFlags
	PIDs   []sharedpages.PID `arg:"" optional:"" name:"pid" help:"Processes to scan. Defaults to every process under the proc root."`
	Shared bool              `help:"Only report frames mapped by more than one process."`
	Save   bool              `help:"Save the snapshot to the database."`
	Export string            `help:"Also write the snapshot to FILE as JSON, xz-compressed when FILE ends in .xz." placeholder:"FILE"`
}

// Run executes the scan command.
func (c *ScanCmd) Run(cli *CLI, ctx context.Context) error {
	s, err := cli.openSession(ctx, c.Save)
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := s.manager.Scan(ctx, manager.ScanOptions{
		PIDs:       c.PIDs,
		SharedOnly: c.Shared,
	})
	if err != nil {
		return err
	}

	if c.Save {
		if err := s.manager.SaveSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	if c.Export != "" {
		if err := report.WriteFile(c.Export, snap); err != nil {
			return err
		}
		s.logger.Info("exported snapshot", "snapshot", snap.ID, "file", c.Export)
	}

	output, err := c.render(snap, func() string { return formatSnapshotTable(snap) })
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
