package cli

import (
	"context"
	"errors"

	"github.com/frobware/go-sharedpages/report"
)

// SnapshotCmd groups the snapshot subcommands.
type SnapshotCmd struct {
	List   SnapshotListCmd   `cmd:"" default:"withargs" help:"List saved snapshots."`
	Show   SnapshotShowCmd   `cmd:"" help:"Show a saved or exported snapshot."`
	Delete SnapshotDeleteCmd `cmd:"" help:"Delete a saved snapshot."`
	Import SnapshotImportCmd `cmd:"" help:"Save an exported snapshot to the database."`
}

// SnapshotListCmd lists saved snapshots.
type SnapshotListCmd struct {
	OutputFlags
}

// Run executes the snapshot list command.
func (c *SnapshotListCmd) Run(cli *CLI, ctx context.Context) error {
	s, err := cli.openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	summaries, err := s.manager.Snapshots(ctx)
	if err != nil {
		return err
	}

	if len(summaries) == 0 && c.Format() == OutputFormatTable {
		return cli.PrintOut("No snapshots found\n")
	}

	output, err := c.render(summaries, func() string { return formatSummaryTable(summaries) })
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

// SnapshotShowCmd shows one snapshot.
type SnapshotShowCmd struct {
	OutputFlags
	ID   string `arg:"" optional:"" help:"Snapshot ID."`
	File string `short:"f" help:"Read the snapshot from an exported FILE instead of the database." placeholder:"FILE"`
}

// Run executes the snapshot show command.
func (c *SnapshotShowCmd) Run(cli *CLI, ctx context.Context) error {
	var snap *report.Snapshot
	switch {
	case c.File != "" && c.ID != "":
		return errors.New("specify either a snapshot ID or --file, not both")
	case c.File != "":
		var err error
		if snap, err = report.ReadFile(c.File); err != nil {
			return err
		}
	case c.ID != "":
		s, err := cli.openSession(ctx, true)
		if err != nil {
			return err
		}
		defer s.Close()
		if snap, err = s.manager.Snapshot(ctx, c.ID); err != nil {
			return err
		}
	default:
		return errors.New("a snapshot ID or --file is required")
	}

	output, err := c.render(snap, func() string { return formatSnapshotTable(snap) })
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

// SnapshotDeleteCmd deletes a saved snapshot.
type SnapshotDeleteCmd struct {
	ID string `arg:"" help:"Snapshot ID."`
}

// Run executes the snapshot delete command.
func (c *SnapshotDeleteCmd) Run(cli *CLI, ctx context.Context) error {
	s, err := cli.openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.DeleteSnapshot(ctx, c.ID); err != nil {
		return err
	}
	return cli.PrintOutf("Deleted snapshot %s\n", c.ID)
}

// SnapshotImportCmd saves an exported snapshot to the database.
type SnapshotImportCmd struct {
	File string `arg:"" help:"Exported snapshot (JSON, optionally .xz)."`
}

// Run executes the snapshot import command.
func (c *SnapshotImportCmd) Run(cli *CLI, ctx context.Context) error {
	snap, err := report.ReadFile(c.File)
	if err != nil {
		return err
	}

	s, err := cli.openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.ImportSnapshot(ctx, snap); err != nil {
		return err
	}
	return cli.PrintOutf("Imported snapshot %s\n", snap.ID)
}
