package cli

import (
	"context"

	"github.com/frobware/go-sharedpages"
)

// PagesCmd shows the decoded pagemap of one process, mapping by mapping.
type PagesCmd struct {
	OutputFlags
	PID sharedpages.PID `arg:"" help:"Process to inspect."`
}

// Run executes the pages command.
func (c *PagesCmd) Run(cli *CLI, ctx context.Context) error {
	s, err := cli.openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	pages, err := s.manager.ProcessPages(ctx, c.PID)
	if err != nil {
		return err
	}

	pageSize := s.manager.Options().PageSize
	output, err := c.render(pages, func() string { return formatPagesTable(c.PID, pages, pageSize) })
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
