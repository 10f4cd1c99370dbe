package cli

import (
	"context"

	"github.com/frobware/go-sharedpages"
)

// MapsCmd lists the mappings of one process in the kernel's format.
type MapsCmd struct {
	OutputFlags
	PID sharedpages.PID `arg:"" help:"Process to inspect."`
}

// Run executes the maps command.
func (c *MapsCmd) Run(cli *CLI, ctx context.Context) error {
	s, err := cli.openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	mappings, err := s.scanner.Mappings(c.PID)
	if err != nil {
		return sharedpages.NewProcessScanError(c.PID, err)
	}

	output, err := c.render(mappings, func() string { return formatMapsTable(mappings) })
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
