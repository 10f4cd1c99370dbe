package manager

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/logging"
	"github.com/frobware/go-sharedpages/procfs"
)

// ProcessPages reads the mappings of pid and decodes the pagemap
// record of every page in each of them. The pagemap is opened once
// and shared by all mappings of the process. The vsyscall gate page
// is returned with no pages, since pagemap holds no records for it.
//
// Any read failure is returned as a sharedpages.ErrProcessScan; a
// process never yields a partial result. A process that exits after
// its files were opened shows up as an empty maps listing or as EOF
// on pagemap; both are reported as exited rather than scanned or
// failed with an io error.
func (m *Manager) ProcessPages(ctx context.Context, pid sharedpages.PID) ([]sharedpages.MappingPages, error) {
	mappings, err := m.source.Mappings(pid)
	if err != nil {
		return nil, sharedpages.NewProcessScanError(pid, err)
	}
	if len(mappings) == 0 && m.source.Exited(ctx, pid) {
		return nil, sharedpages.NewProcessScanError(pid, fmt.Errorf("%w: empty maps", sharedpages.ErrProcessExited))
	}

	pagemap, err := m.source.OpenPagemap(pid)
	if err != nil {
		return nil, sharedpages.NewProcessScanError(pid, err)
	}
	defer pagemap.Close()

	result := make([]sharedpages.MappingPages, 0, len(mappings))
	for _, mapping := range mappings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if mapping.IsVsyscall() {
			m.logger.Log(ctx, logging.LevelTrace.ToSlog(), "skipping vsyscall mapping", "pid", pid, "range", mapping.Range)
			result = append(result, sharedpages.MappingPages{Mapping: mapping})
			continue
		}

		pages, err := pagemap.Statuses(procfs.PageOffsets(mapping, m.opts.PageSize))
		if err != nil {
			if (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) && m.source.Exited(ctx, pid) {
				err = fmt.Errorf("%w: %w", sharedpages.ErrProcessExited, err)
			}
			return nil, sharedpages.NewProcessScanError(pid, fmt.Errorf("mapping %s: %w", mapping.Range, err))
		}
		result = append(result, sharedpages.MappingPages{Mapping: mapping, Pages: pages})
	}

	m.logger.Debug("read process pages", "pid", pid, "mappings", len(result))
	return result, nil
}
