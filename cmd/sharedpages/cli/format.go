package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"k8s.io/client-go/util/jsonpath"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/frameindex"
	"github.com/frobware/go-sharedpages/report"
)

func formatJSON(v any) (string, error) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output) + "\n", nil
}

func formatJSONPath(v any, expr string) (string, error) {
	jp := jsonpath.New("output")
	if err := jp.Parse(expr); err != nil {
		return "", fmt.Errorf("invalid jsonpath expression %q: %w", expr, err)
	}

	// jsonpath walks generic values, so round-trip through JSON to
	// pick up the json tags.
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal: %w", err)
	}
	var data any
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal: %w", err)
	}

	var buf bytes.Buffer
	if err := jp.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("jsonpath execution failed: %w", err)
	}
	return buf.String() + "\n", nil
}

func formatOwners(owners frameindex.OwnerSet) string {
	parts := make([]string, len(owners))
	for i, pid := range owners {
		parts[i] = pid.String()
	}
	return strings.Join(parts, ",")
}

func formatBytes(pages, pageSize uint64) string {
	return humanize.IBytes(pages * pageSize)
}

func formatSnapshotTable(s *report.Snapshot) string {
	var b strings.Builder

	total, shared := s.Pages()
	fmt.Fprintf(&b, "SNAPSHOT  %s  %s  %s\n", s.ID, s.CreatedAt.Local().Format(time.DateTime), s.Host.Hostname)
	fmt.Fprintf(&b, "  processes  %d scanned, %d failed\n", len(s.Processes), len(s.Failures))
	fmt.Fprintf(&b, "  resident   %s (%d pages)\n", formatBytes(s.ResidentPages, s.PageSize), s.ResidentPages)
	fmt.Fprintf(&b, "  frames     %s in %d ranges, %s shared\n",
		formatBytes(total, s.PageSize), len(s.Ranges), formatBytes(shared, s.PageSize))
	fmt.Fprintf(&b, "  digest     %s\n", s.Digest)
	if s.ZeroFramePages > 0 {
		fmt.Fprintf(&b, "  note       %d resident pages reported frame 0; frame numbers need CAP_SYS_ADMIN\n", s.ZeroFramePages)
	}

	title := "RANGES"
	if s.SharedOnly {
		title = "SHARED RANGES"
	}
	fmt.Fprintf(&b, "\n  %s\n", title)
	if len(s.Ranges) == 0 {
		b.WriteString("  (none)\n")
	} else {
		fmt.Fprintf(&b, "  %-14s %-14s %-8s %-10s %s\n", "FROM", "TO", "PAGES", "SIZE", "OWNERS")
		for _, r := range s.Ranges {
			fmt.Fprintf(&b, "  %#-14x %#-14x %-8d %-10s %s\n",
				r.From, r.To, r.Pages(), formatBytes(r.Pages(), s.PageSize), formatOwners(r.Owners))
		}
	}

	b.WriteString("\n  PROCESSES\n")
	if len(s.Processes) == 0 {
		b.WriteString("  (none)\n")
	} else {
		fmt.Fprintf(&b, "  %-8s %s\n", "PID", "COMMAND")
		for _, p := range s.Processes {
			fmt.Fprintf(&b, "  %-8d %s\n", p.PID, p.Cmdline)
		}
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n  FAILURES\n")
		fmt.Fprintf(&b, "  %-8s %-11s %s\n", "PID", "KIND", "ERROR")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "  %-8d %-11s %s\n", f.PID, f.Kind, f.Message)
		}
	}

	return b.String()
}

func formatSummaryTable(summaries []report.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s  %-19s  %-16s  %-6s  %-7s  %-13s  %s\n",
		"ID", "CREATED", "HOST", "PROCS", "RANGES", "SHARED PAGES", "DIGEST")
	for _, s := range summaries {
		fmt.Fprintf(&b, "%-36s  %-19s  %-16s  %-6d  %-7d  %-13d  %s\n",
			s.ID, s.CreatedAt.Local().Format(time.DateTime), s.Hostname, s.Processes,
			s.Ranges, s.SharedPages, shortDigest(s.Digest))
	}
	return b.String()
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func formatRuns(mp sharedpages.MappingPages) string {
	var parts []string
	for run := range sharedpages.Runs(mp.Residency()) {
		if run.Count == 1 {
			parts = append(parts, fmt.Sprintf("%d", run.Start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", run.Start, run.Start+run.Count-1))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func formatPagesTable(pid sharedpages.PID, pages []sharedpages.MappingPages, pageSize uint64) string {
	var b strings.Builder

	var totalPages, totalResident uint64
	for _, mp := range pages {
		totalPages += uint64(len(mp.Pages))
		totalResident += uint64(mp.Residency().Count())
	}
	fmt.Fprintf(&b, "PROCESS  %d  %d mappings, %d pages, %s resident\n",
		pid, len(pages), totalPages, formatBytes(totalResident, pageSize))

	fmt.Fprintf(&b, "\n  %-33s %-5s %-7s %-8s %-7s %-10s %-20s %s\n",
		"RANGE", "PERMS", "PAGES", "RESIDENT", "SWAPPED", "RSS", "RESIDENT PAGES", "PATH")
	for _, mp := range pages {
		resident := uint64(mp.Residency().Count())
		fmt.Fprintf(&b, "  %-33s %-5s %-7d %-8d %-7d %-10s %-20s %s\n",
			mp.Mapping.Range, mp.Mapping.Permissions, len(mp.Pages), resident, mp.Swapped(),
			formatBytes(resident, pageSize), formatRuns(mp), mp.Mapping.Path)
	}
	return b.String()
}

func formatMapsTable(mappings []sharedpages.Mapping) string {
	var b strings.Builder
	for _, m := range mappings {
		b.WriteString(m.String())
		b.WriteByte('\n')
	}
	return b.String()
}
