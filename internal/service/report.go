package service

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"lanwatch/internal/domain"
	"lanwatch/internal/presence"
)

const lastSeenLayout = "2006-01-02 15:04:05"

// FormatStatus writes the device status table: named devices first ordered by
// name, then unnamed devices ordered by MAC
func FormatStatus(w io.Writer, snapshots []presence.Snapshot, names map[domain.MACAddress]string) error {
	rows := append([]presence.Snapshot(nil), snapshots...)
	sort.SliceStable(rows, func(i, j int) bool {
		ni, iok := names[rows[i].Device.MAC]
		nj, jok := names[rows[j].Device.MAC]
		if iok != jok {
			return iok
		}
		if ni != nj {
			return ni < nj
		}
		return rows[i].Device.MAC < rows[j].Device.MAC
	})

	if _, err := fmt.Fprintf(w, "Status of %d devices\n", len(rows)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	for _, s := range rows {
		mark := "❌"
		if s.Online {
			mark = "✅"
		}
		name, ok := names[s.Device.MAC]
		if !ok {
			name = "(unknown)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			mark, s.Activity, s.LastSeen.Local().Format(lastSeenLayout), s.Device, name)
	}
	return tw.Flush()
}
