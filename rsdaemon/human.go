// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsdaemon

import "fmt"

// humanBytes renders n bytes as a short, unit-scaled string for
// confirmation-prompt messages, matching the reference implementation's
// bytes_to_human_readable (binary units, two decimal places).
func humanBytes(n uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}
	f := float64(n)
	unit := 0
	for f >= 1024.0 && unit < len(units)-1 {
		f /= 1024.0
		unit++
	}
	return fmt.Sprintf("%.2f %s", f, units[unit])
}