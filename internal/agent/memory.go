// File: internal/agent/memory.go
package agent

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// MemorySampler reports the browser process's resident set size in kB.
// Returning ok=false means the sample is unavailable; the run records that
// instead of a number.
type MemorySampler func() (rssKB int64, ok bool)

func heapMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024 * 1024)
}

var browserProcessNames = map[string]bool{
	"chrome":         true,
	"chromium":       true,
	"headless_shell": true,
}

// BrowserMemorySampler sums the resident set size of every browser process
// visible under /proc. On platforms without procfs the sampler reports
// unavailable and the run falls back to heap stats only.
func BrowserMemorySampler() MemorySampler {
	return func() (int64, bool) {
		entries, err := os.ReadDir("/proc")
		if err != nil {
			return 0, false
		}
		var total int64
		found := false
		for _, e := range entries {
			if _, err := strconv.Atoi(e.Name()); err != nil {
				continue
			}
			comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
			if err != nil || !browserProcessNames[strings.TrimSpace(string(comm))] {
				continue
			}
			if rss, ok := readVmRSS(filepath.Join("/proc", e.Name(), "status")); ok {
				total += rss
				found = true
			}
		}
		return total, found
	}
}

func readVmRSS(statusPath string) (int64, bool) {
	data, err := os.ReadFile(statusPath)
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb, true
	}
	return 0, false
}
