package demo

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strings"
)

// CPUInfoPath is where the CPU service reads its data from.
const CPUInfoPath = "/proc/cpuinfo"

// CPU is what the cpu service reports.
type CPU struct {
	Count int16
	Model string
}

// ParseCPUInfo reads a /proc/cpuinfo listing. Count is the number of
// processor entries; Model is the first "model name", falling back to
// "Hardware" or "Model" as found on ARM boards.
func ParseCPUInfo(r io.Reader) CPU {
	var (
		info     CPU
		fallback string
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "processor":
			info.Count++
		case "model name":
			if info.Model == "" {
				info.Model = value
			}
		case "Hardware", "Model":
			if fallback == "" {
				fallback = value
			}
		}
	}
	if info.Model == "" {
		info.Model = fallback
	}
	return info
}

// ReadCPUInfo parses path. When it cannot be read, or lists nothing, the
// count comes from the Go runtime and the model is the architecture name.
func ReadCPUInfo(path string) CPU {
	var info CPU
	if f, err := os.Open(path); err == nil {
		info = ParseCPUInfo(f)
		_ = f.Close()
	}
	if info.Count == 0 {
		info.Count = int16(runtime.NumCPU())
	}
	if info.Model == "" {
		info.Model = runtime.GOARCH
	}
	return info
}
