package utils

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// StationID identifies the machine running the booth. It is attached to log
// lines and error reports so several kiosks can share one Sentry project.
// The configured name wins; otherwise a hardware or OS machine id is used,
// falling back to the hostname.
func StationID(configured string) string {
	if configured != "" {
		return configured
	}
	if id := machineID(); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}

func machineID() string {
	switch runtime.GOOS {
	case "linux":
		for _, p := range []string{"/etc/machine-id", "/sys/class/dmi/id/product_uuid"} {
			if b, err := os.ReadFile(p); err == nil {
				if id := strings.TrimSpace(string(b)); id != "" {
					return id
				}
			}
		}
	case "darwin":
		out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
		if err != nil {
			return ""
		}
		for _, line := range strings.Split(string(out), "\n") {
			if strings.Contains(line, "IOPlatformUUID") {
				if parts := strings.Split(line, "\""); len(parts) >= 4 {
					return parts[3]
				}
			}
		}
	}
	return ""
}
