package util

import (
	"bytes"
	"os"
)

// IsRunningInDocker reports whether the process runs inside a container,
// detected through /.dockerenv or a container runtime in the cgroup of pid 1
func IsRunningInDocker() bool {
	return runningInContainer("/.dockerenv", "/proc/1/cgroup")
}

func runningInContainer(marker, cgroup string) bool {
	if _, err := os.Stat(marker); err == nil {
		return true
	}

	b, err := os.ReadFile(cgroup)
	if err != nil {
		return false
	}

	for _, runtime := range [][]byte{[]byte("docker"), []byte("containerd"), []byte("kubepods")} {
		if bytes.Contains(b, runtime) {
			return true
		}
	}

	return false
}
