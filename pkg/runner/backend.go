package runner

import (
	"fmt"
	"strings"
)

// Kind names a test backend.
type Kind string

const (
	KindAuto    Kind = "auto"
	KindAdapter Kind = "adapter"
	KindServed  Kind = "served"
)

// SelectKind resolves auto to the backend suited to the host: local adapter
// testing on Apple silicon, served models everywhere else.
func SelectKind(kind, goos, goarch string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(kind))); k {
	case "", KindAuto:
		if goos == "darwin" && goarch == "arm64" {
			return KindAdapter, nil
		}
		return KindServed, nil
	case KindAdapter, KindServed:
		return k, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want auto, adapter or served)", kind)
	}
}

// ProgressFunc is called after each example has been answered.
type ProgressFunc func(done, total int)
