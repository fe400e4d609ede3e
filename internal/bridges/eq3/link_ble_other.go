//go:build !linux

package eq3

import "fmt"

func newBLELink(cfg LinkConfig, _ Logger) (Link, error) {
	return nil, fmt.Errorf("%w: %s needs BlueZ (linux) for %s", ErrBackendUnsupported, BackendBLE, cfg.Address)
}
