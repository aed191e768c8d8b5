//go:build !gpu

package backend

import "fmt"

func newGPUBackend() (Backend, func(), error) {
	return nil, noopCleanup, fmt.Errorf("%w: build without gpu tag", ErrBackendUnavailable)
}
