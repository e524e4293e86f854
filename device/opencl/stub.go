//go:build !opencl

package opencl

import (
	"errors"

	"github.com/vuvietnguyenit/dag-bench/device"
)

const Available = false

var errNotBuilt = errors.New("opencl backend requested but program compiled without 'opencl' build tag")

func init() {
	device.Register("opencl", Backend{})
}

type Backend struct{}

func (Backend) Platforms() ([]device.Platform, error) { return nil, errNotBuilt }

func (Backend) Open(int, int) (device.Device, error) { return nil, errNotBuilt }
