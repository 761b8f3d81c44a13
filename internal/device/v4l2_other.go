//go:build !linux

package device

import (
	"fmt"

	"camrelay/receiver/internal/domain"
)

// V4L2Bind is linux-only; elsewhere the camera output starts degraded.
func V4L2Bind(device string) BindCamera {
	return func(width, height, fps int) (CameraBinding, error) {
		return nil, fmt.Errorf("%w: virtual camera requires a v4l2loopback device (linux only)", domain.ErrDeviceUnavailable)
	}
}
