//go:build linux

package device

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"camrelay/receiver/internal/domain"
	"camrelay/receiver/internal/pixel"
)

// v4l2 userspace ABI, 64-bit layout.
const (
	vidiocQuerycap = 0x80685600 // VIDIOC_QUERYCAP
	vidiocSetFmt   = 0xc0d05605 // VIDIOC_S_FMT

	bufTypeVideoOutput = 2          // V4L2_BUF_TYPE_VIDEO_OUTPUT
	fieldNone          = 1          // V4L2_FIELD_NONE
	pixFmtRGB24        = 0x33424752 // V4L2_PIX_FMT_RGB24 'RGB3'
	colorspaceSRGB     = 8          // V4L2_COLORSPACE_SRGB
	capVideoOutput     = 0x00000002 // V4L2_CAP_VIDEO_OUTPUT
)

type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

// v4l2Format mirrors struct v4l2_format: a type tag plus a 200-byte union
// aligned to 8 bytes, of which only the pix member is used here.
type v4l2Format struct {
	Type uint32
	_    uint32
	Pix  v4l2PixFormat
	_    [200 - unsafe.Sizeof(v4l2PixFormat{})]byte
}

type v4l2Capability struct {
	Driver       [16]byte
	Card         [32]byte
	BusInfo      [32]byte
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

// v4l2Binding writes packed RGB24 frames into a v4l2loopback output device.
type v4l2Binding struct {
	file   *os.File
	width  int
	height int
}

// V4L2Bind returns a camera bind function for the given device. The device
// may be an explicit path ("/dev/video20"), a substring matched against
// device card names, or empty to pick the first output-capable device.
func V4L2Bind(device string) BindCamera {
	return func(width, height, fps int) (CameraBinding, error) {
		path, err := findOutputDevice(device)
		if err != nil {
			return nil, err
		}

		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", domain.ErrDeviceUnavailable, path, err)
		}

		format := v4l2Format{Type: bufTypeVideoOutput}
		format.Pix = v4l2PixFormat{
			Width:        uint32(width),
			Height:       uint32(height),
			PixelFormat:  pixFmtRGB24,
			Field:        fieldNone,
			BytesPerLine: uint32(3 * width),
			SizeImage:    uint32(3 * width * height),
			Colorspace:   colorspaceSRGB,
		}
		if err := ioctl(f.Fd(), vidiocSetFmt, unsafe.Pointer(&format)); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: set format on %s: %v", domain.ErrDeviceUnavailable, path, err)
		}

		return &v4l2Binding{file: f, width: width, height: height}, nil
	}
}

func (b *v4l2Binding) Write(frame domain.VideoFrame) error {
	if frame.Width != b.width || frame.Height != b.height {
		return fmt.Errorf("frame %dx%d does not match bound %dx%d", frame.Width, frame.Height, b.width, b.height)
	}
	if _, err := b.file.Write(pixel.ToRGB24(frame)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (b *v4l2Binding) Close() error {
	return b.file.Close()
}

// findOutputDevice resolves the configured device to a /dev/videoN path.
func findOutputDevice(device string) (string, error) {
	if strings.HasPrefix(device, "/") {
		return device, nil
	}

	paths, err := filepath.Glob("/dev/video*")
	if err != nil || len(paths) == 0 {
		return "", fmt.Errorf("%w: no /dev/video* devices", domain.ErrDeviceUnavailable)
	}
	sort.Strings(paths)

	needle := strings.ToLower(device)
	for _, path := range paths {
		card, caps, err := queryDevice(path)
		if err != nil {
			continue
		}
		if caps&capVideoOutput == 0 {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(card), needle) {
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: no output-capable video device matching %q", domain.ErrDeviceUnavailable, device)
}

func queryDevice(path string) (card string, caps uint32, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	var capability v4l2Capability
	if err := ioctl(f.Fd(), vidiocQuerycap, unsafe.Pointer(&capability)); err != nil {
		return "", 0, err
	}

	caps = capability.DeviceCaps
	if caps == 0 {
		caps = capability.Capabilities
	}
	card = string(capability.Card[:])
	if i := strings.IndexByte(card, 0); i >= 0 {
		card = card[:i]
	}
	return card, caps, nil
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
