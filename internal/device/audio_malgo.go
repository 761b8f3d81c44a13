package device

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"

	"camrelay/receiver/internal/domain"
)

// malgoPlayer binds a playback device through miniaudio. The data callback
// runs on the platform's real-time audio thread.
type malgoPlayer struct {
	cfg AudioConfig
	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

func newMalgoPlayer(cfg AudioConfig) *malgoPlayer {
	return &malgoPlayer{cfg: cfg}
}

func (p *malgoPlayer) start(onData func(out []byte)) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init audio context: %v", domain.ErrDeviceUnavailable, err)
	}

	id, name, err := findPlayback(ctx, p.cfg.DeviceMatch)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return err
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	devCfg.Playback.Format = malgo.FormatS16
	devCfg.Playback.Channels = uint32(p.cfg.Channels)
	devCfg.Playback.DeviceID = id.Pointer()
	devCfg.SampleRate = uint32(p.cfg.SampleRate)
	devCfg.PeriodSizeInFrames = uint32(p.cfg.BlockFrames)

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, in []byte, frames uint32) {
			onData(out)
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, devCfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: init device %q: %v", domain.ErrDeviceUnavailable, name, err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: start device %q: %v", domain.ErrDeviceUnavailable, name, err)
	}

	p.ctx = ctx
	p.dev = dev
	return nil
}

func (p *malgoPlayer) stop() {
	if p.dev != nil {
		p.dev.Uninit()
		p.dev = nil
	}
	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}

// findPlayback returns the first playback device whose name contains match
// (case-insensitive).
func findPlayback(ctx *malgo.AllocatedContext, match string) (malgo.DeviceID, string, error) {
	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return malgo.DeviceID{}, "", fmt.Errorf("%w: enumerate playback devices: %v", domain.ErrDeviceUnavailable, err)
	}

	needle := strings.ToLower(match)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), needle) {
			return info.ID, info.Name(), nil
		}
	}
	return malgo.DeviceID{}, "", fmt.Errorf("%w: no playback device matching %q", domain.ErrDeviceUnavailable, match)
}
