// File: core/packet/io.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package packet

import "github.com/momentics/hioload-cmdbuf/api"

// MaxFences is the number of fences an IO config carries: the completion
// fence and the early fence.
const MaxFences = 2

// NoFence marks an unused fence slot.
const NoFence int32 = -1

// ImagePlane is one plane of an image buffer.
type ImagePlane struct {
	Handle api.MemHandle
	Offset uint32
	Config api.PlaneConfig
}

// ImageBuffer describes an image the packet reads or writes.
type ImageBuffer struct {
	Format       uint32
	ColorSpace   uint32
	ColorPattern uint32
	BPP          uint32
	Rotation     uint32
	Planes       []ImagePlane
}

// SubsampleConfig controls frame dropping and subsampling of an output port.
type SubsampleConfig struct {
	BatchSize        uint32
	SubsamplePeriod  uint32
	SubsamplePattern uint32
	FramedropPeriod  uint32
	FramedropPattern uint32
}

// AddIOConfig appends an IO descriptor for image on portID and returns its
// index. fences holds up to MaxFences fence handles; subsample may be nil.
func (p *Packet) AddIOConfig(image *ImageBuffer, portID uint32, direction api.IODirection,
	fences []int32, subsample *SubsampleConfig, batchIndex uint32) (uint32, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	if image == nil || len(image.Planes) == 0 || len(image.Planes) > api.MaxNumPlanes {
		return 0, api.ErrInvalidArgument.WithContext("reason", "image planes")
	}
	if direction != api.IODirectionInput && direction != api.IODirectionOutput {
		return 0, api.ErrInvalidArgument.WithContext("direction", uint32(direction))
	}
	if len(fences) > MaxFences {
		return 0, api.ErrInvalidArgument.WithContext("fences", len(fences))
	}
	index := p.header.NumIOConfigs
	if index >= p.params.MaxNumIOConfigs {
		return 0, api.ErrOutOfBounds.WithContext("max", p.params.MaxNumIOConfigs)
	}

	io := api.IOConfig{
		Format:       image.Format,
		ColorSpace:   image.ColorSpace,
		ColorPattern: image.ColorPattern,
		BPP:          image.BPP,
		Rotation:     image.Rotation,
		ResourceType: portID,
		Fence:        NoFence,
		EarlyFence:   NoFence,
		Direction:    uint32(direction),
		Offset:       batchIndex,
	}
	for i, plane := range image.Planes {
		if !plane.Handle.Valid() {
			return 0, api.ErrInvalidArgument.WithContext("plane", i)
		}
		io.MemHandle[i] = int32(plane.Handle)
		io.Offsets[i] = plane.Offset
		io.Planes[i] = plane.Config
	}
	if len(fences) > 0 {
		io.Fence = fences[0]
	}
	if len(fences) > 1 {
		io.EarlyFence = fences[1]
	}
	if subsample != nil {
		io.BatchSize = subsample.BatchSize
		io.SubsamplePeriod = subsample.SubsamplePeriod
		io.SubsamplePattern = subsample.SubsamplePattern
		io.FramedropPeriod = subsample.FramedropPeriod
		io.FramedropPattern = subsample.FramedropPattern
	}

	p.put(p.layout.IOConfigOffset+index*api.IOConfigSize, api.IOConfigSize, &io)
	p.header.NumIOConfigs++
	return index, nil
}

// IOConfigs decodes the IO config array as currently written.
func (p *Packet) IOConfigs() []api.IOConfig {
	out := make([]api.IOConfig, p.header.NumIOConfigs)
	for i := range out {
		p.get(p.layout.IOConfigOffset+uint32(i)*api.IOConfigSize, api.IOConfigSize, &out[i])
	}
	return out
}
