// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Pool layout configuration. A layout file lists managers with their resource
// geometry; managers sharing a group name are combined into one allocation.

package control

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/packet"
	"github.com/momentics/hioload-cmdbuf/pool"
)

// Size is a byte count written either as an integer or as a human readable
// string such as "4KiB" or "1m".
type Size uint32

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err != nil {
		var str string
		if err := value.Decode(&str); err != nil {
			return err
		}
		if n, err = units.RAMInBytes(str); err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
	}
	if n < 0 || n > int64(^uint32(0)) {
		return fmt.Errorf("line %d: size %d out of range", value.Line, n)
	}
	*s = Size(n)
	return nil
}

// String renders the size in binary units.
func (s Size) String() string {
	return units.BytesSize(float64(s))
}

// CmdConfig mirrors api.CmdParams.
type CmdConfig struct {
	Type           string `yaml:"type"`
	AddrPatching   bool   `yaml:"addr-patching"`
	MaxNested      uint32 `yaml:"max-nested"`
	InlineIndirect bool   `yaml:"inline-indirect"`
}

// PacketConfig mirrors api.PacketParams.
type PacketConfig struct {
	MaxCmdBuffers uint32 `yaml:"max-cmd-buffers"`
	MaxIOConfigs  uint32 `yaml:"max-io-configs"`
	MaxPatches    uint32 `yaml:"max-patches"`
	AddrPatching  bool   `yaml:"addr-patching"`
}

// ManagerConfig describes one manager. For packet pools a zero ResourceSize
// means the exact packet size, and a zero PoolSize means Count resources.
type ManagerConfig struct {
	Name         string       `yaml:"name"`
	Group        string       `yaml:"group"`
	Usage        string       `yaml:"usage"`
	ResourceSize Size         `yaml:"resource-size"`
	PoolSize     Size         `yaml:"pool-size"`
	Count        uint32       `yaml:"count"`
	Alignment    Size         `yaml:"alignment"`
	MemFlags     []string     `yaml:"mem-flags"`
	Devices      []int32      `yaml:"devices"`
	Cmd          CmdConfig    `yaml:"cmd"`
	Packet       PacketConfig `yaml:"packet"`
}

// CombineConfig mirrors pool.CombinePolicy. Omitted, the default policy holds.
type CombineConfig struct {
	ClassMask         []string `yaml:"class-mask"`
	FirmwareFlag      string   `yaml:"firmware-flag"`
	FirmwareAlignment Size     `yaml:"firmware-alignment"`
}

// Layout is the root of a layout file.
type Layout struct {
	Managers []ManagerConfig `yaml:"managers"`
	Combine  *CombineConfig  `yaml:"combine"`
}

// LoadLayout reads a layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLayout(bytes.NewReader(data))
}

// ParseLayout decodes a layout and validates every manager.
func ParseLayout(r io.Reader) (*Layout, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var l Layout
	if err := dec.Decode(&l); err != nil && err != io.EOF {
		return nil, api.Errorf(api.ErrCodeInvalidArgument, "layout: %v", err)
	}
	if len(l.Managers) == 0 {
		return nil, api.ErrInvalidArgument.WithContext("reason", "layout without managers")
	}
	seen := make(map[string]bool, len(l.Managers))
	for _, mc := range l.Managers {
		if mc.Name == "" || seen[mc.Name] {
			return nil, api.ErrInvalidArgument.WithContext("manager", mc.Name).WithContext("reason", "empty or duplicate name")
		}
		seen[mc.Name] = true
		if _, err := mc.Params(); err != nil {
			return nil, err
		}
	}
	if _, err := l.Policy(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Params converts the entry to resource parameters.
func (mc ManagerConfig) Params() (api.ResourceParams, error) {
	p := api.ResourceParams{
		ResourceSize:  uint32(mc.ResourceSize),
		PoolSize:      uint32(mc.PoolSize),
		Alignment:     uint32(mc.Alignment),
		DeviceIndices: mc.Devices,
	}
	flags, err := parseFlags(mc.MemFlags)
	if err != nil {
		return p, err.WithContext("manager", mc.Name)
	}
	p.MemFlags = flags

	switch mc.Usage {
	case "cmd-buffer", "":
		p.Usage = api.UsageCmdBuffer
		t, ok := api.ParseCmdType(mc.Cmd.Type)
		if !ok {
			return p, api.ErrInvalidArgument.WithContext("manager", mc.Name).WithContext("type", mc.Cmd.Type)
		}
		p.CmdParams = api.CmdParams{
			Type:                      t,
			EnableAddrPatching:        mc.Cmd.AddrPatching,
			MaxNumNestedAddrs:         mc.Cmd.MaxNested,
			MustInlineIndirectBuffers: mc.Cmd.InlineIndirect,
		}
	case "packet":
		p.Usage = api.UsagePacket
		p.PacketParams = api.PacketParams{
			MaxNumCmdBuffers:   mc.Packet.MaxCmdBuffers,
			MaxNumIOConfigs:    mc.Packet.MaxIOConfigs,
			MaxNumPatches:      mc.Packet.MaxPatches,
			EnableAddrPatching: mc.Packet.AddrPatching,
		}
		if p.ResourceSize == 0 {
			p.ResourceSize = packet.CalculatePacketSize(p.PacketParams)
		}
	default:
		return p, api.ErrInvalidArgument.WithContext("manager", mc.Name).WithContext("usage", mc.Usage)
	}
	if p.PoolSize == 0 {
		p.PoolSize = p.ResourceSize * max(mc.Count, 1)
	}
	if err := p.Validate(); err != nil {
		return p, err.(*api.Error).WithContext("manager", mc.Name)
	}
	return p, nil
}

// Policy returns the combine policy the layout asks for.
func (l *Layout) Policy() (pool.CombinePolicy, error) {
	if l.Combine == nil {
		return pool.DefaultCombinePolicy(), nil
	}
	mask, err := parseFlags(l.Combine.ClassMask)
	if err != nil {
		return pool.CombinePolicy{}, err
	}
	cp := pool.CombinePolicy{ClassMask: mask, FirmwareAlignment: uint32(l.Combine.FirmwareAlignment)}
	if l.Combine.FirmwareFlag != "" {
		f, ok := api.ParseMemFlag(l.Combine.FirmwareFlag)
		if !ok {
			return pool.CombinePolicy{}, api.ErrInvalidArgument.WithContext("flag", l.Combine.FirmwareFlag)
		}
		cp.FirmwareFlag = f
	}
	return cp, nil
}

// Groups returns the managers in build order: every group is one batch, an
// ungrouped manager is a batch of its own.
func (l *Layout) Groups() [][]ManagerConfig {
	var out [][]ManagerConfig
	index := make(map[string]int)
	for _, mc := range l.Managers {
		if mc.Group == "" {
			out = append(out, []ManagerConfig{mc})
			continue
		}
		if i, ok := index[mc.Group]; ok {
			out[i] = append(out[i], mc)
			continue
		}
		index[mc.Group] = len(out)
		out = append(out, []ManagerConfig{mc})
	}
	return out
}

func parseFlags(names []string) (api.MemFlags, *api.Error) {
	var flags api.MemFlags
	for _, n := range names {
		f, ok := api.ParseMemFlag(n)
		if !ok {
			return 0, api.ErrInvalidArgument.WithContext("flag", n)
		}
		flags |= f
	}
	return flags, nil
}
