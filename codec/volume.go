package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// VolumeHeaderSize is the size of the Shadertoy .bin volume header.
const VolumeHeaderSize = 20

// Volume element format codes.
const (
	volumeUint8   = 0
	volumeFloat32 = 10
)

type volumeHeader struct {
	Signature uint32
	Width     uint32
	Height    uint32
	Depth     uint32
	Channels  uint8
	Layout    uint8
	Format    uint16
}

// DecodeVolume reads a Shadertoy .bin volume: a 20 byte little-endian
// header followed by raw voxel data.
func DecodeVolume(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < VolumeHeaderSize {
		return nil, fmt.Errorf("codec: volume too small (%d bytes)", len(data))
	}
	var h volumeHeader
	if err := binary.Read(bytes.NewReader(data[:VolumeHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("codec: volume header: %w", err)
	}
	m := &Image{
		Pix:      data[VolumeHeaderSize:],
		Width:    int(h.Width),
		Height:   int(h.Height),
		Depth:    int(h.Depth),
		Channels: int(h.Channels),
	}
	switch h.Format {
	case volumeUint8:
		m.Elem = Uint8
	case volumeFloat32:
		m.Elem = Float32
	default:
		return nil, fmt.Errorf("%w: volume format code %d", ErrUnsupported, h.Format)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeVolume writes m in .bin layout.
func EncodeVolume(w io.Writer, m *Image) error {
	if err := m.Validate(); err != nil {
		return err
	}
	h := volumeHeader{
		Signature: 0x004e4942, // "BIN\x00"
		Width:     uint32(m.Width),
		Height:    uint32(m.Height),
		Depth:     uint32(m.Depth),
		Channels:  uint8(m.Channels),
	}
	switch m.Elem {
	case Uint8:
		h.Format = volumeUint8
	case Float32:
		h.Format = volumeFloat32
	default:
		return fmt.Errorf("%w: volume element %s", ErrUnsupported, m.Elem)
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	_, err := w.Write(m.Pix[:m.Stride()*m.Height*m.Depth])
	return err
}

// OpenVolume decodes the .bin file at path.
func OpenVolume(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := DecodeVolume(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
