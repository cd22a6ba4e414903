// Copyright (C) 2020 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gfxapi

import (
	"encoding/binary"
	"math"
)

// Format is a texel format. The set covers the formats pixel history reads
// back and the depth-stencil formats it derives counters from; backends may
// report richer formats but pixel history returns an empty result for
// formats it cannot decode.
type Format int

const (
	FormatUndefined Format = iota

	FormatR8Unorm
	FormatR8G8B8A8Unorm
	FormatB8G8R8A8Unorm
	FormatR8Uint
	FormatR16Uint
	FormatR16G16B16A16Sfloat
	FormatR32Uint
	FormatR32Sfloat
	FormatR32G32Uint
	FormatR32G32B32A32Uint
	FormatR32G32B32A32Sfloat

	FormatD16Unorm
	FormatD24UnormS8Uint
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatS8Uint
)

// IsDepth reports whether the format carries a depth aspect.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD24UnormS8Uint, FormatD32Sfloat, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// IsStencil reports whether the format carries a stencil aspect.
func (f Format) IsStencil() bool {
	switch f {
	case FormatD24UnormS8Uint, FormatD32SfloatS8Uint, FormatS8Uint:
		return true
	}
	return false
}

// IsDepthOnly reports whether the format is depth without stencil.
func (f Format) IsDepthOnly() bool { return f.IsDepth() && !f.IsStencil() }

// IsDepthAndStencil reports whether the format carries both aspects.
func (f Format) IsDepthAndStencil() bool { return f.IsDepth() && f.IsStencil() }

// TexelSize returns the byte size of one color texel, or 0 for formats
// whose color aspect cannot be copied texel-wise.
func (f Format) TexelSize() uint32 {
	switch f {
	case FormatR8Unorm, FormatR8Uint, FormatS8Uint:
		return 1
	case FormatR16Uint, FormatD16Unorm:
		return 2
	case FormatR8G8B8A8Unorm, FormatB8G8R8A8Unorm, FormatR32Uint, FormatR32Sfloat, FormatD32Sfloat:
		return 4
	case FormatR16G16B16A16Sfloat, FormatR32G32Uint:
		return 8
	case FormatR32G32B32A32Uint, FormatR32G32B32A32Sfloat:
		return 16
	}
	return 0
}

// Channels returns the number of color channels.
func (f Format) Channels() int {
	switch f {
	case FormatR8Unorm, FormatR8Uint, FormatR16Uint, FormatR32Uint, FormatR32Sfloat:
		return 1
	case FormatR32G32Uint:
		return 2
	case FormatR8G8B8A8Unorm, FormatB8G8R8A8Unorm, FormatR16G16B16A16Sfloat,
		FormatR32G32B32A32Uint, FormatR32G32B32A32Sfloat:
		return 4
	}
	return 0
}

// DecodeColor interprets the leading bytes of raw as one texel of the given
// format and returns its channels widened to float32, RGBA order. Formats
// without a color aspect decode to zero.
func (f Format) DecodeColor(raw []byte) [4]float32 {
	var out [4]float32
	switch f {
	case FormatR8Unorm:
		out[0] = float32(raw[0]) / 255
		out[3] = 1
	case FormatR8G8B8A8Unorm:
		for i := 0; i < 4; i++ {
			out[i] = float32(raw[i]) / 255
		}
	case FormatB8G8R8A8Unorm:
		out[0] = float32(raw[2]) / 255
		out[1] = float32(raw[1]) / 255
		out[2] = float32(raw[0]) / 255
		out[3] = float32(raw[3]) / 255
	case FormatR8Uint:
		out[0] = float32(raw[0])
	case FormatR16Uint:
		out[0] = float32(binary.LittleEndian.Uint16(raw))
	case FormatR16G16B16A16Sfloat:
		for i := 0; i < 4; i++ {
			out[i] = halfToFloat(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case FormatR32Uint:
		out[0] = float32(binary.LittleEndian.Uint32(raw))
	case FormatR32Sfloat:
		out[0] = math.Float32frombits(binary.LittleEndian.Uint32(raw))
	case FormatR32G32Uint:
		out[0] = float32(binary.LittleEndian.Uint32(raw))
		out[1] = float32(binary.LittleEndian.Uint32(raw[4:]))
	case FormatR32G32B32A32Uint:
		for i := 0; i < 4; i++ {
			out[i] = float32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case FormatR32G32B32A32Sfloat:
		for i := 0; i < 4; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	}
	return out
}

// halfToFloat widens an IEEE 754 half to a float32.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) & 1
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff
	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign << 31)
		}
		// Subnormal: normalize.
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3ff
		return math.Float32frombits(sign<<31 | (exp+127-15)<<23 | mant<<13)
	case 0x1f:
		return math.Float32frombits(sign<<31 | 0xff<<23 | mant<<13)
	default:
		return math.Float32frombits(sign<<31 | (exp+127-15)<<23 | mant<<13)
	}
}
