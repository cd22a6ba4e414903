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

package history

import (
	"encoding/binary"
	"math"

	"github.com/jpark37/renderdoc/gapis/gfxapi"
)

// Readback buffer record layouts. GPU copies land at these exact offsets;
// the decode side below must stay in lockstep with the copy side in the pass
// hooks.
//
// pixelValue, 40 bytes:
//
//	0   color, up to 4 channels of up to 8 bytes
//	32  depth, float or raw bits
//	36  stencil, int8
//	37  padding
//
// eventInfo, 96 bytes: premod pixelValue, postmod pixelValue, then two
// 8-byte stencil counter copies (only byte 0 of each is meaningful).
//
// fragmentInfo, 96 bytes: primitive id copied from an R32G32B32A32 target
// (16 bytes), then shaderOut and postMod pixelValues.
const (
	pixelValueSize    = 40
	pixelValueDepth   = 32
	pixelValueStencil = 36

	eventInfoSize           = 96
	eventInfoPremod         = 0
	eventInfoPostmod        = pixelValueSize
	eventInfoWithoutDiscard = 2 * pixelValueSize
	eventInfoWithDiscard    = 2*pixelValueSize + 8

	fragmentInfoSize      = 96
	fragmentInfoPrimitive = 0
	fragmentInfoShaderOut = 16
	fragmentInfoPostMod   = 16 + pixelValueSize
)

// decodeValue decodes one pixelValue record, interpreting the color bytes as
// the given format.
func decodeValue(f gfxapi.Format, raw []byte) Value {
	return Value{
		Color:   f.DecodeColor(raw),
		Depth:   math.Float32frombits(binary.LittleEndian.Uint32(raw[pixelValueDepth:])),
		Stencil: int32(int8(raw[pixelValueStencil])),
	}
}

// eventCounters returns the two fragment counters of an eventInfo record:
// the stencil count with shader discard suppressed and with it active. The
// counter byte is unsigned; the increment-and-clamp stencil saturates at 255.
func eventCounters(raw []byte) (without, with int32) {
	return int32(raw[eventInfoWithoutDiscard]), int32(raw[eventInfoWithDiscard])
}

// fragmentPrimitive returns the primitive id of a fragmentInfo record.
func fragmentPrimitive(raw []byte) int32 {
	return int32(binary.LittleEndian.Uint32(raw[fragmentInfoPrimitive:]))
}
