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

package replay

import (
	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
)

// PixelCopy describes a single-pixel image-to-buffer readback.
//
// Color copies write Source's texel at Buffer+Offset. Depth copies write the
// depth aspect at Buffer+Offset and, when SourceFormat has stencil, the
// stencil aspect at Buffer+Offset+4. StencilOnly copies write just the
// stencil byte at Buffer+Offset.
//
// Multisampled sources resolve sample Sub.Sample through Staging first
// (StencilStaging for the stencil aspect); single-sampled copies leave the
// staging ids nil.
type PixelCopy struct {
	Source       gfxapi.ResourceID
	SourceFormat gfxapi.Format
	SourceLayout gfxapi.ImageLayout

	DepthCopy   bool
	StencilOnly bool

	X, Y uint32
	Sub  api.Subresource

	Staging        gfxapi.ResourceID
	StencilStaging gfxapi.ResourceID

	Buffer gfxapi.ResourceID
	Offset uint64
}
