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

import "github.com/jpark37/renderdoc/gapis/gfxapi"

// scissorToPixel returns a 1x1 scissor at (x, y) if the pixel lies inside
// the viewport, else an empty scissor. The viewport height may be negative
// to flip the vertical axis.
func scissorToPixel(view gfxapi.Viewport, x, y uint32) gfxapi.Rect2D {
	fx, fy := float32(x), float32(y)
	yStart, yEnd := view.Y, view.Y+view.Height
	if view.Height < 0 {
		yStart, yEnd = yEnd, yStart
	}
	if fx < view.X || fy < yStart || fx >= view.X+view.Width || fy >= yEnd {
		return gfxapi.Rect2D{}
	}
	return gfxapi.Rect2D{
		Offset: gfxapi.Offset2D{X: int32(x), Y: int32(y)},
		Extent: gfxapi.Extent2D{Width: 1, Height: 1},
	}
}

// intersectScissors zeroes the 1x1 pixel scissor unless it is fully
// contained in original.
func intersectScissors(original, pixel gfxapi.Rect2D) gfxapi.Rect2D {
	if pixel.Empty() {
		return pixel
	}
	if original.Offset.X > pixel.Offset.X ||
		original.Offset.X+int32(original.Extent.Width) < pixel.Offset.X+int32(pixel.Extent.Width) ||
		original.Offset.Y > pixel.Offset.Y ||
		original.Offset.Y+int32(original.Extent.Height) < pixel.Offset.Y+int32(pixel.Extent.Height) {
		return gfxapi.Rect2D{}
	}
	return pixel
}
