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

// VerticesPerPrimitive returns the number of vertices needed to draw a
// single primitive of the topology.
func (t Topology) VerticesPerPrimitive() uint32 {
	switch t {
	case TopologyPointList:
		return 1
	case TopologyLineList, TopologyLineStrip:
		return 2
	default:
		return 3
	}
}

// PrimitiveVertexOffset returns the offset of primitive prim's first vertex
// (or index) within the original draw, so that a draw of
// VerticesPerPrimitive vertices starting there replays just that primitive.
func (t Topology) PrimitiveVertexOffset(prim uint32) uint32 {
	switch t {
	case TopologyPointList:
		return prim
	case TopologyLineList:
		return prim * 2
	case TopologyLineStrip:
		return prim
	case TopologyTriangleList:
		return prim * 3
	case TopologyTriangleStrip:
		return prim
	case TopologyTriangleFan:
		// Fans reuse vertex 0; replaying a lone interior primitive is not
		// representable as a contiguous range, so the offset starts at the
		// primitive's second edge and the caller accepts the approximation.
		return prim + 1
	}
	return prim
}
