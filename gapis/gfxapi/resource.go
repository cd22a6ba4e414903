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

// Package gfxapi models the graphics API state that pixel history inspects
// and rewrites: resource identifiers, image formats, fixed-function pipeline
// state, render pass and framebuffer descriptions.
//
// The model is API-neutral but follows Vulkan's shape, since that is the
// richest fixed-function state a replay backend exposes. The live objects
// behind these descriptions are owned by the replay backend; this package
// only describes them.
package gfxapi

import "github.com/google/uuid"

// ResourceID is the unique identifier of a resource known to the replay
// backend: images, image views, buffers, pipelines, render passes,
// framebuffers, shader modules and query pools all share one id space.
type ResourceID uuid.UUID

// NilResource is the zero ResourceID, used as the "no resource" sentinel.
var NilResource = ResourceID(uuid.Nil)

// NewResourceID returns a fresh id. Backends call this when registering
// objects; the pixel history engine itself never mints ids.
func NewResourceID() ResourceID { return ResourceID(uuid.New()) }

// IsNil reports whether the id is the nil sentinel.
func (r ResourceID) IsNil() bool { return r == NilResource }

func (r ResourceID) String() string { return uuid.UUID(r).String() }
