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
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/jpark37/renderdoc/core/fault"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/replay"
	"github.com/jpark37/renderdoc/gapis/shadertools"
)

// ErrEntryPointNotFound is returned when a shader module does not declare
// the entry point its pipeline binds. This indicates capture corruption and
// is fatal for the invocation.
const ErrEntryPointNotFound = fault.Const("shader entry point not found")

type shaderKey struct {
	shader gfxapi.ResourceID
	entry  string
}

// shaderCache memoizes the temporary shader modules one pixel history
// invocation creates. It is not safe for concurrent use; the orchestrator is
// single threaded.
type shaderCache struct {
	builder replay.Builder

	// strip controls whether side-effect stripping happens at all. With it
	// off every shader reports "nothing to strip".
	strip bool

	fixedColor  map[uint32]gfxapi.ResourceID
	primitiveID map[uint32]gfxapi.ResourceID

	// stripped maps (shader, entry) to the side-effect-free replacement, or
	// NilResource when the shader had no side effects to remove. The nil
	// sentinel is cached too, so each shader is edited at most once.
	stripped map[shaderKey]gfxapi.ResourceID
}

func newShaderCache(b replay.Builder, strip bool) *shaderCache {
	return &shaderCache{
		builder:     b,
		strip:       strip,
		fixedColor:  map[uint32]gfxapi.ResourceID{},
		primitiveID: map[uint32]gfxapi.ResourceID{},
		stripped:    map[shaderKey]gfxapi.ResourceID{},
	}
}

// fixedColorShader returns a fragment shader writing an opaque fixed color
// to the given color attachment slot.
func (c *shaderCache) fixedColorShader(ctx context.Context, slot uint32) (gfxapi.ResourceID, error) {
	if sh, ok := c.fixedColor[slot]; ok {
		return sh, nil
	}
	sh, err := c.builder.BuiltinShader(ctx, shadertools.BuiltinFixedColor, slot)
	if err != nil {
		return gfxapi.NilResource, fmt.Errorf("fixed color shader for slot %d: %w", slot, err)
	}
	c.fixedColor[slot] = sh
	return sh, nil
}

// primitiveIDShader returns a fragment shader writing the primitive id to
// the given color attachment slot.
func (c *shaderCache) primitiveIDShader(ctx context.Context, slot uint32) (gfxapi.ResourceID, error) {
	if sh, ok := c.primitiveID[slot]; ok {
		return sh, nil
	}
	sh, err := c.builder.BuiltinShader(ctx, shadertools.BuiltinPrimitiveID, slot)
	if err != nil {
		return gfxapi.NilResource, fmt.Errorf("primitive id shader for slot %d: %w", slot, err)
	}
	c.primitiveID[slot] = sh
	return sh, nil
}

// sideEffectFreeShader returns a module equivalent to shader's entry point
// with writes to storage buffers and images removed, or NilResource when
// the shader has no such writes and needs no replacement.
func (c *shaderCache) sideEffectFreeShader(ctx context.Context, shader gfxapi.ResourceID, entry string) (gfxapi.ResourceID, error) {
	if !c.strip {
		return gfxapi.NilResource, nil
	}
	key := shaderKey{shader, entry}
	if sh, ok := c.stripped[key]; ok {
		return sh, nil
	}
	sh, err := c.createStripped(ctx, shader, entry)
	if err != nil {
		return gfxapi.NilResource, err
	}
	c.stripped[key] = sh
	return sh, nil
}

func (c *shaderCache) createStripped(ctx context.Context, shader gfxapi.ResourceID, entry string) (gfxapi.ResourceID, error) {
	ed, err := c.builder.OpenShaderEditor(ctx, shader)
	if err != nil {
		return gfxapi.NilResource, fmt.Errorf("editing shader %v: %w", shader, err)
	}
	for _, ep := range ed.EntryPoints() {
		if ep.Name != entry {
			continue
		}
		// A shader may bind a RW resource without writing it. If nothing
		// was removed the original module serves as-is and the nil
		// sentinel marks the shader as processed.
		if !stripSideEffects(ed, ep.Function) {
			return gfxapi.NilResource, nil
		}
		sh, err := c.builder.CreateShaderModule(ctx, ed.Bytecode())
		if err != nil {
			return gfxapi.NilResource, fmt.Errorf("creating stripped shader for %v: %w", shader, err)
		}
		return sh, nil
	}
	log.FromContext(ctx).Error("shader entry point not found", "shader", shader, "entry", entry)
	return gfxapi.NilResource, ErrEntryPointNotFound
}

// stripSideEffects removes instructions reachable from entry that write
// outside the invocation. Reports whether anything was removed.
func stripSideEffects(ed shadertools.Editor, entry shadertools.FuncID) bool {
	modified := false

	// Call-graph walk with a visited set; no function is patched twice.
	patched := map[shadertools.FuncID]bool{}
	queue := []shadertools.FuncID{entry}
	for len(queue) > 0 {
		fn := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if patched[fn] {
			continue
		}
		patched[fn] = true

		for _, in := range ed.Instructions(fn) {
			switch {
			case in.Op == shadertools.OpFunctionCall:
				if !patched[in.Callee] {
					queue = append(queue, in.Callee)
				}

			case in.Op == shadertools.OpStore,
				in.Op == shadertools.OpCopyMemory,
				in.Op == shadertools.OpAtomicStore:
				if ed.PointerStorageClass(in.Pointer).Writable() {
					ed.Remove(in.ID)
					modified = true
				}

			case in.Op == shadertools.OpImageWrite:
				ed.Remove(in.ID)
				modified = true

			case in.Op.IsAtomicRMW():
				// These produce the value previously stored at the
				// pointer. Keep consumers of the result alive with a plain
				// atomic load in the removed instruction's place. Best
				// effort: other invocations no longer observe the write.
				ed.Remove(in.ID)
				ed.InsertAtomicLoad(in.ID, in.ResultType, in.Result, in.Pointer, in.Scope, in.Semantics)
				modified = true
			}
		}
	}
	return modified
}

// destroy releases the modules the cache created. Builtin shaders are owned
// by the backend and survive the invocation.
func (c *shaderCache) destroy(ctx context.Context) {
	for _, sh := range c.stripped {
		if !sh.IsNil() {
			c.builder.Destroy(ctx, sh)
		}
	}
	c.stripped = nil
}
