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
	"context"

	"github.com/jpark37/renderdoc/gapis/api"
)

// EventHooks is the callback interface the replay controller invokes around
// each event while re-executing a command stream. A hook may record extra
// GPU work into cmd and may mutate the controller's render state; the
// controller restores recorded command-stream state itself between events.
//
// Post hooks that return true request the controller replay the event once
// more, after which the matching PostRe hook runs.
type EventHooks interface {
	PreDraw(ctx context.Context, id api.EventID, cmd CommandBuffer)
	PostDraw(ctx context.Context, id api.EventID, cmd CommandBuffer) bool
	PostRedraw(ctx context.Context, id api.EventID, cmd CommandBuffer)

	PreDispatch(ctx context.Context, id api.EventID, cmd CommandBuffer)
	PostDispatch(ctx context.Context, id api.EventID, cmd CommandBuffer) bool
	PostRedispatch(ctx context.Context, id api.EventID, cmd CommandBuffer)

	PreMisc(ctx context.Context, id api.EventID, flags api.DrawFlags, cmd CommandBuffer)
	PostMisc(ctx context.Context, id api.EventID, flags api.DrawFlags, cmd CommandBuffer) bool
	PostRemisc(ctx context.Context, id api.EventID, flags api.DrawFlags, cmd CommandBuffer)

	PreEndCommandBuffer(ctx context.Context, cmd CommandBuffer)

	// AliasEvent notifies that two recorded event ids map onto one
	// underlying operation.
	AliasEvent(ctx context.Context, primary, alias api.EventID)

	// SplitSecondary asks whether secondary command buffer executions
	// should be split so the controller can interpose around them.
	SplitSecondary() bool

	// PreExecuteSecondary and PostExecuteSecondary run around the execution
	// of secondary command buffers covering events [first, last].
	PreExecuteSecondary(ctx context.Context, base, first, last api.EventID, cmd CommandBuffer)
	PostExecuteSecondary(ctx context.Context, base, first, last api.EventID, cmd CommandBuffer)
}

// NopHooks implements EventHooks with no-ops, for embedding.
type NopHooks struct{}

func (NopHooks) PreDraw(context.Context, api.EventID, CommandBuffer)        {}
func (NopHooks) PostDraw(context.Context, api.EventID, CommandBuffer) bool  { return false }
func (NopHooks) PostRedraw(context.Context, api.EventID, CommandBuffer)     {}
func (NopHooks) PreDispatch(context.Context, api.EventID, CommandBuffer)    {}
func (NopHooks) PostDispatch(context.Context, api.EventID, CommandBuffer) bool {
	return false
}
func (NopHooks) PostRedispatch(context.Context, api.EventID, CommandBuffer) {}
func (NopHooks) PreMisc(context.Context, api.EventID, api.DrawFlags, CommandBuffer) {
}
func (NopHooks) PostMisc(context.Context, api.EventID, api.DrawFlags, CommandBuffer) bool {
	return false
}
func (NopHooks) PostRemisc(context.Context, api.EventID, api.DrawFlags, CommandBuffer) {
}
func (NopHooks) PreEndCommandBuffer(context.Context, CommandBuffer)  {}
func (NopHooks) AliasEvent(context.Context, api.EventID, api.EventID) {}
func (NopHooks) SplitSecondary() bool                                 { return false }
func (NopHooks) PreExecuteSecondary(context.Context, api.EventID, api.EventID, api.EventID, CommandBuffer) {
}
func (NopHooks) PostExecuteSecondary(context.Context, api.EventID, api.EventID, api.EventID, CommandBuffer) {
}
