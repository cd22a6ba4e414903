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

// Package history reconstructs the modification history of a single pixel
// across a recorded command stream.
//
// The engine replays the requested event range five times, each time with a
// different set of hooks installed on the replay controller:
//
//  1. Occlusion: every draw is re-issued with all tests disabled and the
//     scissor restricted to the pixel, inside an occlusion query. Draws with
//     a zero sample count cannot have touched the pixel and are dropped.
//  2. Color and stencil: for each surviving event the pre and post
//     modification values are copied out, and the draw is replayed twice
//     against a substitute depth-stencil target whose stencil acts as an
//     always-increment fragment counter, with and without shader discard.
//  3. Tests failed: each draw is replayed once per fixed-function test with
//     the remaining tests disabled, under its own occlusion query, to find
//     which test rejected the fragment.
//  4. Per fragment: events producing more than one fragment are replayed
//     once per fragment with a stencil compare-equal gate, capturing the
//     primitive id, the shader output value, and the running post
//     modification value of each fragment.
//  5. Discarded fragments: primitives suspected of shader discard are drawn
//     one at a time under occlusion queries; a zero result confirms the
//     discard.
//
// The passes run strictly in order on one goroutine; every replay is a full
// blocking replay of the event range, and query or buffer reads between
// passes act as synchronization barriers.
package history
