/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * mediapipe
 * Copyright (C) 2025 e1z0 <e1z0@icloud.com>
 *
 * This file is part of mediapipe.
 *
 * mediapipe is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * mediapipe is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with mediapipe.  If not, see <https://www.gnu.org/licenses/>.
 */

package decoder

import "sync/atomic"

// State mirrors spec.md §3's PlayerState for a single decoder.
type State int32

const (
	StateUnknown State = iota
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

type atomicState struct{ v int32 }

func (a *atomicState) load() State       { return State(atomic.LoadInt32(&a.v)) }
func (a *atomicState) store(s State)     { atomic.StoreInt32(&a.v, int32(s)) }
func (a *atomicState) cas(old, new State) bool {
	return atomic.CompareAndSwapInt32(&a.v, int32(old), int32(new))
}
