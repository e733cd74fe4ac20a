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

import "github.com/e1z0/mediapipe/internal/mediapipe/media"

// Feed abstracts spec.md §4.3 steps 4-5: where a Decoder gets its next
// compressed packet, and how a seek is carried out. SoftwarePlayer gives
// each Decoder a Feed that owns its own demuxing container
// (av_read_frame-equivalent); HardwarePlayer gives each decode worker a
// Feed that pops from a PacketQueue filled by a separate demux worker.
type Feed interface {
	// FetchPacket returns the next compressed packet for this decoder's
	// stream, blocking per spec.md §4.3 step 5. ok is false only at a
	// genuine end-of-stream/stopped condition.
	FetchPacket() (*media.Packet, bool)

	// Seek moves this feed to position (a normalized [0,1] fraction of
	// total duration), flushing whatever buffers that implies (the
	// feed's own queue/container and, via Decoder, the codec). Returning
	// an error leaves pending_seek cleared without flushing, per spec.md
	// §7's seek-failure policy.
	Seek(position float64) error

	// Close releases feed-owned resources. For a queue-backed feed in
	// HardwarePlayer this is a no-op: the queue and its demuxer outlive
	// any single decode worker.
	Close() error
}
