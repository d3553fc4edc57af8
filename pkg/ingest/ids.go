// Copyright 2025 Leeaandrob
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

// ChunkPointID derives the deterministic point ID for one conversation
// chunk: the first 16 hex digits of md5("<conversation_id>_<index>")
// reduced modulo 2^63. Re-importing a conversation lands on the same
// IDs, so upserts overwrite in place.
func ChunkPointID(conversationID string, chunkIndex int) uint64 {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", conversationID, chunkIndex)))
	return binary.BigEndian.Uint64(sum[:8]) & (1<<63 - 1)
}

// NarrativePointID derives the point ID for a conversation narrative:
// the first 16 hex digits of md5(conversation_id) as an unsigned
// 64-bit value. One narrative per conversation.
func NarrativePointID(conversationID string) uint64 {
	sum := md5.Sum([]byte(conversationID))
	return binary.BigEndian.Uint64(sum[:8])
}
