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

package project

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// pathMarker separates the flattened directory prefix from the project
// name in transcript directory names ("-Users-alice-projects-my-app").
const pathMarker = "projects-"

// Normalize reduces a project path, flattened transcript directory
// name, or bare name to the canonical project name used for hashing.
//
// The trailing path element (after the last "/") is taken first. If
// that element starts with "-" and contains "projects-", everything up
// to and including the LAST occurrence of the marker is stripped.
// Splitting at the last occurrence means nested markers resolve to the
// innermost segment: "-Users-a-projects-b-projects-c" becomes "c".
// Collection hashes on existing deployments were produced with exactly
// this behavior, so it must not change.
//
// Already-normalized names pass through unchanged, making Normalize
// idempotent.
func Normalize(raw string) string {
	name := strings.TrimSpace(raw)
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if strings.HasPrefix(name, "-") && strings.Contains(name, pathMarker) {
		idx := strings.LastIndex(name, pathMarker)
		name = name[idx+len(pathMarker):]
	}
	return name
}

// HashName returns the 8-character hex prefix of md5(Normalize(project))
// used in conversation collection names. MD5 here is a stable naming
// hash, not a security boundary.
func HashName(project string) string {
	sum := md5.Sum([]byte(Normalize(project)))
	return hex.EncodeToString(sum[:])[:8]
}

// CollectionName returns the conversation collection for a project and
// embedding suffix, e.g. "conv_7f6df0fc_voyage_1024d". The project name
// is normalized before hashing, so callers may pass either a raw path
// or an already-normalized name.
func CollectionName(project, suffix string) string {
	return convPrefix + HashName(project) + "_" + suffix
}

// NarrativeCollectionName returns the narrative collection for a
// project, e.g. "narratives_7f6df0fc2c57". Narrative collections use a
// 12-character hash to keep them visually distinct from conversation
// collections.
func NarrativeCollectionName(project string) string {
	sum := md5.Sum([]byte(Normalize(project)))
	return narrativePrefix + hex.EncodeToString(sum[:])[:12]
}
