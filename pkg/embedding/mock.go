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

package embedding

import (
	"context"
	"math"
)

// Mock is a deterministic in-memory provider for tests. Vectors are
// derived from a text hash, so equal texts embed identically and the
// result passes ValidateVector.
type Mock struct {
	// Dim is the vector dimension. Zero selects 8.
	Dim int

	// TagName overrides Tag(). Empty selects "mock_8d"-style naming.
	TagName string

	// Err, when set, is returned by every Embed call.
	Err error

	// EmbedFunc, when set, replaces the default deterministic behavior.
	EmbedFunc func(ctx context.Context, kind InputKind, texts []string) ([][]float32, error)

	// Calls counts Embed invocations.
	Calls int
}

// Dimension implements Provider.
func (m *Mock) Dimension() int {
	if m.Dim <= 0 {
		return 8
	}
	return m.Dim
}

// Tag implements Provider.
func (m *Mock) Tag() string {
	if m.TagName != "" {
		return m.TagName
	}
	return "mock_8d"
}

// Embed implements Provider.
func (m *Mock) Embed(ctx context.Context, kind InputKind, texts []string) ([][]float32, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, kind, texts)
	}

	dim := m.Dimension()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = MockVector(text, dim)
	}
	return out, nil
}

// MockVector returns the deterministic unit vector Mock produces for
// text. Exposed so tests can predict search scores.
func MockVector(text string, dim int) []float32 {
	hash := uint64(5381)
	for _, c := range text {
		hash = hash*33 + uint64(c)
	}

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		v := float64((hash+uint64(i)*7919)%10000)/5000.0 - 1.0
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= float32(norm)
		}
	}
	return vec
}
