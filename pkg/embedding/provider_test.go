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
	"errors"
	"testing"
)

func TestValidateVector(t *testing.T) {
	tests := []struct {
		name    string
		vec     []float32
		dim     int
		wantErr bool
	}{
		{"valid", []float32{0.5, -0.3, 0.8, 0.1}, 4, false},
		{"wrong dimension", []float32{0.5, -0.3}, 4, true},
		{"all zeros", []float32{0, 0, 0, 0}, 4, true},
		{"all identical", []float32{0.7, 0.7, 0.7, 0.7}, 4, true},
		{"near-zero variance", []float32{0.5, 0.5000001, 0.5, 0.5}, 4, true},
		{"empty", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVector(tt.vec, tt.dim)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVector() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrFatal) {
				t.Errorf("validation error should be fatal, got %v", err)
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	good := []float32{0.5, -0.3, 0.8, 0.1}

	if err := ValidateBatch([][]float32{good, good}, 2, 4); err != nil {
		t.Fatalf("valid batch rejected: %v", err)
	}

	// Fewer vectors than inputs is the classic silent-data-loss bug.
	if err := ValidateBatch([][]float32{good}, 2, 4); err == nil {
		t.Fatal("short batch accepted")
	}
}

func TestMockDeterministic(t *testing.T) {
	m := &Mock{Dim: 16}
	a, err := m.Embed(context.Background(), Document, []string{"hello", "world"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Embed(context.Background(), Document, []string{"hello"})
	if err != nil {
		t.Fatal(err)
	}

	if err := ValidateBatch(a, 2, 16); err != nil {
		t.Fatalf("mock vectors fail validation: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatal("mock embedding not deterministic for equal text")
		}
	}
}
