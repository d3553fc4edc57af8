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
	"fmt"
)

// InputKind distinguishes documents being indexed from search queries.
// Some models embed the two asymmetrically.
type InputKind string

const (
	// Document marks text that will be stored and searched over.
	Document InputKind = "document"

	// Query marks text used to search stored documents.
	Query InputKind = "query"
)

// Provider is the capability set every embedding backend exposes.
type Provider interface {
	// Embed returns one vector per input text, in input order. Inputs
	// must be non-empty strings; callers filter empties beforehand.
	Embed(ctx context.Context, kind InputKind, texts []string) ([][]float32, error)

	// Dimension is the fixed length of every vector Embed returns.
	Dimension() int

	// Tag identifies the provider and dimension, e.g. "qwen_2048d".
	// It is embedded in collection names, so it must stay stable.
	Tag() string
}

// Error classes. Provider implementations wrap their failures so
// callers can decide between retrying and giving up with errors.Is.
var (
	// ErrTransient marks failures worth retrying: timeouts, connection
	// resets, HTTP 429 and 5xx.
	ErrTransient = errors.New("transient embedding provider error")

	// ErrFatal marks failures retrying cannot fix: bad credentials,
	// invalid requests, degenerate output.
	ErrFatal = errors.New("fatal embedding provider error")
)

// transientf wraps err into the transient class with context.
func transientf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

// fatalf wraps err into the fatal class with context.
func fatalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFatal, fmt.Sprintf(format, args...))
}

// minVariance is the smallest per-vector variance accepted by Validate.
// A provider returning near-constant vectors is broken, and storing
// such vectors silently poisons search results.
const minVariance = 1e-6

// ValidateVector checks one vector against the provider contract:
// correct dimension, not all-identical, variance above minVariance.
// Violations are fatal errors.
func ValidateVector(vec []float32, dim int) error {
	if len(vec) != dim {
		return fatalf("vector dimension %d, want %d", len(vec), dim)
	}
	if len(vec) == 0 {
		return fatalf("empty vector")
	}

	var sum, sumSq float64
	identical := true
	for _, v := range vec {
		f := float64(v)
		sum += f
		sumSq += f * f
		if v != vec[0] {
			identical = false
		}
	}
	if identical {
		return fatalf("degenerate vector: all %d values equal %v", len(vec), vec[0])
	}

	n := float64(len(vec))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance <= minVariance {
		return fatalf("degenerate vector: variance %g below %g", variance, minVariance)
	}
	return nil
}

// ValidateBatch checks a batch of vectors returned for n inputs.
func ValidateBatch(vectors [][]float32, n, dim int) error {
	if len(vectors) != n {
		return fatalf("provider returned %d vectors for %d inputs", len(vectors), n)
	}
	for i, vec := range vectors {
		if err := ValidateVector(vec, dim); err != nil {
			return fmt.Errorf("vector %d: %w", i, err)
		}
	}
	return nil
}
