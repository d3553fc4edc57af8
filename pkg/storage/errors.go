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

package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for Qdrant responses. Callers branch on these with
// errors.Is; the wrapped message carries the server detail.
var (
	// ErrNotFound maps 404 responses (missing collection or point).
	ErrNotFound = errors.New("not found")

	// ErrBadRequest maps 4xx responses other than 404. Retrying the
	// same request cannot succeed.
	ErrBadRequest = errors.New("bad request")

	// ErrTransient maps 5xx responses, 429 and transport failures.
	ErrTransient = errors.New("transient storage error")
)

// statusError wraps an HTTP status into the matching sentinel.
func statusError(status int, detail string) error {
	switch {
	case status == 404:
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	case status == 429 || status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrTransient, status, detail)
	case status >= 400:
		return fmt.Errorf("%w: status %d: %s", ErrBadRequest, status, detail)
	default:
		return fmt.Errorf("unexpected status %d: %s", status, detail)
	}
}
