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

package narrative

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// runLock is the cross-process singleton guard for the backfill. The
// lock file holds "PID timestamp" so a holder that died can be
// detected and cleared.
type runLock struct {
	path string
	file *os.File
}

// acquireRunLock takes the flock on path, clearing a stale lock left
// by a dead process. Returns ErrAlreadyRunning while a live holder
// exists.
func acquireRunLock(path string) (*runLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open lock file: %w", err)
		}

		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			if err := f.Truncate(0); err != nil {
				f.Close()
				return nil, fmt.Errorf("truncate lock file: %w", err)
			}
			if _, err := fmt.Fprintf(f, "%d %d\n", os.Getpid(), time.Now().Unix()); err != nil {
				f.Close()
				return nil, fmt.Errorf("write lock file: %w", err)
			}
			f.Sync()
			return &runLock{path: path, file: f}, nil
		}
		f.Close()
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("flock: %w", err)
		}

		// Held elsewhere. A dead holder means the flock should have
		// dropped with the process, so reaching here with a dead PID
		// only happens for leftover files on other failure paths;
		// clear it and retry once.
		pid, _, perr := lockHolder(path)
		if perr == nil && !processAlive(pid) {
			os.Remove(path)
			continue
		}
		return nil, ErrAlreadyRunning
	}
	return nil, ErrAlreadyRunning
}

// release drops the flock and removes the lock file.
func (l *runLock) release() {
	if l == nil || l.file == nil {
		return
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
}

// lockHolder reads the "PID timestamp" pair from the lock file.
func lockHolder(path string) (pid int, ts int64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	if _, err := fmt.Sscanf(string(data), "%d %d", &pid, &ts); err != nil {
		return 0, 0, fmt.Errorf("malformed lock file: %w", err)
	}
	return pid, ts, nil
}

// processAlive probes a PID with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
