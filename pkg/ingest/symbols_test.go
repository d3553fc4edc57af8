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
	"slices"
	"testing"
)

func TestExtractSymbolsGo(t *testing.T) {
	code := `package main

type Server struct {
	addr string
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

func (s *Server) Start() error {
	return nil
}
`
	symbols := ExtractSymbols(code, "go")
	for _, want := range []string{"func:NewServer", "func:Start", "class:Server"} {
		if !slices.Contains(symbols, want) {
			t.Errorf("missing %q in %v", want, symbols)
		}
	}
}

func TestExtractSymbolsPython(t *testing.T) {
	code := `class Importer:
    def __init__(self, path):
        self.path = path

    def run(self):
        pass

def main():
    pass
`
	symbols := ExtractSymbols(code, "python")
	for _, want := range []string{"class:Importer", "func:__init__", "func:run", "func:main"} {
		if !slices.Contains(symbols, want) {
			t.Errorf("missing %q in %v", want, symbols)
		}
	}
}

func TestExtractSymbolsTypeScript(t *testing.T) {
	code := `class SearchClient {
  query(text: string): Promise<Result[]> {
    return this.send(text);
  }
}

function buildIndex(docs: string[]): void {}
`
	symbols := ExtractSymbols(code, "ts")
	for _, want := range []string{"class:SearchClient", "func:query", "func:buildIndex"} {
		if !slices.Contains(symbols, want) {
			t.Errorf("missing %q in %v", want, symbols)
		}
	}
}

func TestExtractSymbolsRegexFallback(t *testing.T) {
	// Truncated snippet: does not parse, the regex pass still finds
	// the names.
	code := `def compute_scores(hits):
    for h in hits
        # missing colon above, syntax error
`
	symbols := ExtractSymbols(code, "python")
	if !slices.Contains(symbols, "func:compute_scores") {
		t.Fatalf("fallback missed function: %v", symbols)
	}
}

func TestExtractSymbolsUnknownLanguage(t *testing.T) {
	code := `class Widget
  def render
  end
end
`
	symbols := ExtractSymbols(code, "ruby")
	if !slices.Contains(symbols, "class:Widget") {
		t.Fatalf("generic regex missed class: %v", symbols)
	}
}

func TestExtractSymbolsDedupes(t *testing.T) {
	code := "func helper() {}\nfunc helper() {}"
	symbols := ExtractSymbols(code, "")
	count := 0
	for _, s := range symbols {
		if s == "func:helper" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate symbols: %v", symbols)
	}
}
