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
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ExtractSymbols pulls function and class names out of a fenced code
// block, returning "func:<name>" / "class:<name>" entries in source
// order. A strict tree-sitter parse is tried first for the languages we
// carry grammars for; snippets that fail to parse cleanly (they are
// often truncated mid-function) fall back to regex extraction.
func ExtractSymbols(code, lang string) []string {
	language := grammarFor(lang)
	if language == nil {
		return regexSymbols(code)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(language)
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(code))
	if err != nil {
		return regexSymbols(code)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return regexSymbols(code)
	}

	var symbols []string
	walkSymbols(root, []byte(code), normalizeLang(lang), &symbols)
	return dedupe(symbols)
}

// grammarFor maps a fence language tag to a tree-sitter grammar.
func grammarFor(lang string) *sitter.Language {
	switch normalizeLang(lang) {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	default:
		return nil
	}
}

func normalizeLang(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "go", "golang":
		return "go"
	case "py", "python", "python3":
		return "python"
	case "js", "javascript", "jsx", "node":
		return "javascript"
	case "ts", "typescript", "tsx":
		return "typescript"
	default:
		return ""
	}
}

func walkSymbols(node *sitter.Node, content []byte, lang string, out *[]string) {
	if node == nil {
		return
	}

	if prefix := classifyNode(node.Type(), lang); prefix != "" {
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			*out = append(*out, prefix+":"+nameNode.Content(content))
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		walkSymbols(node.NamedChild(i), content, lang, out)
	}
}

// classifyNode maps an AST node type to a symbol prefix.
func classifyNode(nodeType, lang string) string {
	switch lang {
	case "go":
		switch nodeType {
		case "function_declaration", "method_declaration":
			return "func"
		case "type_spec":
			return "class"
		}
	case "python":
		switch nodeType {
		case "function_definition":
			return "func"
		case "class_definition":
			return "class"
		}
	case "javascript", "typescript":
		switch nodeType {
		case "function_declaration", "generator_function_declaration", "method_definition":
			return "func"
		case "class_declaration", "interface_declaration":
			return "class"
		}
	}
	return ""
}

var (
	reFuncGo     = regexp.MustCompile(`func\s+(?:\([^)]+\)\s+)?([A-Za-z_]\w*)\s*\(`)
	reFuncPython = regexp.MustCompile(`def\s+([A-Za-z_]\w*)\s*\(`)
	reFuncJS     = regexp.MustCompile(`function\s+([A-Za-z_$]\w*)\s*\(`)
	reClass      = regexp.MustCompile(`class\s+([A-Za-z_$]\w*)`)
)

// regexSymbols is the tolerant fallback used when no grammar matches
// or the snippet does not parse.
func regexSymbols(code string) []string {
	var symbols []string
	for _, re := range []*regexp.Regexp{reFuncGo, reFuncPython, reFuncJS} {
		for _, m := range re.FindAllStringSubmatch(code, -1) {
			symbols = append(symbols, "func:"+m[1])
		}
	}
	for _, m := range reClass.FindAllStringSubmatch(code, -1) {
		symbols = append(symbols, "class:"+m[1])
	}
	return dedupe(symbols)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
