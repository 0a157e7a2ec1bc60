// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package shellquote escapes argument tokens for POSIX shells. The user's
// extra argument tokens cross a shell boundary exactly once, when the
// in-container command line is assembled, and this package is the only
// code allowed to flatten tokens into that line.
//
// The contract is a round-trip law: for any token vector xs,
// Split(Join(xs)) == xs. Embedded single quotes, whitespace, dollar signs,
// backticks, and newlines all survive byte-for-byte.
package shellquote

import (
	"fmt"
	"strings"
)

// Quote returns a shell-safe form of a single token. Tokens made entirely
// of safe characters pass through unchanged; everything else is wrapped in
// single quotes with embedded single quotes escaped as '\''. The empty
// token quotes to ''.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, char := range s {
		if !isShellSafe(char) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Join quotes each token and joins them with single spaces, producing a
// string a POSIX shell will split back into exactly the input tokens.
func Join(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}

// Split is the inverse of Join: it performs POSIX-style word splitting on
// a command line, honoring single quotes, double quotes, and backslash
// escapes. It returns an error for unterminated quoting so malformed input
// is never silently truncated.
func Split(line string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		char := runes[i]
		switch {
		case char == '\\':
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("trailing backslash")
			}
			i++
			current.WriteRune(runes[i])
			inWord = true
		case char == '\'':
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '\'' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("unterminated single quote")
			}
			current.WriteString(string(runes[i+1 : end]))
			i = end
			inWord = true
		case char == '"':
			end, segment, err := scanDoubleQuoted(runes, i+1)
			if err != nil {
				return nil, err
			}
			current.WriteString(segment)
			i = end
			inWord = true
		case char == ' ' || char == '\t' || char == '\n':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(char)
			inWord = true
		}
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}

// scanDoubleQuoted consumes a double-quoted segment starting just past the
// opening quote, returning the index of the closing quote and the decoded
// content. Backslash escapes the next character inside double quotes.
func scanDoubleQuoted(runes []rune, start int) (int, string, error) {
	var segment strings.Builder
	for i := start; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 >= len(runes) {
				return 0, "", fmt.Errorf("trailing backslash in double quote")
			}
			i++
			segment.WriteRune(runes[i])
		case '"':
			return i, segment.String(), nil
		default:
			segment.WriteRune(runes[i])
		}
	}
	return 0, "", fmt.Errorf("unterminated double quote")
}

// isShellSafe returns true if the character never needs shell quoting.
func isShellSafe(char rune) bool {
	if char >= 'a' && char <= 'z' {
		return true
	}
	if char >= 'A' && char <= 'Z' {
		return true
	}
	if char >= '0' && char <= '9' {
		return true
	}
	switch char {
	case '-', '_', '.', '/', ':', '=', '+', ',', '@':
		return true
	}
	return false
}
