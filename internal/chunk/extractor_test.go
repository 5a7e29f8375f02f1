package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanImports(t *testing.T) {
	tests := []struct {
		name     string
		language string
		content  string
		want     []string
	}{
		{
			name:     "typescript from clause",
			language: "typescript",
			content:  "import { GameState } from \"./state\";\nimport * as utils from '../utils';",
			want:     []string{"./state", "../utils"},
		},
		{
			name:     "javascript bare and require",
			language: "javascript",
			content:  "import \"./polyfill\";\nconst fs = require('fs');",
			want:     []string{"./polyfill", "fs"},
		},
		{
			name:     "go import block",
			language: "go",
			content:  "import (\n\t\"fmt\"\n\t\"strings\"\n)",
			want:     []string{"fmt", "strings"},
		},
		{
			name:     "go single import",
			language: "go",
			content:  "import \"os\"",
			want:     []string{"os"},
		},
		{
			name:     "python import forms",
			language: "python",
			content:  "import os.path\nfrom collections import Counter",
			want:     []string{"os.path", "collections"},
		},
		{
			name:     "no imports",
			language: "typescript",
			content:  "const x = 1;",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanImports(tt.language, tt.content))
		})
	}
}

func TestScanSymbols(t *testing.T) {
	tests := []struct {
		name     string
		language string
		content  string
		want     []string
	}{
		{
			name:     "typescript declarations",
			language: "typescript",
			content:  "export function togglePause() {}\ninterface GameState {}\nexport const MAX_COMBO = 5;",
			want:     []string{"togglePause", "GameState", "MAX_COMBO"},
		},
		{
			name:     "go functions and types",
			language: "go",
			content:  "func Add(a, b int) int {}\nfunc (c *Counter) Inc() {}\ntype Counter struct{}",
			want:     []string{"Add", "Inc", "Counter"},
		},
		{
			name:     "python defs",
			language: "python",
			content:  "def pause(self):\n    pass\nclass Game:\n    pass",
			want:     []string{"pause", "Game"},
		},
		{
			name:     "duplicates collapse in order",
			language: "go",
			content:  "func A() {}\nfunc A() {}\nfunc B() {}",
			want:     []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanSymbols(tt.language, tt.content))
		})
	}
}
