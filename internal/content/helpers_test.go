package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTree creates files below root from a path -> content map.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

const variablesTopic = `---
title: Variables
description: Storing values in names
difficulty: beginner
order: 1
tags: [Basics, " Names "]
learning_objectives: [Assign values]
resources:
  - title: Docs
    url: https://docs.python.org/3/
---
Variables hold values. Use assignment to bind a name.

## Example: Assigning a number

Binds the name x to 42.

` + "```python\nx = 42\nprint(x)\n```\n\n```output\n42\n```\n" + `
## Exercise: Swap two variables

Swap the values of a and b.

Use tuple unpacking.

> Hint: a, b = b, a

` + "```python\na, b = 1, 2\n```\n\n```solution\na, b = b, a\n```\n"

const loopsTopic = `---
title: Loops
description: Repeating work with for and while
order: 2
prerequisites: [Variables]
---
Loops repeat a block of code.
`

const functionsTopic = `---
title: Functions
description: Reusable blocks of code
order: 3
prerequisites: [Loops]
---
Functions are defined with def.
`

// fixtureContent builds a content root with python (3 topics) and go (1 topic).
func fixtureContent(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"languages/python/metadata.yaml": "name: Python\ndescription: A friendly language\ncolor: \"#3776ab\"\nestimated_hours: 40\n",
		"languages/python/variables.md":  variablesTopic,
		"languages/python/loops.md":      loopsTopic,
		"languages/python/functions.md":  functionsTopic,
		"languages/python/_draft.md":     "---\ntitle: Draft\n---\nnot loaded\n",
		"languages/python/notes.txt":     "ignored",
		"languages/go/01-goroutines.md":  "Goroutines run functions concurrently. Loops can spawn them.\n",
		"languages/_template/readme.md":  "ignored language",
	})
	return root
}
