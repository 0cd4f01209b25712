// Package junk generates the throwaway content and names the filler
// utilities push to GitHub.
package junk

import (
	"fmt"
	"math/rand"
	"strings"
)

// Characters junk files are built from: ASCII letters, digits and punctuation.
const alphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Content returns n random characters, one per line.
func Content(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(2*n - 1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}
	return b.String()
}

// FileName builds the i-th junk file name, e.g. "junk-3.txt".
func FileName(prefix string, i int, ext string) string {
	return fmt.Sprintf("%s%d.%s", prefix, i, ext)
}

// RepoName builds the i-th junk repository name, e.g. "junk-repo-3".
func RepoName(prefix string, i int) string {
	return fmt.Sprintf("%s%d", prefix, i)
}

// CommitMessage is the commit message used when writing a junk file.
func CommitMessage(path string) string {
	return fmt.Sprintf("Add/Update file %s with junk content", path)
}
