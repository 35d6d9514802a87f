package player

import "strings"

// PathTransform rewrites a track path before it is handed to the player.
type PathTransform func(string) string

// RewritePrefix returns a transform replacing a leading from with to. Paths
// without the prefix are returned unchanged.
func RewritePrefix(from, to string) PathTransform {
	return func(p string) string {
		if rest, ok := strings.CutPrefix(p, from); ok {
			return to + rest
		}
		return p
	}
}

func applyTransforms(path string, transforms []PathTransform) string {
	for _, t := range transforms {
		path = t(path)
	}
	return path
}

// quoteArg quotes s for the slave-mode tokenizer when it contains spaces or
// quotes.
func quoteArg(s string) string {
	if !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
