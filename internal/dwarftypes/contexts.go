package dwarftypes

import "strconv"

// ContextEntry is one row of the diagnostic `--contexts` JSON dump.
// Context is rendered with Go-syntax quoting (strconv.Quote) rather than
// passed through raw: context bytes routinely embed NUL and other control
// bytes that would otherwise round-trip lossily through plain JSON string
// escaping, but the field still carries the context string itself rather
// than a re-encoded blob.
type ContextEntry struct {
	Offset   uint64 `json:"offset"`
	Context  string `json:"context"`
	Producer string `json:"producer"`
}

// Entries renders a context-map snapshot as the ordered-by-offset entry
// list the --contexts flag writes out.
func Entries(snapshot map[uint64]TypeContext) []ContextEntry {
	out := make([]ContextEntry, 0, len(snapshot))
	for offset, ctx := range snapshot {
		producer := ""
		if ctx.Producer != nil {
			producer = *ctx.Producer
		}
		out = append(out, ContextEntry{
			Offset:   offset,
			Context:  strconv.Quote(string(ctx.Context)),
			Producer: producer,
		})
	}
	sortEntries(out)
	return out
}

func sortEntries(entries []ContextEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Offset > entries[j].Offset; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}
