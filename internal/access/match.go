package access

// ContextMatches reports whether every constraint in grant is satisfied by
// query. An empty grant context is unconstrained; keys present only in the
// query are ignored.
func ContextMatches(grant, query map[string]string) bool {
	for k, want := range grant {
		got, ok := query[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
