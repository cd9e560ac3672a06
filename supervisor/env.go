package supervisor

import "strings"

// nestingGuardVars are the environment variables an agent judge CLI sets in
// its own sessions and refuses to start under. They are stripped before
// launching a judge so the engine can invoke one even when the engine
// itself is running inside such a session.
var nestingGuardVars = []string{
	"CLAUDECODE",
	"CLAUDE_CODE_ENTRYPOINT",
	"CLAUDE_CODE_SSE_PORT",
}

// CleanEnv returns a copy of environ with the nesting-guard variables
// removed. All other entries are preserved unchanged, byte for byte.
func CleanEnv(environ []string) []string {
	cleaned := make([]string, 0, len(environ))
	for _, entry := range environ {
		if isGuardVar(entry) {
			continue
		}
		cleaned = append(cleaned, entry)
	}
	return cleaned
}

// isGuardVar reports whether an environ entry ("KEY=value") sets a guard variable
func isGuardVar(entry string) bool {
	key, _, found := strings.Cut(entry, "=")
	if !found {
		return false
	}
	for _, guard := range nestingGuardVars {
		if key == guard {
			return true
		}
	}
	return false
}
