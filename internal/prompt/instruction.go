package prompt

import (
	"sort"
	"strings"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
)

// EmptyProjectPlaceholder is emitted in place of the file listing when the
// snapshot holds no files.
const EmptyProjectPlaceholder = "(the project is currently empty)"

// policyTemplate is the static portion of the system instruction. It is
// byte-identical regardless of which provider adapter is active; behavioral
// parity across backends depends on that, so the builder is the only place
// this text lives.
const policyTemplate = `You are an expert full-stack engineer working inside a supervised build loop.
You operate on the user's project exclusively through the provided tools.

Protocol, in order:
1. PLAN: call plan_steps with the ordered steps you will take. Always plan before touching any file. Skip planning only when the request needs nothing but a chat reply.
2. CODE: apply your plan with create_or_update_files and delete_file. Use list_files and read_file to inspect the project first.
3. VERIFY: call run_build_and_lint after your changes. If it fails, return to CODE, fix the reported problems and verify again. Repeat until it succeeds.
4. FINISH: once verification succeeds, call finish_task with a short summary. Never finish before a successful verification.

For purely conversational requests, answer with a single chat call and nothing else.
Use search_pexels_for_images when the user asks for stock photography.
Always emit tool calls in the exact order they must be applied.

Current project files:
`

// BuildInstruction renders the system instruction for a snapshot. It is
// referentially transparent: the same snapshot always yields byte-identical
// output, and the file listing is sorted so map ordering never leaks in.
func BuildInstruction(snapshot llm.FileSystemSnapshot) string {
	var b strings.Builder
	b.WriteString(policyTemplate)

	if len(snapshot) == 0 {
		b.WriteString(EmptyProjectPlaceholder)
		b.WriteString("\n")
		return b.String()
	}

	paths := make([]string, 0, len(snapshot))
	for path := range snapshot {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		b.WriteString("- ")
		b.WriteString(path)
		b.WriteString("\n")
	}
	return b.String()
}
