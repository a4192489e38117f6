package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

const reasoningInstruction = `You must respond using the agent_reasoning function on every turn. Think step by step:
1. thought: your reasoning about the current situation
2. plan: short list of next steps
3. criticism: constructive self-criticism of your approach
4. action: what to do next - use a tool ("tool"), keep reasoning ("continue"), or answer the user ("respond")

When you have enough information, respond to the user with action type "respond" and your final answer in message.`

const councilInstruction = `You lead the agent council. Besides your regular tools you can coordinate other agents:
- summon_agent(agent_name, reason): bring a roster agent into the council
- delegate_task(agent_name, task): hand a sub-task to a summoned agent
- request_insight(agent_name, question): ask a summoned agent for their perspective
- synthesize_council(key_points, recommendation): combine council input into a final synthesis

Summon an agent before delegating to them. Use the council for requests that benefit from multiple perspectives; handle simple requests yourself.`

// buildSystemPrompt assembles the persona prompt, optional memory
// context, the tool catalog, and the structured-reasoning contract.
func buildSystemPrompt(agent *domain.Agent, memoryContext string, catalog []domain.ToolSpec, isLead bool) string {
	var b strings.Builder
	b.WriteString(agent.SystemPrompt)

	if memoryContext != "" {
		b.WriteString("\n\n[MEMORY CONTEXT]\nRelevant memories from previous interactions:\n")
		b.WriteString(memoryContext)
	}

	b.WriteString("\n\n[AVAILABLE TOOLS]\n")
	for _, spec := range catalog {
		b.WriteString(formatToolSpec(spec))
		b.WriteString("\n")
	}

	if isLead {
		b.WriteString("\n")
		b.WriteString(councilInstruction)
	}

	b.WriteString("\n\n")
	b.WriteString(reasoningInstruction)
	return b.String()
}

func formatToolSpec(spec domain.ToolSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s: %s", spec.Name, spec.Description)

	if len(spec.Parameters) == 0 {
		return b.String()
	}
	required := make(map[string]bool, len(spec.Required))
	for _, name := range spec.Required {
		required[name] = true
	}
	names := make([]string, 0, len(spec.Parameters))
	for name := range spec.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		param := spec.Parameters[name]
		part := fmt.Sprintf("%s (%s)", name, param.Type)
		if required[name] {
			part += " REQUIRED"
		}
		parts = append(parts, part)
	}
	fmt.Fprintf(&b, "\n  Parameters: %s", strings.Join(parts, ", "))
	return b.String()
}

// formatMemoryContext renders retrieved memories for prompt injection.
func formatMemoryContext(records []domain.MemoryRecord) string {
	if len(records) == 0 {
		return ""
	}
	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, fmt.Sprintf("- [%s] %s", record.Category, record.Content))
	}
	return strings.Join(lines, "\n")
}
