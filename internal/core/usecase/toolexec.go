package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jjyaz/dohars-world/internal/core/domain"
	"github.com/jjyaz/dohars-world/internal/core/ports"
)

const (
	memoryPurgeDecay     = 0.2
	memoryDecayStep      = 0.5
	consolidationBonus   = 0.1
	reflectionImportance = 0.8
	searchSimilarityMin  = 0.5
	scrapeContentLimit   = 3000
)

type toolHandler func(ctx context.Context, input map[string]any, agentID string) string

// ToolExecutor maps tool names to handlers. Handlers validate their
// own input and report failures as descriptive strings so the loop
// can feed them back into reasoning context.
type ToolExecutor struct {
	memories    ports.MemoryStore
	tasks       ports.TaskStore
	embedder    ports.Embedder
	search      ports.SearchProvider
	completions ports.CompletionClient
	model       string

	handlers map[string]toolHandler
	catalog  []domain.ToolSpec
}

func NewToolExecutor(
	memories ports.MemoryStore,
	tasks ports.TaskStore,
	embedder ports.Embedder,
	search ports.SearchProvider,
	completions ports.CompletionClient,
	synthesisModel string,
) *ToolExecutor {
	ex := &ToolExecutor{
		memories:    memories,
		tasks:       tasks,
		embedder:    embedder,
		search:      search,
		completions: completions,
		model:       synthesisModel,
	}
	ex.handlers = map[string]toolHandler{
		"calculator":         ex.runCalculator,
		"web_search":         ex.runWebSearch,
		"fetch_url":          ex.runFetchURL,
		"get_datetime":       ex.runGetDatetime,
		"code_executor":      ex.runCodeExecutor,
		"memory_store":       ex.runMemoryStore,
		"memory_recall":      ex.runMemoryRecall,
		"memory_search":      ex.runMemorySearch,
		"memory_reflect":     ex.runMemoryReflect,
		"memory_forget":      ex.runMemoryForget,
		"memory_consolidate": ex.runMemoryConsolidate,
		"create_task":        ex.runCreateTask,
		"decompose_task":     ex.runDecomposeTask,
		"list_tasks":         ex.runListTasks,
		"get_task":           ex.runGetTask,
		"update_task":        ex.runUpdateTask,
		"get_next_task":      ex.runGetNextTask,
	}
	ex.catalog = buildToolCatalog()
	return ex
}

// Execute never fails at the transport level: unknown tools and
// handler failures come back as result text.
func (ex *ToolExecutor) Execute(ctx context.Context, toolName string, input map[string]any, agentID string) string {
	handler, ok := ex.handlers[toolName]
	if !ok {
		names := make([]string, 0, len(ex.handlers))
		for name := range ex.handlers {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Sprintf("Unknown tool: %s. Available tools: %s", toolName, strings.Join(names, ", "))
	}
	return handler(ctx, input, agentID)
}

func (ex *ToolExecutor) Catalog() []domain.ToolSpec {
	return ex.catalog
}

func (ex *ToolExecutor) runCalculator(_ context.Context, input map[string]any, _ string) string {
	expression := strings.TrimSpace(stringInput(input, "expression", ""))
	if expression == "" {
		return "Error: No expression provided"
	}
	result, err := evaluateExpression(expression)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

func (ex *ToolExecutor) runWebSearch(ctx context.Context, input map[string]any, _ string) string {
	query := strings.TrimSpace(stringInput(input, "query", ""))
	if query == "" {
		return "Error: No search query provided"
	}
	if ex.search == nil || !ex.search.Configured() {
		return fmt.Sprintf("[Web Search for %q]\nNote: Web search requires search provider configuration.", query)
	}
	results, err := ex.search.Search(ctx, query, 5)
	if err != nil {
		return fmt.Sprintf("Error performing web search: %v", err)
	}
	if len(results) == 0 {
		return "No search results found."
	}
	lines := make([]string, 0, len(results))
	for i, item := range results {
		title := item.Title
		if title == "" {
			title = "Untitled"
		}
		desc := item.Description
		if desc == "" {
			desc = "No description"
		}
		lines = append(lines, fmt.Sprintf("%d. %s\n   URL: %s\n   %s", i+1, title, item.URL, desc))
	}
	return "[Web Search Results]\n" + strings.Join(lines, "\n\n")
}

func (ex *ToolExecutor) runFetchURL(ctx context.Context, input map[string]any, _ string) string {
	url := strings.TrimSpace(stringInput(input, "url", ""))
	if url == "" {
		return "Error: No URL provided"
	}
	if ex.search == nil || !ex.search.Configured() {
		return fmt.Sprintf("[Fetch URL: %s]\nNote: URL fetching requires search provider configuration.", url)
	}
	page, err := ex.search.Scrape(ctx, url)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err)
	}
	if page == nil || page.Markdown == "" {
		return "Failed to extract content from URL."
	}
	title := page.Title
	if title == "" {
		title = "Untitled"
	}
	content := page.Markdown
	truncated := ""
	if len(content) > scrapeContentLimit {
		content = content[:scrapeContentLimit]
		truncated = "\n\n... (content truncated)"
	}
	return fmt.Sprintf("[Fetched Content]\nTitle: %s\n\n%s%s", title, content, truncated)
}

func (ex *ToolExecutor) runGetDatetime(_ context.Context, _ map[string]any, _ string) string {
	now := time.Now()
	zone, _ := now.Zone()
	return fmt.Sprintf(
		"[Current Date/Time]\nDate: %s\nTime: %s\nDay: %s\nTimezone: %s\nISO: %s\nUnix: %d",
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		now.Weekday().String(),
		zone,
		now.Format(time.RFC3339),
		now.Unix(),
	)
}

func (ex *ToolExecutor) runCodeExecutor(_ context.Context, input map[string]any, _ string) string {
	// Deliberate safety boundary: code is echoed, never run.
	code := stringInput(input, "code", "")
	language := stringInput(input, "language", "javascript")
	return fmt.Sprintf(
		"[Code Execution - %s]\nCode:\n```%s\n%s\n```\n\nNote: Secure code execution is not yet implemented. I can reason about what this code would do, but cannot execute it directly.",
		language, language, code,
	)
}

func (ex *ToolExecutor) runMemoryStore(ctx context.Context, input map[string]any, agentID string) string {
	content := strings.TrimSpace(stringInput(input, "content", ""))
	if content == "" {
		return "Error: No content provided to store"
	}
	record := &domain.MemoryRecord{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Content:     content,
		MemoryType:  stringInput(input, "type", domain.MemoryShortTerm),
		Category:    stringInput(input, "category", domain.MemoryCategoryEpisodic),
		Importance:  floatInput(input, "importance", 0.5),
		DecayFactor: 1.0,
		CreatedAt:   time.Now().UTC(),
	}

	// Embedding is best-effort; a failed embed never blocks the store.
	if ex.embedder != nil {
		if vector, err := ex.embedder.EmbedText(ctx, content); err == nil && len(vector) > 0 {
			record.Embedding = vector
		}
	}

	if err := ex.memories.Insert(ctx, record); err != nil {
		return fmt.Sprintf("Error storing memory: %v", err)
	}
	return fmt.Sprintf("Successfully stored %s memory (%s): %q", record.Category, record.MemoryType, truncateText(content, 50))
}

func (ex *ToolExecutor) runMemoryRecall(ctx context.Context, input map[string]any, agentID string) string {
	query := strings.TrimSpace(stringInput(input, "query", ""))
	limit := intInput(input, "limit", 5)

	var (
		records []domain.MemoryRecord
		err     error
	)
	if query != "" {
		records, err = ex.memories.SearchByContent(ctx, agentID, query, "", limit)
	} else {
		records, err = ex.memories.TopByImportance(ctx, agentID, limit)
	}
	if err != nil {
		return fmt.Sprintf("Error recalling memories: %v", err)
	}
	if len(records) == 0 {
		return "No memories found matching your query."
	}
	lines := make([]string, 0, len(records))
	for i, record := range records {
		lines = append(lines, fmt.Sprintf("%d. [%s] (importance: %.2g): %s", i+1, record.MemoryType, record.Importance, record.Content))
	}
	return "[Retrieved Memories]\n" + strings.Join(lines, "\n")
}

func (ex *ToolExecutor) runMemorySearch(ctx context.Context, input map[string]any, agentID string) string {
	query := strings.TrimSpace(stringInput(input, "query", ""))
	if query == "" {
		return "Error: Search query is required"
	}
	limit := intInput(input, "limit", 5)
	category := strings.TrimSpace(stringInput(input, "category", ""))

	// Primary strategy: vector similarity over the query embedding.
	// Any failure along that path degrades to substring matching.
	if ex.embedder != nil {
		if vector, err := ex.embedder.EmbedText(ctx, query); err == nil && len(vector) > 0 {
			matches, err := ex.memories.SearchBySimilarity(ctx, agentID, vector, searchSimilarityMin, category, limit)
			if err == nil && len(matches) > 0 {
				ids := make([]string, 0, len(matches))
				lines := make([]string, 0, len(matches))
				for i, match := range matches {
					ids = append(ids, match.Record.ID)
					lines = append(lines, fmt.Sprintf("%d. [%s] (similarity: %.1f%%)\n   %s",
						i+1, match.Record.Category, match.Similarity*100, match.Record.Content))
				}
				_ = ex.memories.IncrementAccess(ctx, ids)
				return "[Semantic Memory Search Results]\n" + strings.Join(lines, "\n\n")
			}
		}
	}

	records, err := ex.memories.SearchByContent(ctx, agentID, query, category, limit)
	if err != nil {
		return fmt.Sprintf("Error searching memories: %v", err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("No memories found matching %q", query)
	}
	lines := make([]string, 0, len(records))
	for i, record := range records {
		lines = append(lines, fmt.Sprintf("%d. [%s] (importance: %.2g)\n   %s", i+1, record.Category, record.Importance, record.Content))
	}
	return "[Keyword Memory Search Results]\n" + strings.Join(lines, "\n\n")
}

func (ex *ToolExecutor) runMemoryReflect(ctx context.Context, input map[string]any, agentID string) string {
	topic := strings.TrimSpace(stringInput(input, "topic", ""))
	if topic == "" {
		return "Error: Topic is required for reflection"
	}
	depth := intInput(input, "depth", 10)

	records, err := ex.memories.SearchByContent(ctx, agentID, topic, "", depth)
	if err != nil || len(records) == 0 {
		return fmt.Sprintf("No memories found about %q to reflect on.", topic)
	}

	contextLines := make([]string, 0, len(records))
	for i, record := range records {
		contextLines = append(contextLines, fmt.Sprintf("Memory %d [%s]: %s", i+1, record.Category, record.Content))
	}

	if ex.completions != nil {
		reflection, err := ex.completions.Complete(ctx, ex.model, []domain.ChatMessage{
			{
				Role:    "system",
				Content: "You are a memory reflection system. Analyze the provided memories and synthesize key insights, patterns, and connections. Be concise but insightful.",
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("Reflect on these memories about %q:\n\n%s\n\nProvide 2-3 key insights or patterns you observe.", topic, strings.Join(contextLines, "\n")),
			},
		})
		if err == nil && strings.TrimSpace(reflection) != "" {
			stored := &domain.MemoryRecord{
				ID:          uuid.NewString(),
				AgentID:     agentID,
				Content:     fmt.Sprintf("[Reflection on %q] %s", topic, reflection),
				MemoryType:  domain.MemoryReflection,
				Category:    domain.MemoryCategorySemantic,
				Importance:  reflectionImportance,
				DecayFactor: 1.0,
				CreatedAt:   time.Now().UTC(),
			}
			_ = ex.memories.Insert(ctx, stored)
			return fmt.Sprintf("[Memory Reflection on %q]\n\nBased on %d memories:\n\n%s\n\n(This reflection has been stored as a semantic memory)",
				topic, len(records), reflection)
		}
	}

	// Fallback: list the raw memories without synthesis.
	lines := make([]string, 0, len(records))
	for i, record := range records {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", i+1, record.Category, record.Content))
	}
	return fmt.Sprintf("[Memories about %q for reflection]\n\n%s", topic, strings.Join(lines, "\n\n"))
}

func (ex *ToolExecutor) runMemoryForget(ctx context.Context, input map[string]any, agentID string) string {
	memoryID := strings.TrimSpace(stringInput(input, "memory_id", ""))
	if memoryID == "" {
		return "Error: memory_id is required"
	}
	reason := strings.TrimSpace(stringInput(input, "reason", ""))
	if reason == "" {
		reason = "Not specified"
	}

	record, err := ex.memories.GetForAgent(ctx, agentID, memoryID)
	if err != nil {
		return fmt.Sprintf("Error: Memory not found (%s)", memoryID)
	}

	newDecay := record.DecayFactor - memoryDecayStep
	if newDecay < 0 {
		newDecay = 0
	}

	if newDecay < memoryPurgeDecay {
		if err := ex.memories.Delete(ctx, memoryID); err != nil {
			return fmt.Sprintf("Error updating memory: %v", err)
		}
		return fmt.Sprintf("[Memory Forgotten]\nMemory %q has been removed.\nReason: %s", truncateText(record.Content, 50), reason)
	}

	if err := ex.memories.UpdateDecay(ctx, memoryID, newDecay, newDecay < memoryPurgeDecay); err != nil {
		return fmt.Sprintf("Error updating memory: %v", err)
	}
	return fmt.Sprintf("[Memory Decayed]\nMemory %q decay factor reduced to %.2f.\nReason: %s\n\nAnother forget call will remove it completely.",
		truncateText(record.Content, 50), newDecay, reason)
}

func (ex *ToolExecutor) runMemoryConsolidate(ctx context.Context, input map[string]any, agentID string) string {
	ids := stringSliceInput(input, "memory_ids")
	if len(ids) < 2 {
		return "Error: At least 2 memory_ids are required for consolidation"
	}

	records, err := ex.memories.GetManyForAgent(ctx, agentID, ids)
	if err != nil || len(records) < 2 {
		return "Error: Could not find memories to consolidate"
	}

	consolidated := strings.TrimSpace(stringInput(input, "summary", ""))
	if consolidated == "" && ex.completions != nil {
		texts := make([]string, 0, len(records))
		for _, record := range records {
			texts = append(texts, record.Content)
		}
		synthesis, err := ex.completions.Complete(ctx, ex.model, []domain.ChatMessage{
			{
				Role:    "system",
				Content: "You consolidate related memories into a single coherent summary. Be concise but preserve important details.",
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("Consolidate these %d related memories into one:\n\n%s", len(records), strings.Join(texts, "\n---\n")),
			},
		})
		if err == nil {
			consolidated = strings.TrimSpace(synthesis)
		}
	}
	if consolidated == "" {
		parts := make([]string, 0, len(records))
		for _, record := range records {
			parts = append(parts, record.Content)
		}
		consolidated = "[Consolidated] " + strings.Join(parts, " | ")
	}

	importance := 0.0
	for _, record := range records {
		if record.Importance > importance {
			importance = record.Importance
		}
	}
	importance += consolidationBonus
	if importance > 1.0 {
		importance = 1.0
	}
	category := records[0].Category
	if category == "" {
		category = domain.MemoryCategorySemantic
	}

	merged := &domain.MemoryRecord{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Content:     consolidated,
		MemoryType:  domain.MemoryConsolidated,
		Category:    category,
		Importance:  importance,
		DecayFactor: 1.0,
		CreatedAt:   time.Now().UTC(),
	}
	if err := ex.memories.Insert(ctx, merged); err != nil {
		return fmt.Sprintf("Error creating consolidated memory: %v", err)
	}
	existing := make([]string, 0, len(records))
	for _, record := range records {
		existing = append(existing, record.ID)
	}
	if err := ex.memories.Delete(ctx, existing...); err != nil {
		return fmt.Sprintf("Consolidated memory created but error removing sources: %v", err)
	}

	return fmt.Sprintf("[Memories Consolidated]\n%d memories merged into:\n\n%q\n\nNew memory ID: %s\nImportance: %.2g",
		len(records), truncateText(consolidated, 200), merged.ID, importance)
}

func (ex *ToolExecutor) runCreateTask(ctx context.Context, input map[string]any, agentID string) string {
	title := strings.TrimSpace(stringInput(input, "title", ""))
	if title == "" {
		return "Error: Task title is required"
	}
	task := &domain.Task{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		Title:        title,
		Description:  strings.TrimSpace(stringInput(input, "description", "")),
		Status:       domain.TaskStatusPending,
		Priority:     intInput(input, "priority", 0),
		ParentTaskID: strings.TrimSpace(stringInput(input, "parent_task_id", "")),
		CreatedAt:    time.Now().UTC(),
	}
	if err := ex.tasks.Create(ctx, task); err != nil {
		return fmt.Sprintf("Error creating task: %v", err)
	}
	result := fmt.Sprintf("[Task Created]\nID: %s\nTitle: %s\nPriority: %d\nStatus: pending", task.ID, task.Title, task.Priority)
	if task.ParentTaskID != "" {
		result += "\nParent Task: " + task.ParentTaskID
	}
	return result
}

func (ex *ToolExecutor) runDecomposeTask(ctx context.Context, input map[string]any, agentID string) string {
	goal := strings.TrimSpace(stringInput(input, "goal", ""))
	subtasks := mapSliceInput(input, "subtasks")
	if goal == "" || len(subtasks) == 0 {
		return "Error: Goal title and subtasks array are required"
	}

	parent := &domain.Task{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Title:       goal,
		Description: strings.TrimSpace(stringInput(input, "description", "")),
		Status:      domain.TaskStatusInProgress,
		Priority:    1,
		CreatedAt:   time.Now().UTC(),
	}
	if err := ex.tasks.Create(ctx, parent); err != nil {
		return fmt.Sprintf("Error creating parent task: %v", err)
	}

	created := make([]*domain.Task, 0, len(subtasks))
	for i, st := range subtasks {
		child := &domain.Task{
			ID:           uuid.NewString(),
			AgentID:      agentID,
			Title:        strings.TrimSpace(stringInput(st, "title", "")),
			Description:  strings.TrimSpace(stringInput(st, "description", "")),
			Status:       domain.TaskStatusPending,
			Priority:     intInput(st, "priority", i),
			ParentTaskID: parent.ID,
			CreatedAt:    time.Now().UTC(),
		}
		if child.Title == "" {
			continue
		}
		if err := ex.tasks.Create(ctx, child); err != nil {
			return fmt.Sprintf("Parent task created but error creating subtasks: %v", err)
		}
		created = append(created, child)
	}

	lines := make([]string, 0, len(created))
	for i, child := range created {
		lines = append(lines, fmt.Sprintf("  %d. %s (ID: %s)", i+1, child.Title, child.ID))
	}
	return fmt.Sprintf("[Task Decomposed]\nGoal: %s\nID: %s\n\nSubtasks created (%d):\n%s",
		goal, parent.ID, len(created), strings.Join(lines, "\n"))
}

func (ex *ToolExecutor) runListTasks(ctx context.Context, input map[string]any, agentID string) string {
	status := domain.TaskStatus(strings.TrimSpace(stringInput(input, "status", "")))
	parentOnly := boolInput(input, "parent_only", false)

	tasks, err := ex.tasks.List(ctx, agentID, status, parentOnly, 20)
	if err != nil {
		return fmt.Sprintf("Error listing tasks: %v", err)
	}
	if len(tasks) == 0 {
		return "No tasks found."
	}
	lines := make([]string, 0, len(tasks))
	for i, task := range tasks {
		line := fmt.Sprintf("%d. [%s] %s\n   ID: %s\n   Status: %s", i+1, taskStatusMark(task.Status), task.Title, task.ID, task.Status)
		if task.ParentTaskID != "" {
			line += "\n   (subtask)"
		}
		lines = append(lines, line)
	}
	return "[Current Tasks]\n" + strings.Join(lines, "\n\n")
}

func (ex *ToolExecutor) runGetTask(ctx context.Context, input map[string]any, _ string) string {
	taskID := strings.TrimSpace(stringInput(input, "task_id", ""))
	if taskID == "" {
		return "Error: task_id is required"
	}
	task, err := ex.tasks.Get(ctx, taskID)
	if err != nil {
		return fmt.Sprintf("Error: Task not found (%s)", taskID)
	}

	description := task.Description
	if description == "" {
		description = "None"
	}
	result := fmt.Sprintf("[Task Details]\n[%s] %s\nID: %s\nStatus: %s\nPriority: %d\nDescription: %s",
		taskStatusMark(task.Status), task.Title, task.ID, task.Status, task.Priority, description)

	children, err := ex.tasks.ListChildren(ctx, taskID)
	if err == nil && len(children) > 0 {
		completed := 0
		lines := make([]string, 0, len(children))
		for i, child := range children {
			if child.Status == domain.TaskStatusCompleted {
				completed++
			}
			lines = append(lines, fmt.Sprintf("  %d. [%s] %s", i+1, taskStatusMark(child.Status), child.Title))
		}
		result += fmt.Sprintf("\n\nSubtasks (%d/%d completed):\n%s", completed, len(children), strings.Join(lines, "\n"))
	}
	return result
}

func (ex *ToolExecutor) runUpdateTask(ctx context.Context, input map[string]any, _ string) string {
	taskID := strings.TrimSpace(stringInput(input, "task_id", ""))
	if taskID == "" {
		return "Error: task_id is required"
	}
	status := domain.TaskStatus(strings.TrimSpace(stringInput(input, "status", "")))
	result := stringInput(input, "result", "")

	updated, err := ex.tasks.UpdateStatus(ctx, taskID, status, result)
	if err != nil {
		return fmt.Sprintf("Error updating task: %v", err)
	}

	text := fmt.Sprintf("[Task Updated]\nID: %s\nNew Status: %s", taskID, updated.Status)
	if updated.CompletedAt != nil {
		text += "\nCompleted: " + updated.CompletedAt.Format(time.RFC3339)
	}

	// Cascade: when the last sibling completes, the parent completes
	// too. One level up only.
	if updated.ParentTaskID != "" && status == domain.TaskStatusCompleted {
		siblings, err := ex.tasks.ListChildren(ctx, updated.ParentTaskID)
		if err == nil && len(siblings) > 0 {
			allDone := true
			for _, sibling := range siblings {
				if sibling.Status != domain.TaskStatusCompleted {
					allDone = false
					break
				}
			}
			if allDone {
				if _, err := ex.tasks.UpdateStatus(ctx, updated.ParentTaskID, domain.TaskStatusCompleted, ""); err == nil {
					text += "\n\nAll subtasks complete - parent task marked as completed!"
				}
			}
		}
	}
	return text
}

func (ex *ToolExecutor) runGetNextTask(ctx context.Context, _ map[string]any, agentID string) string {
	task, err := ex.tasks.NextPending(ctx, agentID)
	if err != nil {
		return "No pending tasks found. All tasks are complete or none exist."
	}
	description := task.Description
	if description == "" {
		description = "None"
	}
	return fmt.Sprintf("[Next Task to Work On]\nTitle: %s\nID: %s\nPriority: %d\nDescription: %s\n\nTask is now marked as in_progress.",
		task.Title, task.ID, task.Priority, description)
}

func taskStatusMark(status domain.TaskStatus) string {
	switch status {
	case domain.TaskStatusCompleted:
		return "done"
	case domain.TaskStatusInProgress:
		return "wip"
	default:
		return "todo"
	}
}

func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
