package usecase

import "github.com/jjyaz/dohars-world/internal/core/domain"

func buildToolCatalog() []domain.ToolSpec {
	return []domain.ToolSpec{
		{
			Name:        "calculator",
			Description: "Evaluate a mathematical expression. Supports arithmetic, parentheses, and functions like sqrt, pow, sin, cos.",
			Parameters: map[string]domain.ToolParam{
				"expression": {Type: "string", Description: "The mathematical expression to evaluate, e.g. '2 + 2 * 3' or 'sqrt(16)'"},
			},
			Required: []string{"expression"},
		},
		{
			Name:        "web_search",
			Description: "Search the web for current information on a topic.",
			Parameters: map[string]domain.ToolParam{
				"query": {Type: "string", Description: "The search query"},
			},
			Required: []string{"query"},
		},
		{
			Name:        "fetch_url",
			Description: "Fetch and read the content of a specific web page.",
			Parameters: map[string]domain.ToolParam{
				"url": {Type: "string", Description: "The URL to fetch"},
			},
			Required: []string{"url"},
		},
		{
			Name:        "get_datetime",
			Description: "Get the current date and time.",
			Parameters:  map[string]domain.ToolParam{},
		},
		{
			Name:        "code_executor",
			Description: "Describe what a piece of code would do. Code is not actually executed.",
			Parameters: map[string]domain.ToolParam{
				"code":     {Type: "string", Description: "The code to analyze"},
				"language": {Type: "string", Description: "The programming language (default: javascript)"},
			},
			Required: []string{"code"},
		},
		{
			Name:        "memory_store",
			Description: "Store a piece of information in long-term memory for later recall.",
			Parameters: map[string]domain.ToolParam{
				"content":    {Type: "string", Description: "The information to remember"},
				"type":       {Type: "string", Description: "Memory type: short_term, long_term, reflection"},
				"category":   {Type: "string", Description: "Memory category: episodic, semantic, procedural"},
				"importance": {Type: "number", Description: "Importance from 0.0 to 1.0 (default 0.5)"},
			},
			Required: []string{"content"},
		},
		{
			Name:        "memory_recall",
			Description: "Recall stored memories, optionally filtered by a keyword query.",
			Parameters: map[string]domain.ToolParam{
				"query": {Type: "string", Description: "Optional keyword to filter memories"},
				"limit": {Type: "number", Description: "Maximum memories to return (default 5)"},
			},
		},
		{
			Name:        "memory_search",
			Description: "Semantic search over stored memories by meaning rather than keywords.",
			Parameters: map[string]domain.ToolParam{
				"query":    {Type: "string", Description: "What to search for"},
				"category": {Type: "string", Description: "Optional category filter: episodic, semantic, procedural"},
				"limit":    {Type: "number", Description: "Maximum results (default 5)"},
			},
			Required: []string{"query"},
		},
		{
			Name:        "memory_reflect",
			Description: "Reflect on memories about a topic and synthesize insights. The reflection is stored as a new semantic memory.",
			Parameters: map[string]domain.ToolParam{
				"topic": {Type: "string", Description: "The topic to reflect on"},
				"depth": {Type: "number", Description: "How many memories to consider (default 10)"},
			},
			Required: []string{"topic"},
		},
		{
			Name:        "memory_forget",
			Description: "Decay a memory. A memory whose decay factor drops below the threshold is removed.",
			Parameters: map[string]domain.ToolParam{
				"memory_id": {Type: "string", Description: "The ID of the memory to forget"},
				"reason":    {Type: "string", Description: "Why this memory should be forgotten"},
			},
			Required: []string{"memory_id"},
		},
		{
			Name:        "memory_consolidate",
			Description: "Merge related memories into a single consolidated memory. The originals are removed.",
			Parameters: map[string]domain.ToolParam{
				"memory_ids": {Type: "array", Description: "IDs of memories to merge (at least 2)"},
				"summary":    {Type: "string", Description: "Optional pre-written consolidated summary"},
			},
			Required: []string{"memory_ids"},
		},
		{
			Name:        "create_task",
			Description: "Create a task to track work.",
			Parameters: map[string]domain.ToolParam{
				"title":          {Type: "string", Description: "Task title"},
				"description":    {Type: "string", Description: "Optional details"},
				"priority":       {Type: "number", Description: "Priority, higher runs first (default 0)"},
				"parent_task_id": {Type: "string", Description: "Optional parent task ID to make this a subtask"},
			},
			Required: []string{"title"},
		},
		{
			Name:        "decompose_task",
			Description: "Break a goal into a parent task with subtasks.",
			Parameters: map[string]domain.ToolParam{
				"goal":     {Type: "string", Description: "The overall goal"},
				"subtasks": {Type: "array", Description: "Array of {title, description, priority} subtask objects"},
			},
			Required: []string{"goal", "subtasks"},
		},
		{
			Name:        "list_tasks",
			Description: "List current tasks, optionally filtered by status.",
			Parameters: map[string]domain.ToolParam{
				"status":      {Type: "string", Description: "Optional filter: pending, in_progress, completed"},
				"parent_only": {Type: "boolean", Description: "Only list top-level tasks"},
			},
		},
		{
			Name:        "get_task",
			Description: "Get details of a task including subtask progress.",
			Parameters: map[string]domain.ToolParam{
				"task_id": {Type: "string", Description: "The task ID"},
			},
			Required: []string{"task_id"},
		},
		{
			Name:        "update_task",
			Description: "Update a task's status. Completing the last subtask also completes the parent.",
			Parameters: map[string]domain.ToolParam{
				"task_id": {Type: "string", Description: "The task ID"},
				"status":  {Type: "string", Description: "New status: pending, in_progress, completed"},
				"result":  {Type: "string", Description: "Optional result or outcome text"},
			},
			Required: []string{"task_id", "status"},
		},
		{
			Name:        "get_next_task",
			Description: "Get the highest-priority pending task and mark it in_progress.",
			Parameters:  map[string]domain.ToolParam{},
		},
	}
}
