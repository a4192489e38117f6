package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

func newTestExecutor(mems *fakeMemories, tasks *fakeTasks, search *fakeSearch, completions *fakeCompletions) *ToolExecutor {
	if mems == nil {
		mems = newFakeMemories()
	}
	if tasks == nil {
		tasks = newFakeTasks()
	}
	if search == nil {
		search = &fakeSearch{}
	}
	if completions == nil {
		completions = &fakeCompletions{}
	}
	return NewToolExecutor(mems, tasks, &fakeEmbedder{}, search, completions, "test-model")
}

func TestExecuteUnknownToolListsAvailable(t *testing.T) {
	ex := newTestExecutor(nil, nil, nil, nil)
	result := ex.Execute(context.Background(), "teleport", nil, "agent-1")
	if !strings.HasPrefix(result, "Unknown tool: teleport.") {
		t.Fatalf("result = %q", result)
	}
	for _, name := range []string{"calculator", "memory_store", "get_next_task", "web_search"} {
		if !strings.Contains(result, name) {
			t.Errorf("tool list missing %s: %q", name, result)
		}
	}
}

func TestExecuteCalculator(t *testing.T) {
	ex := newTestExecutor(nil, nil, nil, nil)
	if got := ex.Execute(context.Background(), "calculator", map[string]any{"expression": "2+2"}, "agent-1"); got != "4" {
		t.Fatalf("calculator 2+2 = %q", got)
	}
	if got := ex.Execute(context.Background(), "calculator", map[string]any{"expression": "alert(1)"}, "agent-1"); !strings.HasPrefix(got, "Error:") {
		t.Fatalf("calculator alert(1) = %q, want error text", got)
	}
}

func TestExecuteWebSearchUnconfigured(t *testing.T) {
	ex := newTestExecutor(nil, nil, &fakeSearch{configured: false}, nil)
	result := ex.Execute(context.Background(), "web_search", map[string]any{"query": "golang"}, "agent-1")
	if !strings.Contains(result, "requires search provider configuration") {
		t.Fatalf("result = %q", result)
	}
}

func TestExecuteWebSearchFormatsResults(t *testing.T) {
	search := &fakeSearch{configured: true, results: []domain.SearchResult{
		{Title: "Go", URL: "https://go.dev", Description: "The Go programming language"},
	}}
	ex := newTestExecutor(nil, nil, search, nil)
	result := ex.Execute(context.Background(), "web_search", map[string]any{"query": "golang"}, "agent-1")
	if !strings.Contains(result, "1. Go") || !strings.Contains(result, "https://go.dev") {
		t.Fatalf("result = %q", result)
	}
}

func TestExecuteFetchURLTruncatesLongPages(t *testing.T) {
	search := &fakeSearch{configured: true, page: &domain.ScrapedPage{
		Title:    "Long",
		Markdown: strings.Repeat("a", 5000),
	}}
	ex := newTestExecutor(nil, nil, search, nil)
	result := ex.Execute(context.Background(), "fetch_url", map[string]any{"url": "https://example.com"}, "agent-1")
	if !strings.Contains(result, "content truncated") {
		t.Fatalf("expected truncation notice, got %d bytes", len(result))
	}
}

func TestExecuteGetDatetime(t *testing.T) {
	ex := newTestExecutor(nil, nil, nil, nil)
	result := ex.Execute(context.Background(), "get_datetime", nil, "agent-1")
	year := time.Now().Format("2006")
	if !strings.Contains(result, "Date: "+year) || !strings.Contains(result, "Unix:") {
		t.Fatalf("result = %q", result)
	}
}

func TestExecuteCodeExecutorEchoesWithoutRunning(t *testing.T) {
	ex := newTestExecutor(nil, nil, nil, nil)
	result := ex.Execute(context.Background(), "code_executor", map[string]any{"code": "console.log(1)"}, "agent-1")
	if !strings.Contains(result, "console.log(1)") || !strings.Contains(result, "not yet implemented") {
		t.Fatalf("result = %q", result)
	}
}

func TestExecuteMemoryStoreAndRecall(t *testing.T) {
	mems := newFakeMemories()
	ex := newTestExecutor(mems, nil, nil, nil)

	stored := ex.Execute(context.Background(), "memory_store", map[string]any{
		"content":    "The user's favorite language is Go",
		"importance": 0.8,
	}, "agent-1")
	if !strings.Contains(stored, "Successfully stored") {
		t.Fatalf("store result = %q", stored)
	}
	records := mems.byAgent("agent-1")
	if len(records) != 1 || records[0].Importance != 0.8 || records[0].DecayFactor != 1.0 {
		t.Fatalf("stored record = %+v", records)
	}

	recalled := ex.Execute(context.Background(), "memory_recall", map[string]any{"query": "favorite"}, "agent-1")
	if !strings.Contains(recalled, "favorite language is Go") {
		t.Fatalf("recall result = %q", recalled)
	}

	other := ex.Execute(context.Background(), "memory_recall", map[string]any{"query": "nothing here"}, "agent-1")
	if other != "No memories found matching your query." {
		t.Fatalf("empty recall = %q", other)
	}
}

func TestExecuteMemoryForgetDecaysThenDeletes(t *testing.T) {
	mems := newFakeMemories()
	_ = mems.Insert(context.Background(), &domain.MemoryRecord{
		ID: "m1", AgentID: "agent-1", Content: "obsolete fact",
		MemoryType: domain.MemoryLongTerm, Category: domain.MemoryCategorySemantic,
		Importance: 0.6, DecayFactor: 1.0,
	})
	ex := newTestExecutor(mems, nil, nil, nil)

	first := ex.Execute(context.Background(), "memory_forget", map[string]any{"memory_id": "m1", "reason": "outdated"}, "agent-1")
	if !strings.Contains(first, "decay factor reduced to 0.50") {
		t.Fatalf("first forget = %q", first)
	}
	record, err := mems.Get(context.Background(), "m1")
	if err != nil || record.DecayFactor != 0.5 {
		t.Fatalf("after first forget: %+v, %v", record, err)
	}

	second := ex.Execute(context.Background(), "memory_forget", map[string]any{"memory_id": "m1"}, "agent-1")
	if !strings.Contains(second, "has been removed") {
		t.Fatalf("second forget = %q", second)
	}
	if _, err := mems.Get(context.Background(), "m1"); err == nil {
		t.Fatal("memory should be deleted after decay passed threshold")
	}
}

func TestExecuteMemoryForgetWrongAgent(t *testing.T) {
	mems := newFakeMemories()
	_ = mems.Insert(context.Background(), &domain.MemoryRecord{ID: "m1", AgentID: "other-agent", Content: "x", DecayFactor: 1.0})
	ex := newTestExecutor(mems, nil, nil, nil)
	result := ex.Execute(context.Background(), "memory_forget", map[string]any{"memory_id": "m1"}, "agent-1")
	if !strings.Contains(result, "not found") {
		t.Fatalf("result = %q", result)
	}
}

func TestExecuteMemoryConsolidate(t *testing.T) {
	mems := newFakeMemories()
	_ = mems.Insert(context.Background(), &domain.MemoryRecord{
		ID: "m1", AgentID: "agent-1", Content: "likes coffee",
		Category: domain.MemoryCategorySemantic, Importance: 0.6, DecayFactor: 1.0,
	})
	_ = mems.Insert(context.Background(), &domain.MemoryRecord{
		ID: "m2", AgentID: "agent-1", Content: "drinks coffee every morning",
		Category: domain.MemoryCategorySemantic, Importance: 0.9, DecayFactor: 1.0,
	})
	completions := &fakeCompletions{replies: []string{"Enjoys coffee daily"}}
	ex := newTestExecutor(mems, nil, nil, completions)

	result := ex.Execute(context.Background(), "memory_consolidate", map[string]any{
		"memory_ids": []any{"m1", "m2"},
	}, "agent-1")
	if !strings.Contains(result, "2 memories merged") {
		t.Fatalf("result = %q", result)
	}

	records := mems.byAgent("agent-1")
	if len(records) != 1 {
		t.Fatalf("expected only the consolidated record, got %d", len(records))
	}
	merged := records[0]
	if merged.MemoryType != domain.MemoryConsolidated {
		t.Fatalf("merged type = %q", merged.MemoryType)
	}
	// max(0.6, 0.9) + 0.1, capped at 1.0
	if merged.Importance != 1.0 {
		t.Fatalf("merged importance = %v, want 1.0", merged.Importance)
	}
	if !strings.Contains(merged.Content, "Enjoys coffee daily") {
		t.Fatalf("merged content = %q", merged.Content)
	}
}

func TestExecuteMemoryConsolidateRequiresTwo(t *testing.T) {
	ex := newTestExecutor(nil, nil, nil, nil)
	result := ex.Execute(context.Background(), "memory_consolidate", map[string]any{"memory_ids": []any{"m1"}}, "agent-1")
	if !strings.Contains(result, "At least 2") {
		t.Fatalf("result = %q", result)
	}
}

func TestExecuteMemoryReflectStoresInsight(t *testing.T) {
	mems := newFakeMemories()
	_ = mems.Insert(context.Background(), &domain.MemoryRecord{
		ID: "m1", AgentID: "agent-1", Content: "worked on the parser project",
		Category: domain.MemoryCategoryEpisodic, Importance: 0.5, DecayFactor: 1.0,
	})
	completions := &fakeCompletions{replies: []string{"The parser project recurs often"}}
	ex := newTestExecutor(mems, nil, nil, completions)

	result := ex.Execute(context.Background(), "memory_reflect", map[string]any{"topic": "parser"}, "agent-1")
	if !strings.Contains(result, "The parser project recurs often") {
		t.Fatalf("result = %q", result)
	}

	records := mems.byAgent("agent-1")
	if len(records) != 2 {
		t.Fatalf("reflection not stored, records = %d", len(records))
	}
	reflection := records[1]
	if reflection.MemoryType != domain.MemoryReflection || reflection.Importance != 0.8 {
		t.Fatalf("reflection record = %+v", reflection)
	}
}

func TestExecuteTaskLifecycleWithCascade(t *testing.T) {
	tasks := newFakeTasks()
	ex := newTestExecutor(nil, tasks, nil, nil)
	ctx := context.Background()

	decomposed := ex.Execute(ctx, "decompose_task", map[string]any{
		"goal": "Ship the release",
		"subtasks": []any{
			map[string]any{"title": "Write changelog", "priority": 2},
			map[string]any{"title": "Tag the build", "priority": 1},
		},
	}, "agent-1")
	if !strings.Contains(decomposed, "Subtasks created (2)") {
		t.Fatalf("decompose = %q", decomposed)
	}

	var parent *domain.Task
	all, _ := tasks.List(ctx, "agent-1", "", true, 20)
	if len(all) != 1 {
		t.Fatalf("parents = %d", len(all))
	}
	parent = &all[0]
	if parent.Status != domain.TaskStatusInProgress {
		t.Fatalf("parent status = %q", parent.Status)
	}

	children, _ := tasks.ListChildren(ctx, parent.ID)
	if len(children) != 2 {
		t.Fatalf("children = %d", len(children))
	}

	// highest priority first
	next := ex.Execute(ctx, "get_next_task", nil, "agent-1")
	if !strings.Contains(next, "Write changelog") {
		t.Fatalf("next = %q", next)
	}

	first := ex.Execute(ctx, "update_task", map[string]any{"task_id": children[0].ID, "status": "completed"}, "agent-1")
	if strings.Contains(first, "parent task marked as completed") {
		t.Fatalf("cascade fired early: %q", first)
	}
	second := ex.Execute(ctx, "update_task", map[string]any{"task_id": children[1].ID, "status": "completed"}, "agent-1")
	if !strings.Contains(second, "parent task marked as completed") {
		t.Fatalf("cascade missing: %q", second)
	}

	got, _ := tasks.Get(ctx, parent.ID)
	if got.Status != domain.TaskStatusCompleted {
		t.Fatalf("parent status after cascade = %q", got.Status)
	}
}

func TestExecuteGetTaskShowsSubtaskProgress(t *testing.T) {
	tasks := newFakeTasks()
	_ = tasks.Create(context.Background(), &domain.Task{ID: "p1", AgentID: "agent-1", Title: "Parent", Status: domain.TaskStatusInProgress})
	_ = tasks.Create(context.Background(), &domain.Task{ID: "c1", AgentID: "agent-1", Title: "Child A", Status: domain.TaskStatusCompleted, ParentTaskID: "p1"})
	_ = tasks.Create(context.Background(), &domain.Task{ID: "c2", AgentID: "agent-1", Title: "Child B", Status: domain.TaskStatusPending, ParentTaskID: "p1"})
	ex := newTestExecutor(nil, tasks, nil, nil)

	result := ex.Execute(context.Background(), "get_task", map[string]any{"task_id": "p1"}, "agent-1")
	if !strings.Contains(result, "Subtasks (1/2 completed)") {
		t.Fatalf("result = %q", result)
	}
}

func TestExecuteGetNextTaskEmpty(t *testing.T) {
	ex := newTestExecutor(nil, newFakeTasks(), nil, nil)
	result := ex.Execute(context.Background(), "get_next_task", nil, "agent-1")
	if !strings.Contains(result, "No pending tasks") {
		t.Fatalf("result = %q", result)
	}
}

func TestCatalogCoversEveryRegisteredTool(t *testing.T) {
	ex := newTestExecutor(nil, nil, nil, nil)
	specs := ex.Catalog()
	byName := make(map[string]domain.ToolSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}
	for name := range ex.handlers {
		spec, ok := byName[name]
		if !ok {
			t.Errorf("catalog missing %s", name)
			continue
		}
		for _, required := range spec.Required {
			if _, ok := spec.Parameters[required]; !ok {
				t.Errorf("%s: required parameter %s not declared", name, required)
			}
		}
	}
	if len(specs) != len(ex.handlers) {
		t.Errorf("catalog size %d != handlers %d", len(specs), len(ex.handlers))
	}
}
