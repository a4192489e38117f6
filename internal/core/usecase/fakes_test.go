package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

type scriptedCompletion struct {
	result *domain.CompletionResult
	err    error
}

type fakeCompletions struct {
	reasoning []scriptedCompletion
	replies   []string
	replyErr  error

	reasoningCalls int
	plainCalls     int
	lastMessages   []domain.ChatMessage
}

func (f *fakeCompletions) CompleteReasoning(_ context.Context, _ string, messages []domain.ChatMessage) (*domain.CompletionResult, error) {
	f.reasoningCalls++
	f.lastMessages = messages
	if len(f.reasoning) == 0 {
		return &domain.CompletionResult{Content: "no script"}, nil
	}
	next := f.reasoning[0]
	f.reasoning = f.reasoning[1:]
	return next.result, next.err
}

func (f *fakeCompletions) Complete(_ context.Context, _ string, _ []domain.ChatMessage) (string, error) {
	f.plainCalls++
	if f.replyErr != nil {
		return "", f.replyErr
	}
	if len(f.replies) == 0 {
		return "synthesized reply", nil
	}
	out := f.replies[0]
	f.replies = f.replies[1:]
	return out, nil
}

func stepPayload(thought string, action domain.Action) *domain.CompletionResult {
	input := ""
	if len(action.ToolInput) > 0 {
		parts := make([]string, 0, len(action.ToolInput))
		for key, value := range action.ToolInput {
			parts = append(parts, fmt.Sprintf("%q:%q", key, value))
		}
		sort.Strings(parts)
		input = fmt.Sprintf(",\"tool_input\":{%s}", strings.Join(parts, ","))
	}
	args := fmt.Sprintf(
		`{"thought":%q,"plan":["step"],"criticism":"none","action":{"type":%q,"tool_name":%q%s,"message":%q}}`,
		thought, action.Type, action.ToolName, input, action.Message,
	)
	return &domain.CompletionResult{HasFunctionCall: true, FunctionName: "agent_reasoning", FunctionArguments: args}
}

type fakeAgents struct {
	byID   map[string]*domain.Agent
	byName map[string]*domain.Agent
}

func newFakeAgents(agents ...*domain.Agent) *fakeAgents {
	f := &fakeAgents{byID: map[string]*domain.Agent{}, byName: map[string]*domain.Agent{}}
	for _, agent := range agents {
		f.byID[agent.ID] = agent
		f.byName[agent.Name] = agent
	}
	return f
}

func (f *fakeAgents) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	agent, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	return agent, nil
}

func (f *fakeAgents) GetByName(_ context.Context, name string) (*domain.Agent, error) {
	agent, ok := f.byName[name]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	return agent, nil
}

func (f *fakeAgents) EnsureAgent(_ context.Context, agent *domain.Agent) error {
	if _, ok := f.byName[agent.Name]; ok {
		return nil
	}
	f.byID[agent.ID] = agent
	f.byName[agent.Name] = agent
	return nil
}

type fakeConversations struct {
	conversations map[string]*domain.Conversation
	messages      []domain.Message
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{conversations: map[string]*domain.Conversation{}}
}

func (f *fakeConversations) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	f.conversations[conv.ID] = conv
	return nil
}

func (f *fakeConversations) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	conv, ok := f.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return conv, nil
}

func (f *fakeConversations) AppendMessage(_ context.Context, msg domain.Message) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeConversations) ListRecentMessages(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	out := make([]domain.Message, 0, limit)
	for _, msg := range f.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeReasonings struct {
	steps []*domain.ReasoningStep
}

func (f *fakeReasonings) CreateStep(_ context.Context, step *domain.ReasoningStep) error {
	f.steps = append(f.steps, step)
	return nil
}

func (f *fakeReasonings) UpdateActionResult(_ context.Context, conversationID, agentID string, stepNumber int, result string) error {
	for _, step := range f.steps {
		if step.ConversationID == conversationID && step.AgentID == agentID && step.StepNumber == stepNumber {
			step.ActionResult = result
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeReasonings) GetStep(_ context.Context, conversationID, agentID string, stepNumber int) (*domain.ReasoningStep, error) {
	for _, step := range f.steps {
		if step.ConversationID == conversationID && step.AgentID == agentID && step.StepNumber == stepNumber {
			return step, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeMemories struct {
	mu      sync.Mutex
	records map[string]*domain.MemoryRecord
	order   []string
	matches []domain.MemoryMatch
}

func newFakeMemories() *fakeMemories {
	return &fakeMemories{records: map[string]*domain.MemoryRecord{}}
}

func (f *fakeMemories) Insert(_ context.Context, record *domain.MemoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *record
	f.records[record.ID] = &copied
	f.order = append(f.order, record.ID)
	return nil
}

func (f *fakeMemories) Get(_ context.Context, id string) (*domain.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeMemories) GetForAgent(ctx context.Context, agentID, id string) (*domain.MemoryRecord, error) {
	record, err := f.Get(ctx, id)
	if err != nil || record.AgentID != agentID {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func (f *fakeMemories) GetManyForAgent(ctx context.Context, agentID string, ids []string) ([]domain.MemoryRecord, error) {
	out := make([]domain.MemoryRecord, 0, len(ids))
	for _, id := range ids {
		record, err := f.GetForAgent(ctx, agentID, id)
		if err != nil {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (f *fakeMemories) TopByImportance(_ context.Context, agentID string, limit int) ([]domain.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.MemoryRecord, 0, limit)
	for _, id := range f.order {
		record := f.records[id]
		if record != nil && record.AgentID == agentID {
			out = append(out, *record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMemories) SearchByContent(_ context.Context, agentID, query, category string, limit int) ([]domain.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(query)
	out := make([]domain.MemoryRecord, 0, limit)
	for _, id := range f.order {
		record := f.records[id]
		if record == nil || record.AgentID != agentID {
			continue
		}
		if category != "" && record.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(record.Content), needle) {
			continue
		}
		out = append(out, *record)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMemories) SearchBySimilarity(_ context.Context, _ string, _ []float32, _ float64, _ string, _ int) ([]domain.MemoryMatch, error) {
	return f.matches, nil
}

func (f *fakeMemories) UpdateDecay(_ context.Context, id string, decay float64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	record.DecayFactor = decay
	return nil
}

func (f *fakeMemories) Delete(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.records, id)
	}
	return nil
}

func (f *fakeMemories) IncrementAccess(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if record, ok := f.records[id]; ok {
			record.AccessCount++
		}
	}
	return nil
}

func (f *fakeMemories) SetEmbedding(_ context.Context, id string, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	record.Embedding = vector
	return nil
}

func (f *fakeMemories) byAgent(agentID string) []*domain.MemoryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.MemoryRecord, 0, len(f.order))
	for _, id := range f.order {
		if record := f.records[id]; record != nil && record.AgentID == agentID {
			out = append(out, record)
		}
	}
	return out
}

type fakeTasks struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
	order []string
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: map[string]*domain.Task{}}
}

func (f *fakeTasks) Create(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *task
	f.tasks[task.ID] = &copied
	f.order = append(f.order, task.ID)
	return nil
}

func (f *fakeTasks) Get(_ context.Context, id string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTasks) List(_ context.Context, agentID string, status domain.TaskStatus, parentOnly bool, limit int) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, 0, limit)
	for _, id := range f.order {
		task := f.tasks[id]
		if task == nil || task.AgentID != agentID {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		if parentOnly && task.ParentTaskID != "" {
			continue
		}
		out = append(out, *task)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeTasks) ListChildren(_ context.Context, parentTaskID string) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, 0, 4)
	for _, id := range f.order {
		task := f.tasks[id]
		if task != nil && task.ParentTaskID == parentTaskID {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (f *fakeTasks) UpdateStatus(_ context.Context, id string, status domain.TaskStatus, result string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	task.Status = status
	if result != "" {
		task.Result = result
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTasks) NextPending(_ context.Context, agentID string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *domain.Task
	for _, id := range f.order {
		task := f.tasks[id]
		if task == nil || task.AgentID != agentID || task.Status != domain.TaskStatusPending {
			continue
		}
		if best == nil || task.Priority > best.Priority {
			best = task
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	best.Status = domain.TaskStatusInProgress
	copied := *best
	return &copied, nil
}

type fakeCouncilStore struct {
	sessions map[string]*domain.CouncilSession
	messages []domain.AgentMessage
}

func newFakeCouncilStore() *fakeCouncilStore {
	return &fakeCouncilStore{sessions: map[string]*domain.CouncilSession{}}
}

func (f *fakeCouncilStore) CreateSession(_ context.Context, session *domain.CouncilSession) error {
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeCouncilStore) AddActiveAgent(_ context.Context, sessionID, agentID string) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	session.ActiveAgentIDs = unionID(session.ActiveAgentIDs, agentID)
	return nil
}

func (f *fakeCouncilStore) ConcludeSession(_ context.Context, sessionID, synthesis string) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	session.Status = domain.CouncilStatusConcluded
	session.Synthesis = synthesis
	return nil
}

func (f *fakeCouncilStore) AppendMessage(_ context.Context, msg domain.AgentMessage) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeCouncilStore) GetSession(_ context.Context, sessionID string) (*domain.CouncilSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

type fakeQueue struct {
	published []string
}

func (f *fakeQueue) PublishMemoryStored(_ context.Context, memoryID string) error {
	f.published = append(f.published, memoryID)
	return nil
}

func (f *fakeQueue) SubscribeMemoryStored(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

type fakeSearch struct {
	configured bool
	results    []domain.SearchResult
	page       *domain.ScrapedPage
	err        error
}

func (f *fakeSearch) Configured() bool { return f.configured }

func (f *fakeSearch) Search(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	return f.results, f.err
}

func (f *fakeSearch) Scrape(_ context.Context, _ string) (*domain.ScrapedPage, error) {
	return f.page, f.err
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return f.vector, f.err
}

type recordedEvent struct {
	name    string
	payload any
}

type fakeStream struct {
	events []recordedEvent
	deltas []string
	done   int
}

func (f *fakeStream) Event(name string, payload any) error {
	f.events = append(f.events, recordedEvent{name: name, payload: payload})
	return nil
}

func (f *fakeStream) Delta(chunk string) error {
	f.deltas = append(f.deltas, chunk)
	return nil
}

func (f *fakeStream) Done() error {
	f.done++
	return nil
}

func (f *fakeStream) eventNames() []string {
	out := make([]string, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.name)
	}
	return out
}
