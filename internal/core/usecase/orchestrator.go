package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jjyaz/dohars-world/internal/core/domain"
	"github.com/jjyaz/dohars-world/internal/core/ports"
)

const (
	memoryDeriveMinChars    = 100
	derivedMemoryImportance = 0.5
	apologyAnswer           = "I apologize, but I couldn't complete the reasoning process. Please try rephrasing your request."
)

// Orchestrator drives the bounded structured-reasoning loop for one
// chat request and streams its progress.
type Orchestrator struct {
	completions   ports.CompletionClient
	agents        ports.AgentStore
	conversations ports.ConversationStore
	reasonings    ports.ReasoningStore
	memories      ports.MemoryStore
	tools         ports.ToolExecutor
	council       *Council
	queue         ports.MaintenanceQueue
	limits        domain.AgentLimits
	defaultAgent  string
	leadAgent     string
	logger        *slog.Logger
}

func NewOrchestrator(
	completions ports.CompletionClient,
	agents ports.AgentStore,
	conversations ports.ConversationStore,
	reasonings ports.ReasoningStore,
	memories ports.MemoryStore,
	tools ports.ToolExecutor,
	council *Council,
	queue ports.MaintenanceQueue,
	limits domain.AgentLimits,
	defaultAgentName string,
	leadAgentName string,
	logger *slog.Logger,
) *Orchestrator {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 5
	}
	if limits.RunTimeout <= 0 {
		limits.RunTimeout = 120 * time.Second
	}
	if limits.PlannerTimeout <= 0 {
		limits.PlannerTimeout = 30 * time.Second
	}
	if limits.ToolTimeout <= 0 {
		limits.ToolTimeout = 30 * time.Second
	}
	if limits.HistoryMessages <= 0 {
		limits.HistoryMessages = 20
	}
	if limits.MemoryTopK <= 0 {
		limits.MemoryTopK = 5
	}
	if limits.StreamChunkChars <= 0 {
		limits.StreamChunkChars = 3
	}
	if limits.StreamChunkDelay <= 0 {
		limits.StreamChunkDelay = 10 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		completions:   completions,
		agents:        agents,
		conversations: conversations,
		reasonings:    reasonings,
		memories:      memories,
		tools:         tools,
		council:       council,
		queue:         queue,
		limits:        limits,
		defaultAgent:  defaultAgentName,
		leadAgent:     leadAgentName,
		logger:        logger,
	}
}

func (o *Orchestrator) Begin(ctx context.Context, req domain.AgentRunRequest) (*ports.RunSetup, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "agent run", fmt.Errorf("message is required"))
	}

	var (
		agent *domain.Agent
		err   error
	)
	if id := strings.TrimSpace(req.AgentID); id != "" {
		agent, err = o.agents.GetByID(ctx, id)
		if err != nil {
			return nil, domain.WrapError(domain.ErrAgentNotFound, "agent run", fmt.Errorf("agent %s: %w", id, err))
		}
	} else {
		agent, err = o.agents.GetByName(ctx, o.defaultAgent)
		if err != nil {
			return nil, domain.WrapError(domain.ErrAgentNotFound, "agent run", fmt.Errorf("default agent %s: %w", o.defaultAgent, err))
		}
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID != "" {
		if _, err := o.conversations.GetConversation(ctx, conversationID); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("load conversation: %w", err)
			}
			conversationID = ""
		}
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
		conv := &domain.Conversation{
			ID:        conversationID,
			Title:     truncateText(message, 50),
			CreatedAt: time.Now().UTC(),
		}
		if err := o.conversations.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	}

	if err := o.conversations.AppendMessage(ctx, domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		AgentID:        agent.ID,
		Role:           "user",
		Content:        message,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	return &ports.RunSetup{
		Agent:          agent,
		ConversationID: conversationID,
		UseMemory:      req.UseMemory,
		UserMessage:    message,
	}, nil
}

func (o *Orchestrator) Run(ctx context.Context, setup *ports.RunSetup, stream ports.EventStream) (*domain.AgentRunResult, error) {
	defer func() { _ = stream.Done() }()

	runCtx, cancel := context.WithTimeout(ctx, o.limits.RunTimeout)
	defer cancel()

	agent := setup.Agent
	isLead := strings.EqualFold(agent.Name, o.leadAgent)

	history, err := o.conversations.ListRecentMessages(runCtx, setup.ConversationID, o.limits.HistoryMessages)
	if err != nil {
		_ = stream.Event(domain.EventError, domain.ErrorEvent{Message: "Failed to load conversation history."})
		return nil, fmt.Errorf("load history: %w", err)
	}

	memoryContext := ""
	if setup.UseMemory {
		records, err := o.memories.TopByImportance(runCtx, agent.ID, o.limits.MemoryTopK)
		if err != nil {
			o.logger.Warn("memory retrieval failed", "agent", agent.Name, "error", err)
		} else {
			memoryContext = formatMemoryContext(records)
		}
	}

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    "system",
		Content: buildSystemPrompt(agent, memoryContext, o.tools.Catalog(), isLead),
	})
	for _, msg := range history {
		role := msg.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		messages = append(messages, domain.ChatMessage{Role: role, Content: msg.Content})
	}

	var session *domain.CouncilSession
	toolsInvoked := make([]string, 0, o.limits.MaxIterations)
	toolSet := make(map[string]struct{})
	finalAnswer := ""
	fallbackReason := ""
	iterations := 0

	for step := 1; step <= o.limits.MaxIterations; step++ {
		if runCtx.Err() != nil {
			fallbackReason = "timeout"
			break
		}
		iterations = step
		_ = stream.Event(domain.EventIteration, domain.IterationEvent{Step: step, Max: o.limits.MaxIterations})

		plannerCtx, plannerCancel := context.WithTimeout(runCtx, o.limits.PlannerTimeout)
		completion, err := o.completions.CompleteReasoning(plannerCtx, agent.Model, messages)
		plannerCancel()
		if err != nil {
			fallbackReason = o.reportCompletionError(stream, err)
			break
		}

		if !completion.HasFunctionCall {
			// Model ignored the function-call discipline; its free text
			// is the answer when it produced any.
			content := strings.TrimSpace(completion.Content)
			if content == "" {
				_ = stream.Event(domain.EventError, domain.ErrorEvent{Message: "Model returned an empty response."})
				fallbackReason = "empty_completion"
				break
			}
			_ = stream.Event(domain.EventReasoning, domain.ReasoningEvent{
				Step:    step,
				Thought: "Direct response without structured reasoning",
				Action:  domain.Action{Type: domain.ActionRespond, Message: content},
			})
			finalAnswer = content
			break
		}

		parsed, err := parseReasoningStep(completion.FunctionArguments)
		if err != nil {
			o.logger.Warn("malformed reasoning payload", "conversation", setup.ConversationID, "step", step, "error", err)
			_ = stream.Event(domain.EventError, domain.ErrorEvent{Message: "Received malformed reasoning from the model."})
			fallbackReason = "malformed_reasoning"
			break
		}

		record := &domain.ReasoningStep{
			ConversationID: setup.ConversationID,
			AgentID:        agent.ID,
			StepNumber:     step,
			Thought:        parsed.Thought,
			Plan:           parsed.Plan,
			Criticism:      parsed.Criticism,
			Action:         parsed.Action,
			CreatedAt:      time.Now().UTC(),
		}
		if err := o.reasonings.CreateStep(runCtx, record); err != nil {
			o.logger.Warn("persist reasoning step failed", "conversation", setup.ConversationID, "step", step, "error", err)
		}
		_ = stream.Event(domain.EventReasoning, domain.ReasoningEvent{
			Step:      step,
			Thought:   parsed.Thought,
			Plan:      parsed.Plan,
			Criticism: parsed.Criticism,
			Action:    parsed.Action,
		})

		switch parsed.Action.Type {
		case domain.ActionRespond:
			finalAnswer = strings.TrimSpace(parsed.Action.Message)
			if finalAnswer == "" {
				finalAnswer = apologyAnswer
				fallbackReason = "empty_final_answer"
			}

		case domain.ActionTool:
			toolName := strings.TrimSpace(parsed.Action.ToolName)
			isCouncil := isLead && IsCouncilTool(toolName)
			_ = stream.Event(domain.EventToolCall, domain.ToolCallEvent{
				Tool:      toolName,
				Input:     parsed.Action.ToolInput,
				IsCouncil: isCouncil,
			})

			var result string
			if isCouncil {
				if session == nil {
					session, err = o.council.StartSession(runCtx, setup.ConversationID, agent, setup.UserMessage, stream)
					if err != nil {
						o.logger.Warn("council session start failed", "conversation", setup.ConversationID, "error", err)
						result = "Error: could not start a council session."
					}
				}
				if session != nil {
					result = o.council.HandleTool(runCtx, session, agent, toolName, parsed.Action.ToolInput, stream)
				}
			} else {
				toolCtx, toolCancel := context.WithTimeout(runCtx, o.limits.ToolTimeout)
				result = o.tools.Execute(toolCtx, toolName, parsed.Action.ToolInput, agent.ID)
				toolCancel()
			}

			if err := o.reasonings.UpdateActionResult(runCtx, setup.ConversationID, agent.ID, step, result); err != nil {
				o.logger.Warn("persist action result failed", "conversation", setup.ConversationID, "step", step, "error", err)
			}
			_ = stream.Event(domain.EventToolResult, domain.ToolResultEvent{
				Tool:      toolName,
				Result:    result,
				IsCouncil: isCouncil,
			})

			if toolName != "" {
				if _, seen := toolSet[toolName]; !seen {
					toolSet[toolName] = struct{}{}
					toolsInvoked = append(toolsInvoked, toolName)
				}
			}
			messages = append(messages,
				domain.ChatMessage{Role: "assistant", Content: completion.FunctionArguments},
				domain.ChatMessage{
					Role:    "user",
					Content: fmt.Sprintf("Tool %q returned:\n%s\n\nContinue your reasoning with this result.", toolName, result),
				},
			)

		default:
			// continue, and anything unrecognized, keeps reasoning.
			messages = append(messages,
				domain.ChatMessage{Role: "assistant", Content: completion.FunctionArguments},
				domain.ChatMessage{Role: "user", Content: "Continue your reasoning."},
			)
		}

		if finalAnswer != "" || fallbackReason != "" {
			break
		}
	}

	terminal := fallbackReason == "rate_limited" || fallbackReason == "billing_required" ||
		fallbackReason == "upstream_error" || fallbackReason == "malformed_reasoning" ||
		fallbackReason == "empty_completion"
	if finalAnswer == "" && !terminal {
		if fallbackReason == "" {
			fallbackReason = "max_iterations"
		}
		finalAnswer = apologyAnswer
	}

	if finalAnswer != "" {
		o.finalize(runCtx, setup, agent, finalAnswer, stream)
	}

	return &domain.AgentRunResult{
		ConversationID: setup.ConversationID,
		Answer:         finalAnswer,
		Iterations:     iterations,
		ToolsInvoked:   toolsInvoked,
		FallbackReason: fallbackReason,
	}, nil
}

// reportCompletionError maps a gateway failure to a terminal error
// event and a fallback reason.
func (o *Orchestrator) reportCompletionError(stream ports.EventStream, err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		_ = stream.Event(domain.EventError, domain.ErrorEvent{Message: "Rate limit exceeded. Please try again in a moment."})
		return "rate_limited"
	case errors.Is(err, domain.ErrBillingRequired):
		_ = stream.Event(domain.EventError, domain.ErrorEvent{Message: "The AI gateway requires additional credits. Please check your workspace billing."})
		return "billing_required"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		_ = stream.Event(domain.EventError, domain.ErrorEvent{Message: "The model took too long to respond."})
		return "timeout"
	default:
		_ = stream.Event(domain.EventError, domain.ErrorEvent{Message: "The AI gateway returned an error. Please try again."})
		return "upstream_error"
	}
}

// finalize streams the answer in fixed-size chunks, persists it, and
// derives a short-term memory from substantial answers.
func (o *Orchestrator) finalize(ctx context.Context, setup *ports.RunSetup, agent *domain.Agent, answer string, stream ports.EventStream) {
	// Chunk by runes, not bytes: a byte split in the middle of a
	// multi-byte character would mangle it in the JSON deltas.
	runes := []rune(answer)
	size := o.limits.StreamChunkChars
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if err := stream.Delta(string(runes[start:end])); err != nil {
			break
		}
		time.Sleep(o.limits.StreamChunkDelay)
	}

	if err := o.conversations.AppendMessage(ctx, domain.Message{
		ID:             uuid.NewString(),
		ConversationID: setup.ConversationID,
		AgentID:        agent.ID,
		Role:           "assistant",
		Content:        answer,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		o.logger.Warn("persist assistant message failed", "conversation", setup.ConversationID, "error", err)
	}

	if len(answer) <= memoryDeriveMinChars {
		return
	}
	memory := &domain.MemoryRecord{
		ID:          uuid.NewString(),
		AgentID:     agent.ID,
		Content:     fmt.Sprintf("User asked: %q. I answered: %s", truncateText(setup.UserMessage, 200), truncateText(answer, 500)),
		MemoryType:  domain.MemoryShortTerm,
		Category:    domain.MemoryCategoryEpisodic,
		Importance:  derivedMemoryImportance,
		DecayFactor: 1.0,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.memories.Insert(ctx, memory); err != nil {
		o.logger.Warn("derive memory failed", "conversation", setup.ConversationID, "error", err)
		return
	}
	if o.queue != nil {
		if err := o.queue.PublishMemoryStored(ctx, memory.ID); err != nil {
			o.logger.Warn("publish memory backfill failed", "memory", memory.ID, "error", err)
		}
	}
}

func parseReasoningStep(raw string) (*domain.ReasoningStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty reasoning payload")
	}
	var payload struct {
		Thought   string        `json:"thought"`
		Plan      []string      `json:"plan"`
		Criticism string        `json:"criticism"`
		Action    domain.Action `json:"action"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal reasoning payload: %w", err)
	}
	if strings.TrimSpace(payload.Thought) == "" {
		return nil, fmt.Errorf("reasoning payload missing thought")
	}
	payload.Action.Type = domain.ActionType(strings.ToLower(strings.TrimSpace(string(payload.Action.Type))))
	switch payload.Action.Type {
	case domain.ActionTool, domain.ActionRespond, domain.ActionContinue:
	case "":
		payload.Action.Type = domain.ActionContinue
	default:
		return nil, fmt.Errorf("unknown action type %q", payload.Action.Type)
	}
	if payload.Action.Type == domain.ActionTool && strings.TrimSpace(payload.Action.ToolName) == "" {
		return nil, fmt.Errorf("tool action missing tool_name")
	}
	return &domain.ReasoningStep{
		Thought:   payload.Thought,
		Plan:      payload.Plan,
		Criticism: payload.Criticism,
		Action:    payload.Action,
	}, nil
}
