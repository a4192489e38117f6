package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jjyaz/dohars-world/internal/core/domain"
	"github.com/jjyaz/dohars-world/internal/core/ports"
)

const councilReplyInstruction = "Keep your response concise, under 200 words, and in your own voice."

var councilToolNames = map[string]bool{
	"summon_agent":       true,
	"delegate_task":      true,
	"request_insight":    true,
	"synthesize_council": true,
}

// IsCouncilTool reports whether a tool name belongs to the
// multi-agent coordination set rather than the regular registry.
func IsCouncilTool(name string) bool {
	return councilToolNames[name]
}

// Council coordinates delegation between the lead persona and the
// rest of the roster within one session.
type Council struct {
	agents      ports.AgentStore
	store       ports.CouncilStore
	completions ports.CompletionClient
}

func NewCouncil(agents ports.AgentStore, store ports.CouncilStore, completions ports.CompletionClient) *Council {
	return &Council{agents: agents, store: store, completions: completions}
}

// StartSession opens a session lazily, on the lead agent's first
// council tool call, and announces it on the stream.
func (c *Council) StartSession(ctx context.Context, conversationID string, lead *domain.Agent, userRequest string, stream ports.EventStream) (*domain.CouncilSession, error) {
	session := &domain.CouncilSession{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		LeadAgentID:    lead.ID,
		ActiveAgentIDs: []string{lead.ID},
		Status:         domain.CouncilStatusActive,
		UserRequest:    userRequest,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create council session: %w", err)
	}
	_ = stream.Event(domain.EventCouncilStart, domain.CouncilStartEvent{
		SessionID:     session.ID,
		LeadAgentID:   lead.ID,
		LeadAgentName: lead.Name,
		UserRequest:   userRequest,
	})
	return session, nil
}

// HandleTool executes one council tool and returns the result text
// fed back into the lead agent's reasoning context.
func (c *Council) HandleTool(ctx context.Context, session *domain.CouncilSession, lead *domain.Agent, toolName string, input map[string]any, stream ports.EventStream) string {
	switch toolName {
	case "summon_agent":
		return c.summon(ctx, session, lead, input, stream)
	case "delegate_task":
		return c.relay(ctx, session, lead, input, "task", domain.CouncilMessageDelegate, stream)
	case "request_insight":
		return c.relay(ctx, session, lead, input, "question", domain.CouncilMessageInsight, stream)
	case "synthesize_council":
		return c.synthesize(ctx, session, lead, input, stream)
	default:
		return fmt.Sprintf("Unknown council tool: %s", toolName)
	}
}

func (c *Council) summon(ctx context.Context, session *domain.CouncilSession, lead *domain.Agent, input map[string]any, stream ports.EventStream) string {
	name := strings.TrimSpace(stringInput(input, "agent_name", ""))
	if name == "" {
		return "Error: agent_name is required to summon an agent"
	}
	agent, err := c.agents.GetByName(ctx, name)
	if err != nil {
		return fmt.Sprintf("Error: No agent named %q exists in the roster", name)
	}
	if agent.ID == lead.ID {
		return fmt.Sprintf("%s is already leading this council.", lead.Name)
	}

	reason := strings.TrimSpace(stringInput(input, "reason", ""))
	if err := c.store.AddActiveAgent(ctx, session.ID, agent.ID); err != nil {
		return fmt.Sprintf("Error summoning %s: %v", agent.Name, err)
	}
	session.ActiveAgentIDs = unionID(session.ActiveAgentIDs, agent.ID)

	_ = c.store.AppendMessage(ctx, domain.AgentMessage{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		FromAgentID: lead.ID,
		ToAgentID:   agent.ID,
		MessageType: domain.CouncilMessageSummon,
		Content:     reason,
		CreatedAt:   time.Now().UTC(),
	})
	_ = stream.Event(domain.EventAgentSummoned, domain.AgentSummonedEvent{
		AgentID:       agent.ID,
		AgentName:     agent.Name,
		AvatarURL:     agent.AvatarURL,
		ChatAvatarURL: agent.ChatAvatarURL,
		Reason:        reason,
	})
	return fmt.Sprintf("%s has joined the council. You can now delegate tasks or request insights from them.", agent.Name)
}

// relay sends a task or question to a roster member and returns the
// member's reply. The member responds through a nested completion in
// its own persona.
func (c *Council) relay(ctx context.Context, session *domain.CouncilSession, lead *domain.Agent, input map[string]any, contentKey, messageType string, stream ports.EventStream) string {
	name := strings.TrimSpace(stringInput(input, "agent_name", ""))
	content := strings.TrimSpace(stringInput(input, contentKey, ""))
	if name == "" || content == "" {
		return fmt.Sprintf("Error: agent_name and %s are required", contentKey)
	}
	agent, err := c.agents.GetByName(ctx, name)
	if err != nil {
		return fmt.Sprintf("Error: No agent named %q exists in the roster", name)
	}
	if err := c.store.AddActiveAgent(ctx, session.ID, agent.ID); err == nil {
		session.ActiveAgentIDs = unionID(session.ActiveAgentIDs, agent.ID)
	}

	_ = c.store.AppendMessage(ctx, domain.AgentMessage{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		FromAgentID: lead.ID,
		ToAgentID:   agent.ID,
		MessageType: messageType,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	})
	_ = stream.Event(domain.EventAgentThinking, domain.AgentThinkingEvent{
		AgentID:   agent.ID,
		AgentName: agent.Name,
	})

	var prompt string
	if messageType == domain.CouncilMessageDelegate {
		prompt = fmt.Sprintf("The council lead %s has delegated this task to you:\n\n%s\n\nOriginal user request: %s", lead.Name, content, session.UserRequest)
	} else {
		prompt = fmt.Sprintf("The council lead %s asks for your insight:\n\n%s\n\nOriginal user request: %s", lead.Name, content, session.UserRequest)
	}

	reply, err := c.completions.Complete(ctx, agent.Model, []domain.ChatMessage{
		{Role: "system", Content: agent.SystemPrompt + "\n\n" + councilReplyInstruction},
		{Role: "user", Content: prompt},
	})
	reply = strings.TrimSpace(reply)
	if err != nil || reply == "" {
		reply = fmt.Sprintf("%s failed to respond.", agent.Name)
	}

	_ = c.store.AppendMessage(ctx, domain.AgentMessage{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		FromAgentID: agent.ID,
		ToAgentID:   lead.ID,
		MessageType: domain.CouncilMessageResponse,
		Content:     reply,
		CreatedAt:   time.Now().UTC(),
	})
	_ = stream.Event(domain.EventAgentMessage, domain.AgentMessageEvent{
		FromAgentID:   agent.ID,
		FromAgentName: agent.Name,
		Content:       reply,
		MessageType:   domain.CouncilMessageResponse,
	})
	return fmt.Sprintf("%s responded:\n%s", agent.Name, reply)
}

func (c *Council) synthesize(ctx context.Context, session *domain.CouncilSession, lead *domain.Agent, input map[string]any, stream ports.EventStream) string {
	keyPoints := stringSliceInput(input, "key_points")
	recommendation := strings.TrimSpace(stringInput(input, "recommendation", ""))
	if len(keyPoints) == 0 || recommendation == "" {
		return "Error: key_points and recommendation are required to synthesize the council"
	}

	var b strings.Builder
	b.WriteString("Council Synthesis:\n\nKey Points:\n")
	for _, point := range keyPoints {
		b.WriteString("- ")
		b.WriteString(point)
		b.WriteString("\n")
	}
	b.WriteString("\nRecommendation:\n")
	b.WriteString(recommendation)
	synthesis := b.String()

	_ = c.store.AppendMessage(ctx, domain.AgentMessage{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		FromAgentID: lead.ID,
		MessageType: domain.CouncilMessageSynthesis,
		Content:     synthesis,
		CreatedAt:   time.Now().UTC(),
	})
	if err := c.store.ConcludeSession(ctx, session.ID, synthesis); err != nil {
		return fmt.Sprintf("Error concluding council session: %v", err)
	}
	session.Status = domain.CouncilStatusConcluded
	session.Synthesis = synthesis

	_ = stream.Event(domain.EventCouncilSynthesis, domain.CouncilSynthesisEvent{Synthesis: synthesis})
	return synthesis
}

func unionID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
