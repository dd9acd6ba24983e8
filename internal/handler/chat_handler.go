package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Joyuchen/flow-state-board/internal/ai"
	"github.com/Joyuchen/flow-state-board/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatHandler relays a conversation to the AI gateway, executes any board
// tools the model asks for, and streams the final answer back as SSE.
type ChatHandler struct {
	client     *ai.Client
	executor   *ToolExecutor
	configured bool
}

func NewChatHandler(client *ai.Client, executor *ToolExecutor, configured bool) *ChatHandler {
	return &ChatHandler{client: client, executor: executor, configured: configured}
}

type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
}

type ChatTurnRequest struct {
	Messages    []ChatMessage `json:"messages" binding:"required,min=1"`
	TaskContext string        `json:"taskContext"`
}

// Chat godoc
// @Summary  AI assistant chat turn
// @Description Streams the assistant's answer as Server-Sent Events. May
// @Description create, update, or delete tasks as a side effect.
// @Tags     Chat
// @Accept   json
// @Produce  text/event-stream
// @Security BearerAuth
// @Param    input body ChatTurnRequest true "Conversation so far plus task context"
// @Success  200
// @Router   /chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	if !h.configured {
		logger.Error("chat request refused: AI_API_KEY is not configured", nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI_API_KEY is not configured"})
		return
	}

	var req ChatTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// The whole turn collapses to a generic failure carrying the
		// caught message, matching the stream contract's error shape.
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	aiMessages := make([]ai.Message, 0, len(req.Messages)+1)
	aiMessages = append(aiMessages, ai.Message{Role: "system", Content: ai.SystemPrompt(req.TaskContext)})
	for _, m := range req.Messages {
		aiMessages = append(aiMessages, ai.Message{Role: m.Role, Content: m.Content})
	}

	// Step 1: non-streaming call with tools attached. No mutation happens
	// until this returns.
	decision, err := h.client.ChatCompletion(c.Request.Context(), aiMessages, ai.TaskTools())
	if err != nil {
		h.writeGatewayError(c, err)
		return
	}

	toolCalls := decision.ToolCalls()
	if len(toolCalls) == 0 {
		// The answer is already complete; replay it as a one-shot
		// stream so the client has a single code path.
		h.writeSingleFrame(c, decision.Content())
		return
	}

	// Step 2: execute the requested tools in the model's order,
	// sequentially. A failed tool becomes an error result for the model;
	// it does not stop the rest.
	executed := make([]string, 0, len(toolCalls))
	toolResults := make([]ai.Message, 0, len(toolCalls))
	for _, tc := range toolCalls {
		result := h.executor.Execute(c.Request.Context(), userID, tc)
		toolResults = append(toolResults, ai.Message{
			Role:       "tool",
			ToolCallID: tc.ID,
			Content:    result,
		})
		executed = append(executed, tc.Function.Name)
	}

	// Step 3: stream the follow-up answer with the tool results appended.
	finalMessages := append(aiMessages, decision.Choices[0].Message)
	finalMessages = append(finalMessages, toolResults...)

	upstream, err := h.client.StreamChatCompletion(c.Request.Context(), finalMessages)
	if err != nil {
		logger.Error("ai final response failed", err, zap.Strings("executed", executed))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI gateway error"})
		return
	}
	defer upstream.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.WriteHeader(http.StatusOK)

	// Synthetic first frame: tells the client which tools ran before any
	// model bytes arrive.
	marker, _ := json.Marshal(gin.H{"tool_actions": executed})
	fmt.Fprintf(c.Writer, "data: %s\n\n", marker)
	c.Writer.Flush()

	// Everything else is relayed unmodified.
	buf := make([]byte, 4096)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			return
		}
	}
}

func (h *ChatHandler) writeGatewayError(c *gin.Context, err error) {
	if statusErr, ok := err.(*ai.StatusError); ok {
		switch statusErr.Code {
		case http.StatusTooManyRequests:
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		case http.StatusPaymentRequired:
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment required"})
			return
		}
		logger.Error("ai gateway error", nil,
			zap.Int("status", statusErr.Code), zap.String("body", statusErr.Body))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI gateway error"})
		return
	}

	logger.Error("ai gateway request failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "AI gateway error"})
}

// writeSingleFrame emits an already-complete answer as one SSE content
// frame followed by the terminator.
func (h *ChatHandler) writeSingleFrame(c *gin.Context, content string) {
	frame, _ := json.Marshal(gin.H{
		"choices": []gin.H{{"delta": gin.H{"content": content}, "finish_reason": "stop"}},
	})

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.WriteHeader(http.StatusOK)
	fmt.Fprintf(c.Writer, "data: %s\n\ndata: [DONE]\n\n", frame)
	c.Writer.Flush()
}
