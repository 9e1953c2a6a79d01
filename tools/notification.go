package tools

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
)

// NotificationToolkit exposes desktop notifications as a tool. It doubles as
// the reference for the terminal-tool flags: a notification that asks the
// user to respond ends the run instead of looping back to the model.
type NotificationToolkit struct {
	// DefaultTitle is used when the model supplies none.
	DefaultTitle string
}

// Name implements Toolkit.
func (t *NotificationToolkit) Name() string { return "notifications" }

type notifyParams struct {
	Message          string `json:"message" jsonschema:"description=Notification body text"`
	Title            string `json:"title,omitempty" jsonschema:"description=Notification title"`
	RequiresResponse bool   `json:"requires_response,omitempty" jsonschema:"description=Whether the user must respond before the agent continues"`
}

// Functions implements Toolkit.
func (t *NotificationToolkit) Functions() []*Function {
	return []*Function{
		{
			Name:              "send_user_notification",
			Description:       "Send a desktop notification to the user. Set requires_response when the agent should wait for the user instead of continuing.",
			Parameters:        MustSchemaFor(&notifyParams{}),
			SanitizeArguments: true,
			ShowResult:        true,
			Entrypoint:        t.notify,
		},
	}
}

func (t *NotificationToolkit) notify(ctx context.Context, call *CallContext, args map[string]any) (any, error) {
	message, _ := args["message"].(string)
	if message == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	title, _ := args["title"].(string)
	if title == "" {
		title = t.DefaultTitle
	}
	if title == "" {
		title = "Agent Notification"
	}

	requiresResponse, _ := args["requires_response"].(bool)
	if requiresResponse {
		message += " (Response required)"
	}

	if err := beeep.Notify(title, message, ""); err != nil {
		return nil, fmt.Errorf("failed to send desktop notification: %w", err)
	}

	if requiresResponse {
		// Hand control back to the user rather than looping the model.
		return &Redirect{
			AgentMessage: fmt.Sprintf("Notified the user: %s", message),
			Stop:         true,
		}, nil
	}
	return map[string]any{"title": title, "message": message}, nil
}
