package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/p-blackswan/pam-core/internal/pam"
)

// SlackAPI is the minimal Slack API surface the notifier needs.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts approval-needed messages to the approvals channel.
type SlackNotifier struct {
	api     SlackAPI
	channel string
	logger  zerolog.Logger
}

// NewSlackNotifier creates a Slack-backed approval notifier.
func NewSlackNotifier(botToken, channel string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		api:     slack.New(botToken),
		channel: channel,
		logger:  logger.With().Str("component", "slack_notify").Logger(),
	}
}

// NewSlackNotifierWithAPI creates a notifier with an injected API (tests).
func NewSlackNotifierWithAPI(api SlackAPI, channel string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{api: api, channel: channel, logger: logger}
}

// InitiateApproval posts the pending request to the approvals channel.
func (n *SlackNotifier) InitiateApproval(ctx context.Context, req pam.AccessRequest, role pam.PrivilegedRole) error {
	blocks := approvalBlocks(req, role)

	_, ts, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(fmt.Sprintf("Privileged access request %s needs approval", req.ID), false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		n.logger.Warn().Err(err).Str("request_id", req.ID).Msg("failed to post approval message")
		return err
	}

	n.logger.Info().
		Str("request_id", req.ID).
		Str("channel", n.channel).
		Str("message_ts", ts).
		Msg("approval message posted")
	return nil
}

// approvalBlocks renders the request as Block Kit sections.
func approvalBlocks(req pam.AccessRequest, role pam.PrivilegedRole) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, "Privileged access request", false, false))

	kind := "standard"
	if req.EmergencyAccess {
		kind = "EMERGENCY"
	}

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*User:*\n"+req.UserID, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Role:*\n"+role.Name, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Duration:*\n%d min", req.Duration), false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Risk:*\n%d (%s)", req.RiskAssessment.Score, req.RiskAssessment.Level), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Type:*\n"+kind, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Request ID:*\n"+req.ID, false, false),
	}
	details := slack.NewSectionBlock(nil, fields, nil)

	justification := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, "*Justification:*\n"+req.Justification, false, false),
		nil, nil)

	footer := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType,
			"Approvers: "+strings.Join(role.Approvers, ", "), false, false))

	return []slack.Block{header, details, justification, footer}
}
