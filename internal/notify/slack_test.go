package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/pam-core/internal/pam"
)

type fakeSlackAPI struct {
	channel string
	options []slack.MsgOption
	err     error
}

func (f *fakeSlackAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.channel = channelID
	f.options = options
	if f.err != nil {
		return "", "", f.err
	}
	return channelID, "1234.5678", nil
}

func TestSlackNotifier_PostsToChannel(t *testing.T) {
	api := &fakeSlackAPI{}
	n := NewSlackNotifierWithAPI(api, "#pam-approvals", zerolog.Nop())

	req := pam.AccessRequest{
		ID:            "r1",
		UserID:        "alice",
		Justification: "database migration rollout",
		Duration:      120,
		RiskAssessment: pam.RiskAssessment{
			Score: 40,
			Level: pam.RiskMedium,
		},
	}
	role := pam.PrivilegedRole{ID: "admin", Name: "Administrator", Approvers: []string{"lead"}}

	err := n.InitiateApproval(context.Background(), req, role)
	require.NoError(t, err)
	assert.Equal(t, "#pam-approvals", api.channel)
	assert.Len(t, api.options, 2) // text fallback + blocks
}

func TestSlackNotifier_PropagatesPostFailure(t *testing.T) {
	boom := errors.New("channel_not_found")
	api := &fakeSlackAPI{err: boom}
	n := NewSlackNotifierWithAPI(api, "#pam-approvals", zerolog.Nop())

	err := n.InitiateApproval(context.Background(), pam.AccessRequest{ID: "r1"}, pam.PrivilegedRole{})
	assert.ErrorIs(t, err, boom)
}

func TestApprovalBlocks(t *testing.T) {
	req := pam.AccessRequest{
		ID:              "r1",
		UserID:          "alice",
		Justification:   "urgent incident work",
		Duration:        60,
		EmergencyAccess: true,
		RiskAssessment:  pam.RiskAssessment{Score: 90, Level: pam.RiskCritical},
	}
	role := pam.PrivilegedRole{Name: "Emergency Administrator", Approvers: []string{"lead", "security"}}

	blocks := approvalBlocks(req, role)
	require.Len(t, blocks, 4)

	section, ok := blocks[1].(*slack.SectionBlock)
	require.True(t, ok)
	require.Len(t, section.Fields, 6)
	assert.Equal(t, "*Type:*\nEMERGENCY", section.Fields[4].Text)

	footer, ok := blocks[3].(*slack.ContextBlock)
	require.True(t, ok)
	require.Len(t, footer.ContextElements.Elements, 1)
	text, ok := footer.ContextElements.Elements[0].(*slack.TextBlockObject)
	require.True(t, ok)
	assert.Equal(t, "Approvers: lead, security", text.Text)
}
