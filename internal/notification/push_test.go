package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliowatch/foliowatch-go/internal/conf"
	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

func TestPushSender_ServiceURLResolution(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		recipient string
		want      string
		wantErr   bool
	}{
		{
			name:      "recipient service URL wins",
			template:  "ntfy://ntfy.example/{token}",
			recipient: "gotify://gotify.example/device-token",
			want:      "gotify://gotify.example/device-token",
		},
		{
			name:      "token substituted into template",
			template:  "ntfy://ntfy.example/{token}",
			recipient: "owner-topic",
			want:      "ntfy://ntfy.example/owner-topic",
		},
		{
			name:      "template without token used verbatim",
			template:  "ntfy://ntfy.example/alerts",
			recipient: "ignored",
			want:      "ntfy://ntfy.example/alerts",
		},
		{
			name:      "no template and no URL recipient",
			template:  "",
			recipient: "owner-topic",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPushSender(&conf.PushSettings{ServiceURL: tt.template})
			got, err := s.serviceURL(&entities.Notification{Recipient: tt.recipient})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPushSender_InvalidServiceURLIsPermanent(t *testing.T) {
	s := NewPushSender(&conf.PushSettings{ServiceURL: "not-a-service-url"})
	result := s.Send(t.Context(), &entities.Notification{
		Recipient: "owner-topic",
		Subject:   "Alert",
		Message:   "body",
	})
	assert.False(t, result.Success)
	assert.True(t, result.Permanent)
}
