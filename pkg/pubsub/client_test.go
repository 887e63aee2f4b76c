package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/influencehub-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/ih-escrow-events", TopicResourceName("p1", "ih-escrow-events"))
	assert.Equal(t, "projects/other/topics/t", TopicResourceName("p1", "projects/other/topics/t"))
	assert.Equal(t, "", TopicResourceName("", "ih-escrow-events"))
	assert.Equal(t, "", TopicResourceName("p1", "  "))
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{}), 0)
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
}
