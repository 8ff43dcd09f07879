package events

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/hakkacheyassin/ft-trans/config"
)

func TestNewSaramaConfigSASLMechanisms(t *testing.T) {
	tests := []struct {
		mechanism string
		expected  sarama.SASLMechanism
		scram     bool
	}{
		{"", sarama.SASLTypePlaintext, false},
		{"PLAIN", sarama.SASLTypePlaintext, false},
		{"SCRAM-SHA-256", sarama.SASLTypeSCRAMSHA256, true},
		{"SCRAM-SHA-512", sarama.SASLTypeSCRAMSHA512, true},
	}
	for _, tc := range tests {
		cfg := &appconfig.KafkaConfig{
			Username:  "broker-user",
			Password:  "broker-pass",
			Mechanism: tc.mechanism,
		}
		config, err := NewSaramaConfig(cfg)
		require.NoError(t, err, tc.mechanism)

		assert.True(t, config.Net.SASL.Enable, tc.mechanism)
		assert.Equal(t, tc.expected, config.Net.SASL.Mechanism, tc.mechanism)
		if tc.scram {
			require.NotNil(t, config.Net.SASL.SCRAMClientGeneratorFunc, tc.mechanism)
			assert.NotNil(t, config.Net.SASL.SCRAMClientGeneratorFunc(), tc.mechanism)
		}
	}
}

func TestNewSaramaConfigWithoutCredentials(t *testing.T) {
	config, err := NewSaramaConfig(&appconfig.KafkaConfig{})
	require.NoError(t, err)
	assert.False(t, config.Net.SASL.Enable)
}
