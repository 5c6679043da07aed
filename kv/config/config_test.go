package config

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	assert.NoError(t, NewDefaultConfig().Validate())
	assert.NoError(t, NewTestConfig().Validate())
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown protocol", func(c *Config) { c.Protocol = "mvcc" }},
		{"zero threads", func(c *Config) { c.NumThreads = 0 }},
		{"negative txns", func(c *Config) { c.TxnsPerThread = -1 }},
		{"zero keys", func(c *Config) { c.TotalKeys = 0 }},
		{"hotset larger than key space", func(c *Config) { c.HotsetSize = c.TotalKeys + 1 }},
		{"hotset prob above one", func(c *Config) { c.HotsetProb = 1.5 }},
		{"hotset prob negative", func(c *Config) { c.HotsetProb = -0.1 }},
		{"zero backoff", func(c *Config) { c.RetryBackoffBaseUs = 0 }},
	}
	for _, tc := range cases {
		c := NewDefaultConfig()
		tc.mutate(c)
		assert.Error(t, c.Validate(), tc.name)
	}
}

func TestLoadFromFile(t *testing.T) {
	f, err := ioutil.TempFile("", "tinytxn_conf")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	_, err = f.WriteString("protocol = \"2pl\"\nthreads = 8\nhotset-prob = 0.9\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	c := NewDefaultConfig()
	require.NoError(t, c.LoadFromFile(f.Name()))
	assert.Equal(t, ProtocolTwoPL, c.Protocol)
	assert.Equal(t, 8, c.NumThreads)
	assert.Equal(t, 0.9, c.HotsetProb)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1000, c.TotalKeys)
}
