package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKBytes(t *testing.T) {
	assert.Equal(t, Bytes(0), KBytes(0))
	assert.Equal(t, Bytes(1024), KBytes(1))
	assert.Equal(t, Bytes(4194304000), KBytes(4096000))
}

func TestHumanized(t *testing.T) {
	t.Run("unit_boundaries", func(t *testing.T) {
		cases := []struct {
			in   Bytes
			want string
		}{
			{Bytes(0), "0 B"},
			{Bytes(1023), "1023 B"},
			{Bytes(1024), "1.00 KB"},
			{Bytes(1536), "1.50 KB"},
			{Bytes(1 << 20), "1.00 MB"},
			{Bytes(1 << 30), "1.00 GB"},
			{Bytes(1 << 40), "1.00 TB"},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.want, tc.in.Humanized())
		}
	})

	t.Run("kb_denominated_stats_values", func(t *testing.T) {
		// the sizes the agent logs every interval arrive in kilobytes
		assert.Equal(t, "3.91 GB", KBytes(4096000).Humanized())   // memory used
		assert.Equal(t, "500.00 KB", KBytes(500).Humanized())     // small container
		assert.Equal(t, "11.72 GB", KBytes(12288000).Humanized()) // gpu memory
	})
}
