package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name   string
		inputs []map[string]string
		want   []string
	}{
		{
			name: "single map",
			inputs: []map[string]string{
				{"NODE_ENV": "production", "CI": "true"},
			},
			want: []string{"CI=true", "NODE_ENV=production"},
		},
		{
			name: "merge two maps - override wins",
			inputs: []map[string]string{
				{"NODE_ENV": "development", "PUBLIC_URL": "/"},
				{"NODE_ENV": "production"},
			},
			want: []string{"NODE_ENV=production", "PUBLIC_URL=/"},
		},
		{
			name:   "empty maps",
			inputs: []map[string]string{},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeEnv(tt.inputs...))
		})
	}
}
