package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "short flag with separate value",
			args:    []string{"-c", "conf.json", "-engine", "duckdb"},
			allowed: []string{"-c", "--config"},
			want:    []string{"-c", "conf.json"},
		},
		{
			name:    "long flag with equals",
			args:    []string{"--config=alt.json", "-data", "/tmp"},
			allowed: []string{"-c", "--config"},
			want:    []string{"--config=alt.json"},
		},
		{
			name:    "order preserved",
			args:    []string{"-batch", "500", "-busy", "3s", "-x", "1"},
			allowed: []string{"-busy", "-batch"},
			want:    []string{"-batch", "500", "-busy", "3s"},
		},
		{
			name:    "unknown flags and positionals ignored",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "flag at the end without value",
			args:    []string{"-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "next token is a flag, not a value",
			args:    []string{"-c", "-engine"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	assert.Equal(t, "a.json", ConfigFileFlag([]string{"-c", "a.json", "-engine", "duckdb"}))
	assert.Equal(t, "b.json", ConfigFileFlag([]string{"-config", "b.json"}))
	assert.Equal(t, "c.json", ConfigFileFlag([]string{"--config=c.json"}))
	assert.Equal(t, "", ConfigFileFlag([]string{"-engine", "duckdb"}))
	assert.Equal(t, "", ConfigFileFlag(nil))
}
