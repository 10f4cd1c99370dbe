package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantBase   Level
		wantComps  map[string]Level
		errContain string
	}{
		{
			name:     "empty string defaults to info",
			input:    "",
			wantBase: LevelInfo,
		},
		{
			name:     "base level only",
			input:    "debug",
			wantBase: LevelDebug,
		},
		{
			name:      "component overrides",
			input:     "warn,manager=debug,procfs=trace",
			wantBase:  LevelWarn,
			wantComps: map[string]Level{"manager": LevelDebug, "procfs": LevelTrace},
		},
		{
			name:      "whitespace is ignored",
			input:     "  info , store = debug ",
			wantBase:  LevelInfo,
			wantComps: map[string]Level{"store": LevelDebug},
		},
		{
			name:      "override without base level",
			input:     "manager=debug",
			wantBase:  LevelInfo,
			wantComps: map[string]Level{"manager": LevelDebug},
		},
		{
			name:      "empty parts are skipped",
			input:     "info,,manager=debug,",
			wantBase:  LevelInfo,
			wantComps: map[string]Level{"manager": LevelDebug},
		},
		{
			name:       "invalid base level",
			input:      "loud",
			errContain: "unknown log level",
		},
		{
			name:       "invalid component level",
			input:      "info,manager=loud",
			errContain: "invalid level for component",
		},
		{
			name:       "base level not first",
			input:      "manager=debug,info",
			errContain: "must be first",
		},
		{
			name:       "empty component name",
			input:      "info,=debug",
			errContain: "empty component name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseSpec(tt.input)
			if tt.errContain != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContain)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, spec.BaseLevel)
			if tt.wantComps == nil {
				assert.Empty(t, spec.Components)
			} else {
				assert.Equal(t, tt.wantComps, spec.Components)
			}
		})
	}
}

func TestSpec_StringRoundTrip(t *testing.T) {
	spec, err := ParseSpec("error,store=trace,manager=debug")
	require.NoError(t, err)
	assert.Equal(t, "error,manager=debug,store=trace", spec.String())

	again, err := ParseSpec(spec.String())
	require.NoError(t, err)
	assert.Equal(t, spec, again)
}

func TestSpec_LevelFor(t *testing.T) {
	spec := Spec{BaseLevel: LevelWarn, Components: map[string]Level{"manager": LevelDebug}}
	assert.Equal(t, LevelDebug, spec.LevelFor("manager"))
	assert.Equal(t, LevelWarn, spec.LevelFor("store"))
	assert.Equal(t, LevelWarn, spec.LevelFor(""))
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"trace", "debug", "info", "warn", "error"} {
		level, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, name, level.String())
	}

	level, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)

	assert.Equal(t, "Level(3)", Level(3).String())
}
