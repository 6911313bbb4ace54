package scanning

import (
	"context"
	"testing"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clivendon/RAD/internal/errors"
)

func TestRunRejectsInvalidTarget(t *testing.T) {
	_, err := Run(context.Background(), Config{
		Target:     "bad target;",
		OutputFile: "nmap_bad.txt",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
}

func TestSummarize(t *testing.T) {
	t.Run("nil run yields empty summary", func(t *testing.T) {
		result := summarize(nil, Config{Target: "h", OutputFile: "f"}, time.Second)
		assert.Equal(t, "h", result.Target)
		assert.Equal(t, "f", result.OutputFile)
		assert.Zero(t, result.HostsUp)
		assert.Zero(t, result.OpenPorts)
	})

	t.Run("counts hosts up and open ports", func(t *testing.T) {
		run := &nmap.Run{
			Hosts: []nmap.Host{
				{
					Status: nmap.Status{State: "up"},
					Ports: []nmap.Port{
						{State: nmap.State{State: "open"}},
						{State: nmap.State{State: "closed"}},
						{State: nmap.State{State: "open"}},
					},
				},
				{
					Status: nmap.Status{State: "down"},
				},
			},
		}

		result := summarize(run, Config{Target: "h", OutputFile: "f"}, 2*time.Second)
		assert.Equal(t, 1, result.HostsUp)
		assert.Equal(t, 2, result.OpenPorts)
		assert.Equal(t, 2*time.Second, result.Duration)
	})
}
