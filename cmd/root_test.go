package main

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/meridian-aml/riskwatch/internal/model"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"verdict fail", errVerdictFailed, 1},
		{"wrapped verdict fail", eris.Wrap(errVerdictFailed, "run"), 1},
		{"insufficient data", model.ErrInsufficientData, 2},
		{"wrapped insufficient data", eris.Wrap(model.ErrInsufficientData, "window"), 2},
		{"operational error", eris.New("disk full"), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
