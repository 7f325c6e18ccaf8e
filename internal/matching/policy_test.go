package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Policy)
		wantErr bool
	}{
		{name: "default", mutate: func(*Policy) {}},
		{name: "guaranteed below two", mutate: func(p *Policy) { p.GuaranteedSize = 1 }, wantErr: true},
		{name: "expanded below guaranteed", mutate: func(p *Policy) { p.ExpandedMinimum = 1 }, wantErr: true},
		{name: "target below expanded", mutate: func(p *Policy) { p.TargetSize = 2 }, wantErr: true},
		{name: "negative settle delay", mutate: func(p *Policy) { p.SettleDelay = -time.Second }, wantErr: true},
		{name: "pairs only", mutate: func(p *Policy) { p.TargetSize, p.ExpandedMinimum = 2, 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPolicy_ExpandedSectors(t *testing.T) {
	p := DefaultPolicy()
	p.Adjacency = map[string][]string{"north": {"mid", "north", "", "east"}}

	assert.Equal(t, []string{"north", "mid", "east"}, p.ExpandedSectors("north"))
	assert.Equal(t, []string{"south"}, p.ExpandedSectors("south"))
}
