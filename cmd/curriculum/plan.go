package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/phrazzld/scry-curriculum/internal/config"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/generation"
)

// errEmptyPlan is returned when a plan is needed to seed a queue but lists
// no topics.
var errEmptyPlan = errors.New("plan lists no topics")

// Plan is a curriculum plan file:
//
//	topics = ["Goroutines", "Channels"]
//	auto_approve = false
//
//	[phase1]
//	model = "gemini-2.0-flash"
//	prompt = "Outline for a working programmer."
//
//	[phase2]
//	provider = "vertex"
//	model = "gemini-2.5-pro"
type Plan struct {
	Topics      []string               `toml:"topics"`
	Phase1      generation.PhaseConfig `toml:"phase1"`
	Phase2      generation.PhaseConfig `toml:"phase2"`
	AutoApprove *bool                  `toml:"auto_approve"`
}

func loadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return parsePlan(data)
}

func parsePlan(data []byte) (*Plan, error) {
	var plan Plan
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&plan); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("parse plan: %s", strict.String())
		}
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &plan, nil
}

// QueueItems returns a pending item per non-blank topic, in plan order.
func (p *Plan) QueueItems() ([]domain.QueueItem, error) {
	items := make([]domain.QueueItem, 0, len(p.Topics))
	for _, topic := range p.Topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		item, err := domain.NewQueueItem(topic)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if len(items) == 0 {
		return nil, errEmptyPlan
	}
	return items, nil
}

// RunConfig builds the run configuration, taking models the plan leaves out
// and the auto-approve default from cfg.
func (p *Plan) RunConfig(cfg *config.Config) curriculum.RunConfig {
	run := curriculum.RunConfig{
		Phase1:      p.Phase1,
		Phase2:      p.Phase2,
		AutoApprove: cfg.Curriculum.AutoApprove,
	}
	if run.Phase1.Model == "" {
		run.Phase1.Model = cfg.LLM.StructureModel
	}
	if run.Phase2.Model == "" {
		run.Phase2.Model = cfg.LLM.ContentModel
	}
	if p.AutoApprove != nil {
		run.AutoApprove = *p.AutoApprove
	}
	return run
}
