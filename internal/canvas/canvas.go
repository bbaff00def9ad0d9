// Package canvas materializes a finished journey run as a campaign
// graph in the external note-canvas store. The store holds one whole
// graph under a fixed key; writes are full replacements, so it must be
// treated as single-writer.
package canvas

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Node struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Position Position          `json:"position"`
	Color    string            `json:"color,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Store is the external canvas contract: read whole graph, write whole
// graph.
type Store interface {
	Read(ctx context.Context) (Graph, error)
	Write(ctx context.Context, g Graph) error
}

// Layout constants shared with the canvas renderer.
const (
	baseX          = 400
	headerY        = 50
	firstStageY    = 200
	stageSpacing   = 160
	campaignOffset = 500
)

// Stage node colors, one per touch.
const (
	colorHeader = "#FFD700"
	colorDay0   = "#4ECDC4"
	colorDay3   = "#95E1D3"
	colorDay10  = "#F38181"
)

type stageSlot struct {
	stage  core.Stage
	suffix string
	label  string
	color  string
}

var journeySlots = []stageSlot{
	{core.StageInitial, "day0", "Initial Email (Day 0)", colorDay0},
	{core.StageFollowup1, "day3", "Follow-up #1 (Day 3)", colorDay3},
	{core.StageFollowup2, "day10", "Follow-up #2 (Day 10)", colorDay10},
}

// clock hands out strictly increasing millisecond timestamps so node
// ids never collide across rapid deployments in one process.
type clock struct {
	mu   sync.Mutex
	last int64
}

func (c *clock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}

var deployClock clock

// BuildCampaign constructs the four-node campaign graph for one
// successful journey run: a header node describing the prospect, then
// one node per touch, chained linearly. All ids derive from a single
// timestamp read.
func BuildCampaign(p core.Prospect, artifacts map[core.Stage]core.EmailArtifact, offsetX int) (Graph, error) {
	for _, slot := range journeySlots {
		if _, ok := artifacts[slot.stage]; !ok {
			return Graph{}, fmt.Errorf("campaign requires a %s artifact", slot.stage)
		}
	}

	ts := deployClock.next()
	x := baseX + offsetX

	header := Node{
		ID:       fmt.Sprintf("campaign-%d-header", ts),
		Type:     "prospectNode",
		Position: Position{X: x, Y: headerY},
		Color:    colorHeader,
		Data: map[string]string{
			"label":    p.Company,
			"contact":  p.FullName(),
			"email":    p.Email,
			"industry": p.Industry,
			"trigger":  string(p.Trigger),
		},
	}

	g := Graph{Nodes: []Node{header}}
	prev := header.ID
	y := firstStageY
	for _, slot := range journeySlots {
		art := artifacts[slot.stage]
		n := Node{
			ID:       fmt.Sprintf("campaign-%d-%s", ts, slot.suffix),
			Type:     "emailNode",
			Position: Position{X: x, Y: y},
			Color:    slot.color,
			Data: map[string]string{
				"label":   slot.label,
				"subject": art.Subject,
				"body":    art.Body,
				"status":  "draft",
			},
		}
		g.Nodes = append(g.Nodes, n)
		g.Edges = append(g.Edges, Edge{
			ID:     fmt.Sprintf("campaign-%d-edge-%s", ts, slot.suffix),
			Source: prev,
			Target: n.ID,
		})
		prev = n.ID
		y += stageSpacing
	}
	return g, nil
}

// Merge appends the new campaign to the existing graph. Existing nodes
// and edges are copied through unmodified.
func Merge(existing, campaign Graph) Graph {
	out := Graph{
		Nodes: make([]Node, 0, len(existing.Nodes)+len(campaign.Nodes)),
		Edges: make([]Edge, 0, len(existing.Edges)+len(campaign.Edges)),
	}
	out.Nodes = append(out.Nodes, existing.Nodes...)
	out.Nodes = append(out.Nodes, campaign.Nodes...)
	out.Edges = append(out.Edges, existing.Edges...)
	out.Edges = append(out.Edges, campaign.Edges...)
	return out
}

// Deploy reads the current graph, builds the campaign beside any prior
// ones, and writes back existing plus new.
func Deploy(ctx context.Context, store Store, p core.Prospect, artifacts map[core.Stage]core.EmailArtifact) (Graph, error) {
	existing, err := store.Read(ctx)
	if err != nil {
		return Graph{}, fmt.Errorf("read canvas: %w", err)
	}

	offsetX := 0
	if len(existing.Nodes) > 0 {
		offsetX = campaignOffset * campaignCount(existing)
	}

	campaign, err := BuildCampaign(p, artifacts, offsetX)
	if err != nil {
		return Graph{}, err
	}

	merged := Merge(existing, campaign)
	if err := store.Write(ctx, merged); err != nil {
		return Graph{}, fmt.Errorf("write canvas: %w", err)
	}
	return campaign, nil
}

// campaignCount counts prior campaigns by their header nodes so each
// new one lands one slot further right.
func campaignCount(g Graph) int {
	n := 0
	for _, node := range g.Nodes {
		if strings.HasSuffix(node.ID, "-header") {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}
