package canvas

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

func threeArtifacts() map[core.Stage]core.EmailArtifact {
	return map[core.Stage]core.EmailArtifact{
		core.StageInitial:   {Subject: "s0", Body: "b0"},
		core.StageFollowup1: {Subject: "s3", Body: "b3"},
		core.StageFollowup2: {Subject: "s10", Body: "b10"},
	}
}

func testProspect() core.Prospect {
	return core.Prospect{
		Company:   "Acme",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@acme.com",
		Industry:  "B2B SaaS",
	}
}

func TestBuildCampaignShape(t *testing.T) {
	t.Parallel()

	g, err := BuildCampaign(testProspect(), threeArtifacts(), 0)
	if err != nil {
		t.Fatalf("BuildCampaign: %v", err)
	}
	if len(g.Nodes) != 4 {
		t.Fatalf("nodes = %d, want 4", len(g.Nodes))
	}
	if len(g.Edges) != 3 {
		t.Fatalf("edges = %d, want 3", len(g.Edges))
	}

	header := g.Nodes[0]
	if header.Type != "prospectNode" || header.Data["label"] != "Acme" || header.Data["contact"] != "Jane Doe" {
		t.Fatalf("header = %+v", header)
	}

	// Strict linear chain: header -> day0 -> day3 -> day10.
	prev := header.ID
	for i, e := range g.Edges {
		if e.Source != prev {
			t.Fatalf("edge %d source = %q, want %q", i, e.Source, prev)
		}
		if e.Target != g.Nodes[i+1].ID {
			t.Fatalf("edge %d target = %q, want %q", i, e.Target, g.Nodes[i+1].ID)
		}
		prev = e.Target
	}

	// Every stage node carries its artifact and a distinct color.
	seen := map[string]bool{}
	for _, n := range g.Nodes[1:] {
		if n.Data["subject"] == "" || n.Data["body"] == "" {
			t.Fatalf("stage node missing content: %+v", n)
		}
		if seen[n.Color] {
			t.Fatalf("duplicate stage color %q", n.Color)
		}
		seen[n.Color] = true
	}
}

func TestBuildCampaignIDsUniqueAcrossRapidRuns(t *testing.T) {
	t.Parallel()

	ids := map[string]bool{}
	for i := 0; i < 5; i++ {
		g, err := BuildCampaign(testProspect(), threeArtifacts(), 0)
		if err != nil {
			t.Fatalf("BuildCampaign: %v", err)
		}
		for _, n := range g.Nodes {
			if ids[n.ID] {
				t.Fatalf("duplicate node id %q across runs", n.ID)
			}
			ids[n.ID] = true
		}
	}
}

func TestBuildCampaignRequiresAllStages(t *testing.T) {
	t.Parallel()

	arts := threeArtifacts()
	delete(arts, core.StageFollowup2)
	if _, err := BuildCampaign(testProspect(), arts, 0); err == nil {
		t.Fatal("incomplete artifact set accepted")
	}
}

func TestMergeIsAppendOnly(t *testing.T) {
	t.Parallel()

	existing := Graph{
		Nodes: []Node{{ID: "old-1", Type: "textNode"}},
		Edges: []Edge{{ID: "old-e", Source: "old-1", Target: "old-1"}},
	}
	campaign, err := BuildCampaign(testProspect(), threeArtifacts(), campaignOffset)
	if err != nil {
		t.Fatalf("BuildCampaign: %v", err)
	}
	merged := Merge(existing, campaign)

	if merged.Nodes[0].ID != "old-1" || merged.Edges[0].ID != "old-e" {
		t.Fatal("existing content not copied through first")
	}
	if len(merged.Nodes) != 1+len(campaign.Nodes) || len(merged.Edges) != 1+len(campaign.Edges) {
		t.Fatalf("merged sizes = %d nodes %d edges", len(merged.Nodes), len(merged.Edges))
	}
}

func TestDeployOffsetsBesidePriorCampaigns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "canvas.json"))

	first, err := Deploy(ctx, store, testProspect(), threeArtifacts())
	if err != nil {
		t.Fatalf("first Deploy: %v", err)
	}
	if first.Nodes[0].Position.X != baseX {
		t.Fatalf("first campaign X = %d, want %d", first.Nodes[0].Position.X, baseX)
	}

	second, err := Deploy(ctx, store, testProspect(), threeArtifacts())
	if err != nil {
		t.Fatalf("second Deploy: %v", err)
	}
	if second.Nodes[0].Position.X != baseX+campaignOffset {
		t.Fatalf("second campaign X = %d, want %d", second.Nodes[0].Position.X, baseX+campaignOffset)
	}

	final, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(final.Nodes) != 8 || len(final.Edges) != 6 {
		t.Fatalf("final graph = %d nodes %d edges", len(final.Nodes), len(final.Edges))
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "canvas.db"), "")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	g, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read empty: %v", err)
	}
	if len(g.Nodes) != 0 {
		t.Fatalf("empty read returned nodes: %+v", g)
	}

	campaign, err := BuildCampaign(testProspect(), threeArtifacts(), 0)
	if err != nil {
		t.Fatalf("BuildCampaign: %v", err)
	}
	if err := store.Write(ctx, campaign); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Nodes) != len(campaign.Nodes) || len(got.Edges) != len(campaign.Edges) {
		t.Fatalf("round trip = %d nodes %d edges", len(got.Nodes), len(got.Edges))
	}
}
