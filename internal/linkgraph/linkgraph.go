// Package linkgraph manages the memory engine's relationship graph:
// auto-linking new memories to their nearest neighbors and reinforcing
// edges between memories accessed together (spec.md §4.6).
package linkgraph

import (
	"fmt"
	"sort"
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/logging"
	"github.com/michaelv2/claude-cortex-core/internal/similarity"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

var log = logging.GetLogger("linkgraph")

const (
	autoLinkCandidatePool = 20
	autoLinkMaxEdges      = 3
	autoLinkBaseStrength  = 0.2
	autoLinkMaxStrength   = 0.9
	autoLinkJaccardWeight = 0.5

	hebbianWindow          = 5 * time.Minute
	hebbianNewEdgeStrength = 0.1
	hebbianReinforceDelta  = 0.05
)

// Graph wires the storage layer into link-graph operations.
type Graph struct {
	db *storage.Database
}

// New builds a Graph over db.
func New(db *storage.Database) *Graph {
	return &Graph{db: db}
}

// AutoLink finds up to autoLinkMaxEdges neighbors for a freshly inserted
// memory among its top FTS/tag candidates and creates `related` edges
// weighted by their content similarity (spec.md §4.4 step 5).
func (g *Graph) AutoLink(memory *storage.Memory) error {
	candidates, err := g.db.SearchFTS(memory.Content, memory.Project, true, autoLinkCandidatePool)
	if err != nil {
		// A brand-new corpus or a content-free memory can leave FTS with
		// nothing to match; that's not a failure to auto-link.
		log.Debug("auto-link candidate search found nothing", "memory_id", memory.ID, "error", err)
		return nil
	}

	type scored struct {
		id    string
		score float64
	}
	var scoredCandidates []scored
	memTokens := similarity.Tokenize(memory.Content)

	for _, c := range candidates {
		if c.Memory.ID == memory.ID {
			continue
		}
		sim := similarity.JaccardSets(memTokens, similarity.Tokenize(c.Memory.Content))
		scoredCandidates = append(scoredCandidates, scored{id: c.Memory.ID, score: sim})
	}

	// Candidates already arrive BM25-ordered from SearchFTS; take the
	// strongest Jaccard matches among them up to the edge cap.
	sort.SliceStable(scoredCandidates, func(i, j int) bool {
		return scoredCandidates[i].score > scoredCandidates[j].score
	})
	edgesCreated := 0
	for _, c := range scoredCandidates {
		if edgesCreated >= autoLinkMaxEdges {
			break
		}
		if c.score <= 0 {
			continue
		}
		strength := autoLinkBaseStrength + autoLinkJaccardWeight*c.score
		if strength > autoLinkMaxStrength {
			strength = autoLinkMaxStrength
		}
		if strength < autoLinkBaseStrength {
			strength = autoLinkBaseStrength
		}

		link := &storage.MemoryLink{
			SourceID:     memory.ID,
			TargetID:     c.id,
			Relationship: storage.RelRelated,
			Strength:     strength,
		}
		if err := g.db.CreateLink(link); err != nil {
			log.Warn("auto-link failed", "source", memory.ID, "target", c.id, "error", err)
			continue
		}
		edgesCreated++
	}

	return nil
}

// Link creates or strengthens a typed edge between two memories, validating
// the relationship type and that the endpoints differ.
func (g *Graph) Link(sourceID, targetID string, rel storage.Relationship, strength float64) error {
	if !storage.IsValidRelationship(rel) {
		return fmt.Errorf("invalid relationship type: %s", rel)
	}
	if sourceID == targetID {
		return fmt.Errorf("source and target must differ")
	}
	return g.db.CreateLink(&storage.MemoryLink{
		SourceID: sourceID, TargetID: targetID, Relationship: rel, Strength: strength,
	})
}

// GetRelated returns a memory's outgoing links, ordered by strength.
func (g *Graph) GetRelated(id string) ([]*storage.MemoryLink, error) {
	return g.db.GetLinksFrom(id)
}

// ReinforceCoAccess applies Hebbian reinforcement across a batch of
// memories accessed together: a search's top hits, or an explicitly
// accessed memory plus the others the store has accessed before it
// (spec.md §4.4 step 5, §4.6). Every pair gets a new weak `related` edge if
// none exists, or a small strength boost if one does; a pair is skipped when
// the second memory's recorded last access is older than the Hebbian window.
func (g *Graph) ReinforceCoAccess(ids []string, accessedAt time.Time, lastAccess map[string]time.Time) {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			prev, ok := lastAccess[b]
			if ok && accessedAt.Sub(prev) > hebbianWindow {
				continue
			}

			existing, err := g.db.GetLinksFrom(a)
			if err != nil {
				log.Warn("hebbian reinforcement lookup failed", "error", err)
				continue
			}

			var found *storage.MemoryLink
			for _, l := range existing {
				if l.TargetID == b && l.Relationship == storage.RelRelated {
					found = l
					break
				}
			}

			strength := hebbianNewEdgeStrength
			if found != nil {
				strength = hebbianReinforceDelta
			}

			if err := g.db.CreateLink(&storage.MemoryLink{
				SourceID: a, TargetID: b, Relationship: storage.RelRelated, Strength: strength,
			}); err != nil {
				log.Warn("hebbian reinforcement failed", "source", a, "target", b, "error", err)
			}
		}
	}
}

// MeanLinkedSalience returns the mean salience of a memory's linked
// neighbors, used as the search ranking function's link-boost component.
func (g *Graph) MeanLinkedSalience(id string, salienceOf func(string) (float64, bool)) float64 {
	links, err := g.db.GetLinksFrom(id)
	if err != nil || len(links) == 0 {
		return 0
	}
	var sum float64
	var count int
	for _, l := range links {
		if s, ok := salienceOf(l.TargetID); ok {
			sum += s
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
