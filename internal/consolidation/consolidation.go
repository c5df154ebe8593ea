// Package consolidation implements the memory engine's periodic
// maintenance pipeline: decay recomputation, promotion, eviction, merging,
// and salience evolution, all inside a single transaction (spec.md §4.5).
package consolidation

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/decay"
	"github.com/michaelv2/claude-cortex-core/internal/logging"
	"github.com/michaelv2/claude-cortex-core/internal/similarity"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

var log = logging.GetLogger("consolidation")

// MinInterval is how long a consolidation run must wait after the previous
// one before running again (spec.md §4.5 "skipped if last run < 1h ago").
const MinInterval = time.Hour

const lastRunMetaKey = "last_consolidation_at"

// defaultMergeSimilarityThreshold is the combined-similarity threshold above
// which two short-term memories in the same (project, category) group are
// merged, used when Limits.MergeSimilarityThreshold is unset.
const defaultMergeSimilarityThreshold = 0.25

const mergeSalienceBoost = 0.1

// Limits configures capacity and threshold parameters; these come from the
// engine's loaded configuration. A zero value in BaseDecayRate,
// PromotionThreshold, or MergeSimilarityThreshold falls back to its
// documented default.
type Limits struct {
	MaxShortTerm             int
	MaxLongTerm              int
	BaseDecayRate            float64
	PromotionThreshold       float64
	MergeSimilarityThreshold float64
}

// Result summarizes a completed (or previewed) consolidation pass.
type Result struct {
	Consolidated    int // promoted to long_term
	Decayed         int // recomputed decayed_score count
	Deleted         int
	SalienceEvolved int
	Merged          int
	Preview         []*storage.Memory // only set when DryRun
}

// Consolidator runs maintenance passes against a Database.
type Consolidator struct {
	db     *storage.Database
	limits Limits
}

// New builds a Consolidator over db with the given capacity limits,
// applying documented defaults for any threshold left at zero.
func New(db *storage.Database, limits Limits) *Consolidator {
	if limits.BaseDecayRate <= 0 {
		limits.BaseDecayRate = decay.BaseDecayRate
	}
	if limits.PromotionThreshold <= 0 {
		limits.PromotionThreshold = decay.PromotionThreshold
	}
	if limits.MergeSimilarityThreshold <= 0 {
		limits.MergeSimilarityThreshold = defaultMergeSimilarityThreshold
	}
	return &Consolidator{db: db, limits: limits}
}

// ShouldRun reports whether enough time has passed since the last
// consolidation to run another one (startup / timer-driven calls only;
// manual invocations bypass this check).
func (c *Consolidator) ShouldRun() bool {
	raw, ok := c.db.GetMeta(lastRunMetaKey)
	if !ok {
		return true
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true
	}
	return time.Since(last) >= MinInterval
}

// Run executes one consolidation pass. When dryRun is true, only steps 1-4
// (recompute, promote, delete-decayed, enforce-capacity candidates) are
// evaluated and nothing is mutated; the memories that would be affected are
// returned in Result.Preview.
func (c *Consolidator) Run(ctx context.Context, dryRun bool) (*Result, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin consolidation transaction: %w", err)
	}
	defer tx.Rollback()

	result := &Result{}

	memories, err := loadAllMemories(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}

	now := time.Now().UTC()

	// 1. Recompute decayed scores.
	recomputeDecay(memories, now, c.limits.BaseDecayRate)
	result.Decayed = len(memories)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Promote.
	promoted := promote(memories, c.limits.PromotionThreshold)
	result.Consolidated = len(promoted)
	promotedSet := make(map[string]bool, len(promoted))
	for _, m := range promoted {
		promotedSet[m.ID] = true
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Delete decayed (never ones just promoted).
	toDelete := make(map[string]bool)
	for _, m := range memories {
		if promotedSet[m.ID] {
			continue
		}
		if m.DecayedScore < decay.DeletionThreshold(m.Category) {
			toDelete[m.ID] = true
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 4. Enforce capacity.
	for _, id := range enforceCapacity(memories, toDelete, c.limits) {
		toDelete[id] = true
	}

	if dryRun {
		var preview []*storage.Memory
		for _, m := range memories {
			if toDelete[m.ID] || promotedSet[m.ID] {
				preview = append(preview, m)
			}
		}
		result.Preview = preview
		result.Deleted = len(toDelete)
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Merge similar short-term memories, among survivors.
	var survivors []*storage.Memory
	for _, m := range memories {
		if !toDelete[m.ID] {
			survivors = append(survivors, m)
		}
	}
	merges, mergedAway, err := mergeSimilar(tx, survivors, c.limits.MergeSimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to merge similar memories: %w", err)
	}
	result.Merged = merges
	for id := range mergedAway {
		toDelete[id] = true
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 6. Evolve salience for surviving hub memories.
	evolved, err := evolveSalience(tx, survivors, mergedAway)
	if err != nil {
		return nil, fmt.Errorf("failed to evolve salience: %w", err)
	}
	result.SalienceEvolved = evolved

	// Apply promotions and deletions.
	for _, m := range promoted {
		if toDelete[m.ID] {
			continue
		}
		if _, err := tx.Exec(`UPDATE memories SET type = ? WHERE id = ?`, storage.TypeLongTerm, m.ID); err != nil {
			return nil, fmt.Errorf("failed to promote memory %s: %w", m.ID, err)
		}
	}
	for id := range toDelete {
		if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("failed to delete memory %s: %w", id, err)
		}
	}
	result.Deleted = len(toDelete)

	// 7. Persist decayed scores for remaining memories.
	for _, m := range memories {
		if toDelete[m.ID] {
			continue
		}
		if _, err := tx.Exec(`UPDATE memories SET decayed_score = ? WHERE id = ?`, m.DecayedScore, m.ID); err != nil {
			return nil, fmt.Errorf("failed to persist decayed score for %s: %w", m.ID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, lastRunMetaKey, now.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("failed to record consolidation timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit consolidation: %w", err)
	}

	// 8. Vacuum if anything was deleted.
	if result.Deleted > 0 {
		if err := c.db.Vacuum(); err != nil {
			log.Warn("vacuum failed after consolidation", "error", err)
		}
	}

	log.LogOperation("consolidation_complete",
		"promoted", result.Consolidated, "deleted", result.Deleted,
		"merged", result.Merged, "salience_evolved", result.SalienceEvolved)

	return result, nil
}

func loadAllMemories(tx *sql.Tx) ([]*storage.Memory, error) {
	rows, err := tx.Query(`
		SELECT id, type, category, title, content, project, scope, transferable,
		       tags, salience, decayed_score, access_count, last_accessed, created_at, metadata
		FROM memories WHERE type IN ('short_term', 'episodic', 'long_term')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []*storage.Memory
	for rows.Next() {
		var m storage.Memory
		var title sql.NullString
		var tagsJSON, metaJSON string
		if err := rows.Scan(
			&m.ID, &m.Type, &m.Category, &title, &m.Content, &m.Project, &m.Scope, &m.Transferable,
			&tagsJSON, &m.Salience, &m.DecayedScore, &m.AccessCount, &m.LastAccessed, &m.CreatedAt, &metaJSON,
		); err != nil {
			return nil, err
		}
		m.Title = title.String
		m.Tags = storage.ParseTags(tagsJSON)
		m.Metadata = storage.ParseMetadata(metaJSON)
		memories = append(memories, &m)
	}
	return memories, nil
}

func recomputeDecay(memories []*storage.Memory, now time.Time, baseDecayRate float64) {
	for _, m := range memories {
		if m.Type == storage.TypeLongTerm {
			continue
		}
		m.DecayedScore = decay.DecayedScore(m.Salience, m.LastAccessed, now, m.AccessCount, false, baseDecayRate)
	}
}

func promote(memories []*storage.Memory, promotionThreshold float64) []*storage.Memory {
	var promoted []*storage.Memory
	for _, m := range memories {
		if m.Type != storage.TypeShortTerm {
			continue
		}
		if decay.IsPromotionEligible(m.Salience, m.AccessCount, promotionThreshold) {
			promoted = append(promoted, m)
		}
	}
	return promoted
}

// enforceCapacity returns ids to delete beyond toDelete so that
// count(short_term) <= maxShortTerm and count(long_term) <= maxLongTerm,
// evicting the lowest-scored tail first.
func enforceCapacity(memories []*storage.Memory, alreadyDeleted map[string]bool, limits Limits) []string {
	var shortTerm, longTerm []*storage.Memory
	for _, m := range memories {
		if alreadyDeleted[m.ID] {
			continue
		}
		switch m.Type {
		case storage.TypeShortTerm:
			shortTerm = append(shortTerm, m)
		case storage.TypeLongTerm:
			longTerm = append(longTerm, m)
		}
	}

	var evicted []string

	if limits.MaxShortTerm > 0 && len(shortTerm) > limits.MaxShortTerm {
		sort.Slice(shortTerm, func(i, j int) bool {
			if shortTerm[i].Salience != shortTerm[j].Salience {
				return shortTerm[i].Salience < shortTerm[j].Salience
			}
			return shortTerm[i].LastAccessed.Before(shortTerm[j].LastAccessed)
		})
		excess := len(shortTerm) - limits.MaxShortTerm
		for i := 0; i < excess; i++ {
			evicted = append(evicted, shortTerm[i].ID)
		}
	}

	if limits.MaxLongTerm > 0 && len(longTerm) > limits.MaxLongTerm {
		sort.Slice(longTerm, func(i, j int) bool {
			if longTerm[i].Salience != longTerm[j].Salience {
				return longTerm[i].Salience < longTerm[j].Salience
			}
			if longTerm[i].AccessCount != longTerm[j].AccessCount {
				return longTerm[i].AccessCount < longTerm[j].AccessCount
			}
			return longTerm[i].LastAccessed.Before(longTerm[j].LastAccessed)
		})
		excess := len(longTerm) - limits.MaxLongTerm
		for i := 0; i < excess; i++ {
			evicted = append(evicted, longTerm[i].ID)
		}
	}

	return evicted
}

// mergeSimilar groups short-term survivors by (project, category) and
// greedily clusters by combined title/content similarity, merging each
// cluster into its highest-salience member. Returns the number of clusters
// merged and the set of ids merged away (to be deleted by the caller).
func mergeSimilar(tx *sql.Tx, survivors []*storage.Memory, mergeSimilarityThreshold float64) (int, map[string]bool, error) {
	groups := make(map[string][]*storage.Memory)
	for _, m := range survivors {
		if m.Type != storage.TypeShortTerm {
			continue
		}
		key := m.Project + "\x00" + string(m.Category)
		groups[key] = append(groups[key], m)
	}

	type tokenized struct {
		mem           *storage.Memory
		contentTokens map[string]struct{}
		titleTokens   map[string]struct{}
	}

	mergedAway := make(map[string]bool)
	mergeCount := 0

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}

		pre := make([]tokenized, len(group))
		for i, m := range group {
			pre[i] = tokenized{
				mem:           m,
				contentTokens: similarity.Tokenize(m.Content),
				titleTokens:   similarity.Tokenize(m.Title),
			}
		}

		assigned := make([]bool, len(pre))
		var clusters [][]int

		for i := range pre {
			if assigned[i] {
				continue
			}
			cluster := []int{i}
			assigned[i] = true
			for j := i + 1; j < len(pre); j++ {
				if assigned[j] {
					continue
				}
				contentSim := similarity.JaccardSets(pre[i].contentTokens, pre[j].contentTokens)
				titleSim := similarity.JaccardSets(pre[i].titleTokens, pre[j].titleTokens)
				combined := 0.6*contentSim + 0.4*titleSim
				if combined >= mergeSimilarityThreshold {
					cluster = append(cluster, j)
					assigned[j] = true
				}
			}
			if len(cluster) > 1 {
				clusters = append(clusters, cluster)
			}
		}

		for _, cluster := range clusters {
			members := make([]*storage.Memory, len(cluster))
			for i, idx := range cluster {
				members[i] = pre[idx].mem
			}
			sort.Slice(members, func(i, j int) bool { return members[i].Salience > members[j].Salience })

			winner := members[0]
			others := members[1:]

			var summaryLines []string
			tagSet := make(map[string]bool)
			for _, t := range winner.Tags {
				tagSet[t] = true
			}
			totalAccess := winner.AccessCount

			for _, o := range others {
				summaryLines = append(summaryLines, "- "+firstLine(o.Content))
				for _, t := range o.Tags {
					tagSet[t] = true
				}
				totalAccess += o.AccessCount
				mergedAway[o.ID] = true
			}

			mergedContent := winner.Content
			if len(summaryLines) > 0 {
				mergedContent += "\n\nConsolidated context:\n" + strings.Join(summaryLines, "\n")
			}
			if len(mergedContent) > 10*1024 {
				mergedContent = mergedContent[:10*1024-len("\n[truncated]")] + "\n[truncated]"
			}

			mergedTags := make([]string, 0, len(tagSet))
			for t := range tagSet {
				mergedTags = append(mergedTags, t)
			}
			sort.Strings(mergedTags)

			newSalience := winner.Salience + mergeSalienceBoost
			if newSalience > 1.0 {
				newSalience = 1.0
			}

			winnerMem := &storage.Memory{Tags: mergedTags}
			if _, err := tx.Exec(`UPDATE memories SET content = ?, tags = ?, access_count = ?, salience = ? WHERE id = ?`,
				mergedContent, winnerMem.TagsJSON(), totalAccess, newSalience, winner.ID); err != nil {
				return 0, nil, err
			}

			winner.Content = mergedContent
			winner.Tags = mergedTags
			winner.AccessCount = totalAccess
			winner.Salience = newSalience

			for _, o := range others {
				if err := rewriteLinks(tx, o.ID, winner.ID); err != nil {
					return 0, nil, err
				}
			}

			mergeCount++
		}
	}

	return mergeCount, mergedAway, nil
}

func firstLine(content string) string {
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		content = content[:idx]
	}
	if len(content) > 200 {
		content = content[:200]
	}
	return content
}

// rewriteLinks repoints edges from the merged-away memory to the survivor,
// inside the consolidation transaction, dropping edges that would become
// self-referential or duplicate an existing one.
func rewriteLinks(tx *sql.Tx, oldID, newID string) error {
	if _, err := tx.Exec(`UPDATE OR IGNORE memory_links SET source_id = ? WHERE source_id = ?`, newID, oldID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE OR IGNORE memory_links SET target_id = ? WHERE target_id = ?`, newID, oldID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM memory_links WHERE source_id = target_id`); err != nil {
		return err
	}
	return nil
}

// evolveSalience adds a hub bonus to surviving memories with link_count >=
// 2 (spec.md §4.5 step 6).
func evolveSalience(tx *sql.Tx, survivors []*storage.Memory, mergedAway map[string]bool) (int, error) {
	evolved := 0
	for _, m := range survivors {
		if mergedAway[m.ID] {
			continue
		}
		var linkCount int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM memory_links WHERE source_id = ? OR target_id = ?`, m.ID, m.ID).Scan(&linkCount); err != nil {
			return 0, err
		}
		if linkCount < 2 {
			continue
		}
		bonus := 0.03 * math.Log2(float64(linkCount))
		if bonus > 0.1 {
			bonus = 0.1
		}
		newSalience := m.Salience + bonus
		if newSalience > 1.0 {
			newSalience = 1.0
		}
		if _, err := tx.Exec(`UPDATE memories SET salience = ? WHERE id = ?`, newSalience, m.ID); err != nil {
			return 0, err
		}
		m.Salience = newSalience
		evolved++
	}
	return evolved, nil
}
