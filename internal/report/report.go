// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package report renders crawl progress and the final analysis summary for
// the console.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/medkg-dev/medkg/internal/analysis"
	"github.com/medkg-dev/medkg/internal/catalog"
	"github.com/medkg-dev/medkg/internal/expand"
	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/internal/store"
)

var (
	colorAccent  = lipgloss.Color("99")
	colorCount   = lipgloss.Color("10")
	colorMuted   = lipgloss.Color("240")
	colorFailure = lipgloss.Color("9")
)

type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	count   lipgloss.Style
	muted   lipgloss.Style
	failure lipgloss.Style
}

// newStyles binds styles to the writer's renderer so colour is dropped for
// writers that are not terminals.
func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorAccent),
		section: r.NewStyle().Bold(true),
		count:   r.NewStyle().Foreground(colorCount),
		muted:   r.NewStyle().Foreground(colorMuted),
		failure: r.NewStyle().Foreground(colorFailure),
	}
}

// Reporter writes human-oriented run output.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
	st styles
}

// New returns a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.w, format, args...)
}

// Start announces the seed table and the number of seeds being expanded.
func (r *Reporter) Start(conditions map[graph.NodeID]string, seeds int) {
	ids := make([]string, 0, len(conditions))
	for id := range conditions {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s (%s)", conditions[graph.NodeID(id)], id))
	}

	r.printf("%s %s\n", r.st.section.Render("Starting with seed conditions:"), strings.Join(parts, ", "))
	r.printf("Expanding subgraph from %s seed conditions...\n", r.st.count.Render(fmt.Sprint(seeds)))
}

// Saved reports where the snapshot was written.
func (r *Reporter) Saved(path string, stats expand.Stats, elapsed time.Duration) {
	line := fmt.Sprintf("Saved subgraph to %s (%d expanded, %d failed, %d batches in %s)",
		path, stats.Fetched, stats.Failed, stats.Batches, elapsed.Round(time.Millisecond))
	if stats.Interrupted {
		line += " " + r.st.failure.Render("[interrupted]")
	}
	r.printf("%s\n", line)
}

// Summary prints totals, relation usage and the hub list.
func (r *Reporter) Summary(a *analysis.Analysis) {
	var b strings.Builder
	b.WriteString("\n" + r.st.title.Render("Knowledge Graph Analysis") + "\n")
	fmt.Fprintf(&b, "Total entities: %s\n", r.st.count.Render(fmt.Sprint(a.EntityCount)))
	fmt.Fprintf(&b, "Total triples: %s\n", r.st.count.Render(fmt.Sprint(a.TripleCount)))

	b.WriteString("\n" + r.st.section.Render("Property usage:") + "\n")
	if len(a.PropertyUsage) == 0 {
		b.WriteString(r.st.muted.Render("  (none)") + "\n")
	}
	for _, p := range a.PropertyUsage {
		fmt.Fprintf(&b, "  %s %s: %s\n", p.Label, r.st.muted.Render("("+string(p.ID)+")"), r.st.count.Render(fmt.Sprint(p.Count)))
	}

	b.WriteString("\n" + r.st.section.Render("Top hub entities:") + "\n")
	if len(a.HubEntities) == 0 {
		b.WriteString(r.st.muted.Render("  (none)") + "\n")
	}
	for _, h := range a.HubEntities {
		fmt.Fprintf(&b, "  %s (%s): %s connections\n", h.Label, h.ID, r.st.count.Render(fmt.Sprint(h.ConnectionCount)))
		if h.Description != "" {
			b.WriteString(r.st.muted.Render("    Description: "+h.Description) + "\n")
		}
	}

	r.printf("%s", b.String())
}

// Catalog prints relation ids and labels, one per line.
func (r *Reporter) Catalog(relations []catalog.Relation) {
	for _, rel := range relations {
		r.printf("%s\t%s\n", r.st.section.Render(string(rel.ID)), rel.Label)
	}
}

// Traversal prints the entities reached from a node grouped by hop
// distance, followed by the relations between them.
func (r *Reporter) Traversal(start string, g *store.Graph) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.st.title.Render("Neighbourhood of"), start)
	for _, e := range g.Entities {
		marker := ""
		if !e.Expanded {
			marker = " " + r.st.muted.Render("[reference]")
		}
		fmt.Fprintf(&b, "  %s %s (%s)%s\n", r.st.muted.Render(fmt.Sprintf("[%d]", g.Hops[e.ID])), e.Label, e.ID, marker)
	}
	b.WriteString("\n" + r.st.section.Render("Relations:") + "\n")
	if len(g.Relationships) == 0 {
		b.WriteString(r.st.muted.Render("  (none)") + "\n")
	}
	for _, rel := range g.Relationships {
		fmt.Fprintf(&b, "  %s -[%s (%s)]-> %s\n", rel.FromID, rel.Label, rel.Type, rel.ToID)
	}
	r.printf("%s", b.String())
}

// Progress returns an observer that prints one line per fetched entity and
// a notice for every failure.
func (r *Reporter) Progress() expand.Observer {
	return progress{r: r}
}

type progress struct {
	expand.NopObserver
	r *Reporter
}

func (p progress) Fetching(e graph.FrontierEntry, index, total int) {
	p.r.printf("Processing entity %d/%d at depth %d\n", index, total, e.Depth)
}

func (p progress) FetchFailed(e graph.FrontierEntry, err error) {
	p.r.printf("%s\n", p.r.st.failure.Render(fmt.Sprintf("Failed to fetch entity %s: %v", e.ID, err)))
}
