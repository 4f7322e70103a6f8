// Package registry creates and deduplicates the typed entities that one
// analysis batch contributes to the concept graph. Normalized names are the
// dedup key: registering the same name twice under one type merges
// attributes, registering it under a different type is a recorded conflict.
package registry

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"kinegraph/internal/graph"
	"kinegraph/internal/logging"
)

// NodeRequest is one node-creation request from the analysis collaborator.
type NodeRequest struct {
	Type         graph.NodeType
	Name         string
	Attributes   graph.Attributes
	EvidenceRefs []string
}

// TypeConflict is one audit entry for a DuplicateTypeMismatch.
type TypeConflict struct {
	Name          string         `json:"name"`
	ExistingID    string         `json:"existing_id"`
	ExistingType  graph.NodeType `json:"existing_type"`
	RequestedType graph.NodeType `json:"requested_type"`
	At            time.Time      `json:"at"`
}

var validTypes = map[graph.NodeType]bool{
	graph.NodePaper:      true,
	graph.NodeMuscle:     true,
	graph.NodeJoint:      true,
	graph.NodePattern:    true,
	graph.NodeAssessment: true,
	graph.NodeTreatment:  true,
	graph.NodeMechanism:  true,
}

// Registry owns node creation for one build. It is not safe for concurrent
// use; ingestion completes before the builder runs.
type Registry struct {
	nodes     map[string]*graph.Node
	byName    map[string]string // normalized name -> node id
	conflicts []TypeConflict
	logger    *log.Logger
}

func New(logger *log.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{
		nodes:  make(map[string]*graph.Node),
		byName: make(map[string]string),
		logger: logger,
	}
}

func slugify(normalized string) string {
	var b strings.Builder
	pending := false
	for _, r := range normalized {
		isWord := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isWord {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// NodeID derives the deterministic id for a (type, name) pair. Deterministic
// ids keep repeated ingestion of the same batch idempotent.
func NodeID(t graph.NodeType, name string) string {
	return string(t) + "_" + slugify(graph.NormalizeName(name))
}

// CreateNode registers a node, merging into an existing node of the same
// normalized name and type. A name already held by a different type returns a
// *DuplicateTypeMismatchError: the first-registered type wins and no merge
// happens.
func (r *Registry) CreateNode(t graph.NodeType, name string, attrs graph.Attributes) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &RequestError{Name: name, Type: t, Reason: "name must not be blank"}
	}
	if !validTypes[t] {
		return "", &RequestError{Name: name, Type: t, Reason: "unknown node type"}
	}

	norm := graph.NormalizeName(name)
	if existingID, ok := r.byName[norm]; ok {
		existing := r.nodes[existingID]
		if existing.Type != t {
			conflict := TypeConflict{
				Name:          name,
				ExistingID:    existingID,
				ExistingType:  existing.Type,
				RequestedType: t,
				At:            time.Now().UTC(),
			}
			r.conflicts = append(r.conflicts, conflict)
			r.logger.Warn("node type conflict, keeping first-registered type",
				"name", name, "existing", existing.Type, "requested", t)
			return "", &DuplicateTypeMismatchError{
				Name:           name,
				NormalizedName: norm,
				ExistingID:     existingID,
				ExistingType:   existing.Type,
				RequestedType:  t,
			}
		}
		mergeAttributes(&existing.Attributes, attrs)
		return existingID, nil
	}

	id := NodeID(t, name)
	node := &graph.Node{
		ID:             id,
		Type:           t,
		Name:           name,
		NormalizedName: norm,
		Attributes:     attrs,
	}
	node.Attributes.EvidenceRefs = uniqueSorted(node.Attributes.EvidenceRefs)
	node.Attributes.Functions = uniqueSorted(node.Attributes.Functions)
	node.Attributes.Targets = uniqueSorted(node.Attributes.Targets)
	r.nodes[id] = node
	r.byName[norm] = id
	return id, nil
}

// Ingest applies a batch of requests. Malformed requests fail the batch fast;
// type conflicts are recorded and skipped so processing continues.
func (r *Registry) Ingest(batch []NodeRequest) ([]string, error) {
	ids := make([]string, 0, len(batch))
	for _, req := range batch {
		attrs := req.Attributes
		attrs.EvidenceRefs = append(append([]string(nil), attrs.EvidenceRefs...), req.EvidenceRefs...)

		id, err := r.CreateNode(req.Type, req.Name, attrs)
		if err != nil {
			var mismatch *DuplicateTypeMismatchError
			if errors.As(err, &mismatch) {
				continue
			}
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Get returns the node with the given id, or nil.
func (r *Registry) Get(id string) *graph.Node {
	return r.nodes[id]
}

// FindByName resolves a display name through the dedup index, or nil.
func (r *Registry) FindByName(name string) *graph.Node {
	id, ok := r.byName[graph.NormalizeName(name)]
	if !ok {
		return nil
	}
	return r.nodes[id]
}

// FindByNameAndType resolves a display name and requires the given type.
func (r *Registry) FindByNameAndType(name string, t graph.NodeType) *graph.Node {
	n := r.FindByName(name)
	if n == nil || n.Type != t {
		return nil
	}
	return n
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// NodeList returns all nodes sorted by id, the deterministic input order for
// the builder.
func (r *Registry) NodeList() []*graph.Node {
	out := make([]*graph.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Conflicts returns the audit trail of type mismatches.
func (r *Registry) Conflicts() []TypeConflict {
	return r.conflicts
}

// mergeAttributes unions list attributes, keeps the max of numeric scores and
// fills empty scalar fields. Existing non-empty scalars win.
func mergeAttributes(dst *graph.Attributes, src graph.Attributes) {
	dst.EvidenceRefs = uniqueSorted(append(dst.EvidenceRefs, src.EvidenceRefs...))
	dst.Functions = uniqueSorted(append(dst.Functions, src.Functions...))
	dst.Targets = uniqueSorted(append(dst.Targets, src.Targets...))

	if src.Quality > dst.Quality {
		dst.Quality = src.Quality
	}
	if src.WhyDepth > dst.WhyDepth {
		dst.WhyDepth = src.WhyDepth
	}
	if src.Year > dst.Year {
		dst.Year = src.Year
	}

	if dst.Region == "" {
		dst.Region = src.Region
	}
	if dst.Stage == "" {
		dst.Stage = src.Stage
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if dst.Journal == "" {
		dst.Journal = src.Journal
	}

	if len(src.Extra) > 0 {
		if dst.Extra == nil {
			dst.Extra = make(map[string]string, len(src.Extra))
		}
		for k, v := range src.Extra {
			if _, ok := dst.Extra[k]; !ok {
				dst.Extra[k] = v
			}
		}
	}
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
