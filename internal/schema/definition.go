package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/flood-risk-service/internal/facts"
)

//go:embed definitions/flood.yaml definitions/rules.txt
var defaults embed.FS

const (
	defaultSchemaFile = "definitions/flood.yaml"
	defaultRulesFile  = "definitions/rules.txt"
)

// definition mirrors the YAML layout of a schema file.
type definition struct {
	Ontology    Description     `yaml:"ontology"`
	Kinds       []kindDef       `yaml:"kinds"`
	Predicates  []predicateDef  `yaml:"predicates"`
	Individuals []individualDef `yaml:"individuals"`
}

type kindDef struct {
	ID      string   `yaml:"id"`
	Label   string   `yaml:"label"`
	Comment string   `yaml:"comment"`
	Parents []string `yaml:"parents"`
}

type predicateDef struct {
	ID       string `yaml:"id"`
	Label    string `yaml:"label"`
	Comment  string `yaml:"comment"`
	Arity    string `yaml:"arity"` // "object" or "literal"
	Domain   string `yaml:"domain"`
	Range    string `yaml:"range"`
	Datatype string `yaml:"datatype"`
}

type individualDef struct {
	ID         string    `yaml:"id"`
	Label      string    `yaml:"label"`
	Comment    string    `yaml:"comment"`
	Kinds      []string  `yaml:"kinds"`
	Properties yaml.Node `yaml:"properties"`
}

// LoadDefault builds the catalog from the embedded flood definitions.
func LoadDefault() (*Catalog, error) {
	return Load("", "")
}

// Load builds a catalog from a schema file and a rule corpus file. An empty
// path selects the embedded default for that half.
func Load(schemaPath, rulesPath string) (*Catalog, error) {
	def, defSrc, err := readSource(schemaPath, defaultSchemaFile)
	if err != nil {
		return nil, err
	}
	rules, rulesSrc, err := readSource(rulesPath, defaultRulesFile)
	if err != nil {
		return nil, err
	}
	return Build(def, rules, defSrc+"+"+rulesSrc, time.Now().UTC())
}

func readSource(path, fallback string) ([]byte, string, error) {
	if path == "" {
		b, err := defaults.ReadFile(fallback)
		if err != nil {
			return nil, "", &LoadError{Source: "embedded:" + fallback, Err: err}
		}
		return b, "embedded:" + fallback, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &LoadError{Source: path, Err: err}
	}
	return b, path, nil
}

// Build parses and validates a schema definition and rule corpus. Any
// defect is reported as a *LoadError; a catalog is never partially built.
func Build(def, rules []byte, source string, now time.Time) (*Catalog, error) {
	var d definition
	dec := yaml.NewDecoder(bytes.NewReader(def))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, loadErr(source, "%w: empty schema definition", ErrInvalid)
		}
		return nil, &LoadError{Source: source, Err: fmt.Errorf("decode definition: %w", err)}
	}

	c := &Catalog{
		source:    source,
		kinds:     make(map[facts.EntityID]*Kind),
		children:  make(map[facts.EntityID][]facts.EntityID),
		ancestors: make(map[facts.EntityID][]facts.EntityID),
		preds:     make(map[facts.PredicateID]*PredicateDecl),
		loadedAt:  now,
	}
	c.description = d.Ontology
	c.description.Title = labelOr(c.description.Title, source)
	if err := c.addKinds(d.Kinds); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	if err := c.addPredicates(d.Predicates); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	if err := c.addIndividuals(d.Individuals); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	parsed, err := ParseRules(source, rules)
	if err != nil {
		return nil, err
	}
	c.rules = parsed
	return c, nil
}

func (c *Catalog) addKinds(defs []kindDef) error {
	c.kinds[Root] = &Kind{ID: Root, Label: string(Root)}
	c.kindOrder = append(c.kindOrder, Root)

	for _, kd := range defs {
		id := facts.EntityID(strings.TrimSpace(kd.ID))
		if id == "" {
			return fmt.Errorf("%w: kind without id", ErrInvalid)
		}
		if id == Root {
			if len(kd.Parents) > 0 {
				return fmt.Errorf("%w: root kind %s cannot have parents", ErrInvalid, Root)
			}
			c.kinds[Root].Label = labelOr(kd.Label, string(Root))
			c.kinds[Root].Comment = kd.Comment
			continue
		}
		if _, dup := c.kinds[id]; dup {
			return fmt.Errorf("%w: kind %s", ErrDuplicate, id)
		}
		k := &Kind{ID: id, Label: labelOr(kd.Label, string(id)), Comment: kd.Comment}
		for _, p := range kd.Parents {
			k.Parents = append(k.Parents, facts.EntityID(strings.TrimSpace(p)))
		}
		if len(k.Parents) == 0 {
			k.Parents = []facts.EntityID{Root}
		}
		c.kinds[id] = k
		c.kindOrder = append(c.kindOrder, id)
	}

	for _, id := range c.kindOrder {
		for _, p := range c.kinds[id].Parents {
			if _, ok := c.kinds[p]; !ok {
				return fmt.Errorf("%w: %s (parent of %s)", ErrUnknownKind, p, id)
			}
			c.children[p] = append(c.children[p], id)
		}
	}
	if err := c.checkAcyclic(); err != nil {
		return err
	}

	depths := make(map[facts.EntityID]int, len(c.kinds))
	for _, id := range c.kindOrder {
		if d := c.depthOf(id, depths); d > c.depth {
			c.depth = d
		}
		c.ancestors[id] = c.collectAncestors(id)
	}
	return nil
}

// checkAcyclic walks parent edges depth-first and fails on a back edge.
func (c *Catalog) checkAcyclic() error {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[facts.EntityID]int, len(c.kinds))
	var path []facts.EntityID

	var visit func(id facts.EntityID) error
	visit = func(id facts.EntityID) error {
		switch state[id] {
		case active:
			return fmt.Errorf("%w: %s", ErrCycle, cyclePath(path, id))
		case done:
			return nil
		}
		state[id] = active
		path = append(path, id)
		for _, p := range c.kinds[id].Parents {
			if err := visit(p); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}
	for _, id := range c.kindOrder {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

func cyclePath(path []facts.EntityID, back facts.EntityID) string {
	start := 0
	for i, id := range path {
		if id == back {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(path)-start+1)
	for _, id := range path[start:] {
		parts = append(parts, string(id))
	}
	parts = append(parts, string(back))
	return strings.Join(parts, " -> ")
}

func (c *Catalog) depthOf(id facts.EntityID, memo map[facts.EntityID]int) int {
	if d, ok := memo[id]; ok {
		return d
	}
	d := 0
	for _, p := range c.kinds[id].Parents {
		if pd := c.depthOf(p, memo) + 1; pd > d {
			d = pd
		}
	}
	memo[id] = d
	return d
}

func (c *Catalog) collectAncestors(id facts.EntityID) []facts.EntityID {
	seen := map[facts.EntityID]bool{id: true}
	var out []facts.EntityID
	queue := append([]facts.EntityID(nil), c.kinds[id].Parents...)
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		queue = append(queue, c.kinds[k].Parents...)
	}
	return out
}

func (c *Catalog) addPredicates(defs []predicateDef) error {
	for _, pd := range defs {
		id := facts.PredicateID(strings.TrimSpace(pd.ID))
		if id == "" {
			return fmt.Errorf("%w: predicate without id", ErrInvalid)
		}
		if id == facts.PredicateType {
			return fmt.Errorf("%w: predicate %q is reserved", ErrInvalid, id)
		}
		if _, dup := c.preds[id]; dup {
			return fmt.Errorf("%w: predicate %s", ErrDuplicate, id)
		}

		p := &PredicateDecl{
			ID:       id,
			Label:    labelOr(pd.Label, string(id)),
			Comment:  pd.Comment,
			Domain:   facts.EntityID(pd.Domain),
			Range:    facts.EntityID(pd.Range),
			Datatype: pd.Datatype,
		}
		switch strings.ToLower(pd.Arity) {
		case "object":
			p.Arity = ArityObject
		case "literal", "data", "":
			p.Arity = ArityLiteral
		default:
			return fmt.Errorf("%w: predicate %s has arity %q", ErrInvalid, id, pd.Arity)
		}
		if p.Arity == ArityLiteral && p.Range != "" {
			return fmt.Errorf("%w: literal predicate %s cannot declare a range kind", ErrInvalid, id)
		}
		for _, k := range []facts.EntityID{p.Domain, p.Range} {
			if k != "" && !c.HasKind(k) {
				return fmt.Errorf("%w: %s (used by predicate %s)", ErrUnknownKind, k, id)
			}
		}
		c.preds[id] = p
		c.predOrder = append(c.predOrder, id)
	}
	return nil
}

func (c *Catalog) addIndividuals(defs []individualDef) error {
	seen := make(map[facts.EntityID]bool)
	for _, idef := range defs {
		id := facts.EntityID(strings.TrimSpace(idef.ID))
		if id == "" {
			return fmt.Errorf("%w: individual without id", ErrInvalid)
		}
		if seen[id] || c.HasKind(id) {
			return fmt.Errorf("%w: individual %s", ErrDuplicate, id)
		}
		seen[id] = true
		if len(idef.Kinds) == 0 {
			return fmt.Errorf("%w: individual %s has no kind", ErrInvalid, id)
		}

		ind := Individual{ID: id, Label: labelOr(idef.Label, string(id)), Comment: idef.Comment}
		for _, k := range idef.Kinds {
			kid := facts.EntityID(strings.TrimSpace(k))
			if !c.HasKind(kid) {
				return fmt.Errorf("%w: %s (kind of %s)", ErrUnknownKind, kid, id)
			}
			ind.Kinds = append(ind.Kinds, kid)
		}
		props, err := c.decodeProperties(id, &idef.Properties)
		if err != nil {
			return err
		}
		ind.Properties = props
		c.individuals = append(c.individuals, ind)
	}
	return nil
}

// decodeProperties walks the mapping node in document order so seeded facts
// keep a stable insertion order.
func (c *Catalog) decodeProperties(id facts.EntityID, n *yaml.Node) ([]Property, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: properties of %s must be a mapping", ErrInvalid, id)
	}
	var out []Property
	for i := 0; i+1 < len(n.Content); i += 2 {
		pid := facts.PredicateID(n.Content[i].Value)
		decl, ok := c.preds[pid]
		if !ok {
			return nil, fmt.Errorf("%w: %s (on %s)", ErrUnknownPredicate, pid, id)
		}
		values := []*yaml.Node{n.Content[i+1]}
		if n.Content[i+1].Kind == yaml.SequenceNode {
			values = n.Content[i+1].Content
		}
		for _, vn := range values {
			v, err := propertyValue(decl, vn)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalid, id, pid, err)
			}
			out = append(out, Property{Predicate: pid, Value: v})
		}
	}
	return out, nil
}

func propertyValue(decl *PredicateDecl, n *yaml.Node) (facts.Value, error) {
	if n.Kind != yaml.ScalarNode {
		return facts.Value{}, errors.New("value must be a scalar")
	}
	if decl.Arity == ArityObject {
		if n.Value == "" {
			return facts.Value{}, errors.New("empty reference")
		}
		return facts.Ref(facts.EntityID(n.Value)), nil
	}
	switch n.ShortTag() {
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return facts.Value{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return facts.Value{}, fmt.Errorf("non-finite number %s", n.Value)
		}
		return facts.Number(f), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return facts.Value{}, err
		}
		return facts.Bool(b), nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return facts.Value{}, err
		}
		return facts.Timestamp(t), nil
	case "!!null":
		return facts.Value{}, errors.New("null value")
	default:
		return facts.String(n.Value), nil
	}
}

func labelOr(label, fallback string) string {
	if strings.TrimSpace(label) == "" {
		return fallback
	}
	return label
}
